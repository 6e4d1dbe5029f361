package signal

import (
	"strings"

	"github.com/okian/tailor/internal/domain/model"
)

// Category names the closed set of primary catalog categories.
type Category = string

// Primary categories.
const (
	CategorySuits       Category = "suits"
	CategoryDresses     Category = "dresses"
	CategorySkirts      Category = "skirts"
	CategoryOuterwear   Category = "outerwear"
	CategoryKnitwear    Category = "knitwear"
	CategoryHoodies     Category = "hoodies"
	CategoryShirts      Category = "shirts"
	CategoryTShirts     Category = "tshirts"
	CategoryDenim       Category = "denim"
	CategoryPants       Category = "pants"
	CategoryShorts      Category = "shorts"
	CategoryActivewear  Category = "activewear"
	CategorySwimwear    Category = "swimwear"
	CategoryUnderwear   Category = "underwear"
	CategoryFootwear    Category = "footwear"
	CategoryBags        Category = "bags"
	CategoryAccessories Category = "accessories"
)

type categoryRule struct {
	category Category
	keywords []string
}

// categoryPriority is checked in order; the first category with a matching
// keyword wins.
var categoryPriority = []categoryRule{
	{CategorySuits, []string{"suit", "suits", "blazer", "blazers", "tuxedo", "waistcoat"}},
	{CategoryDresses, []string{"dress", "dresses", "gown", "jumpsuit"}},
	{CategorySkirts, []string{"skirt", "skirts"}},
	{CategoryOuterwear, []string{"jacket", "jackets", "coat", "coats", "parka", "bomber", "trench", "puffer", "anorak", "gilet", "windbreaker"}},
	{CategoryKnitwear, []string{"sweater", "sweaters", "jumper", "cardigan", "knit", "knitwear", "pullover"}},
	{CategoryHoodies, []string{"hoodie", "hoodies", "sweatshirt", "sweatshirts", "crewneck"}},
	{CategoryShirts, []string{"shirt", "shirts", "overshirt", "blouse", "oxford", "flannel"}},
	{CategoryTShirts, []string{"tshirt", "tshirts", "tee", "tees", "tank", "polo", "longsleeve"}},
	{CategoryDenim, []string{"jeans", "jean", "denim"}},
	{CategoryPants, []string{"pants", "trousers", "chinos", "chino", "joggers", "cargo", "slacks", "leggings"}},
	{CategoryShorts, []string{"shorts"}},
	{CategoryActivewear, []string{"activewear", "sports", "training", "running", "gym", "track"}},
	{CategorySwimwear, []string{"swim", "swimwear", "bikini", "trunks", "swimsuit"}},
	{CategoryUnderwear, []string{"underwear", "boxer", "boxers", "briefs", "bra", "socks", "lingerie"}},
	{CategoryFootwear, []string{"shoes", "shoe", "sneakers", "sneaker", "boots", "boot", "loafers", "sandals", "trainers"}},
	{CategoryBags, []string{"bag", "bags", "backpack", "tote", "wallet", "crossbody"}},
	{CategoryAccessories, []string{"belt", "hat", "cap", "beanie", "scarf", "gloves", "sunglasses", "jewelry", "necklace", "watch"}},
}

var (
	materialWords = keywordSet("cotton", "wool", "linen", "denim", "leather", "suede", "silk", "cashmere",
		"polyester", "nylon", "fleece", "corduroy", "merino", "viscose", "satin", "velvet", "canvas",
		"twill", "jersey", "mohair", "alpaca", "hemp")
	fitWords = keywordSet("slim", "skinny", "regular", "relaxed", "loose", "oversized", "straight", "wide",
		"tapered", "cropped", "boxy", "fitted", "baggy", "athletic", "bootcut", "flared")
	styleWords = keywordSet("casual", "formal", "vintage", "minimal", "minimalist", "streetwear", "classic",
		"sporty", "boho", "utility", "preppy", "retro", "workwear", "smart", "essential", "heritage")
	colorWords = keywordSet("black", "white", "blue", "navy", "red", "green", "grey", "gray", "beige", "brown",
		"pink", "olive", "cream", "khaki", "yellow", "purple", "orange", "tan", "burgundy", "indigo", "ecru", "charcoal")
)

func keywordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var compoundReplacer = strings.NewReplacer("t-shirt", "tshirt", "t shirt", "tshirt", "long sleeve", "longsleeve")

// InferenceInput is the product text the inference reads.
type InferenceInput struct {
	Handle      string
	Title       string
	Vendor      string
	ProductType string
	Tags        []string
}

// Inference is what the keyword heuristics recognised in a product.
type Inference struct {
	Category    Category
	SubCategory string
	Materials   []string
	Fits        []string
	Styles      []string
	Colors      []string
	Tokens      []string // every kept token, de-duplicated
}

// InputFromCandidate builds inference input from a candidate.
func InputFromCandidate(c *model.Candidate) InferenceInput {
	return InferenceInput{
		Handle:      c.Handle,
		Title:       c.Title,
		Vendor:      c.Vendor,
		ProductType: c.ProductType,
		Tags:        c.Tags,
	}
}

// Infer recognises category, material, fit, style and color keywords.
// Product type is consulted first for the category since it is the most
// deliberate classification a merchant provides.
func Infer(in InferenceInput) Inference {
	texts := make([]string, 0, len(in.Tags)+4)
	texts = append(texts, in.ProductType, in.Title, in.Handle, in.Vendor)
	texts = append(texts, in.Tags...)

	var out Inference
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, tok := range Tokenize(compoundReplacer.Replace(NormalizeKey(text))) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out.Tokens = append(out.Tokens, tok)
			if _, ok := materialWords[tok]; ok {
				out.Materials = append(out.Materials, tok)
			}
			if _, ok := fitWords[tok]; ok {
				out.Fits = append(out.Fits, tok)
			}
			if _, ok := styleWords[tok]; ok {
				out.Styles = append(out.Styles, tok)
			}
			if _, ok := colorWords[tok]; ok {
				out.Colors = append(out.Colors, tok)
			}
		}
	}

	typeTokens := Tokenize(compoundReplacer.Replace(NormalizeKey(in.ProductType)))
	if cat, sub := matchCategory(typeTokens); cat != "" {
		out.Category, out.SubCategory = cat, sub
	} else {
		out.Category, out.SubCategory = matchCategory(out.Tokens)
	}
	return out
}

func matchCategory(tokens []string) (Category, string) {
	if len(tokens) == 0 {
		return "", ""
	}
	present := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		present[t] = struct{}{}
	}
	for _, rule := range categoryPriority {
		for _, kw := range rule.keywords {
			if _, ok := present[kw]; ok {
				return rule.category, kw
			}
		}
	}
	return "", ""
}

// Categories returns the closed set of primary categories in priority order.
func Categories() []Category {
	out := make([]Category, len(categoryPriority))
	for i, r := range categoryPriority {
		out[i] = r.category
	}
	return out
}
