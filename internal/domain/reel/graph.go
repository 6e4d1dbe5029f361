package reel

import "github.com/okian/tailor/internal/domain/signal"

// MaxDistance is the distance between unrelated categories.
const MaxDistance = 3

// adjacentCategories are the undirected edges of the category graph.
var adjacentCategories = [][2]signal.Category{
	{signal.CategoryDenim, signal.CategoryPants},
	{signal.CategoryPants, signal.CategoryOuterwear},
	{signal.CategoryDenim, signal.CategoryOuterwear},
	{signal.CategoryPants, signal.CategoryShorts},
	{signal.CategoryShorts, signal.CategorySwimwear},
	{signal.CategoryKnitwear, signal.CategoryHoodies},
	{signal.CategoryHoodies, signal.CategoryTShirts},
	{signal.CategoryTShirts, signal.CategoryShirts},
	{signal.CategoryShirts, signal.CategoryKnitwear},
	{signal.CategoryKnitwear, signal.CategoryOuterwear},
	{signal.CategoryHoodies, signal.CategoryActivewear},
	{signal.CategoryActivewear, signal.CategoryShorts},
	{signal.CategoryDresses, signal.CategorySkirts},
	{signal.CategoryFootwear, signal.CategoryAccessories},
	{signal.CategoryAccessories, signal.CategoryBags},
	{signal.CategorySuits, signal.CategoryShirts},
	{signal.CategorySuits, signal.CategoryOuterwear},
	{signal.CategoryUnderwear, signal.CategorySwimwear},
	{signal.CategoryActivewear, signal.CategoryFootwear},
}

// distances holds the capped shortest path between every pair of known
// categories.
var distances = buildDistances()

func buildDistances() map[signal.Category]map[signal.Category]int {
	neighbours := make(map[signal.Category][]signal.Category)
	for _, e := range adjacentCategories {
		neighbours[e[0]] = append(neighbours[e[0]], e[1])
		neighbours[e[1]] = append(neighbours[e[1]], e[0])
	}
	out := make(map[signal.Category]map[signal.Category]int)
	for _, from := range signal.Categories() {
		dist := map[signal.Category]int{from: 0}
		frontier := []signal.Category{from}
		for d := 1; d < MaxDistance && len(frontier) > 0; d++ {
			var next []signal.Category
			for _, c := range frontier {
				for _, n := range neighbours[c] {
					if _, ok := dist[n]; ok {
						continue
					}
					dist[n] = d
					next = append(next, n)
				}
			}
			frontier = next
		}
		out[from] = dist
	}
	return out
}

// Distance returns the category distance between a and b, capped at
// MaxDistance. An unknown seed category is treated as adjacent to
// everything; an unknown candidate category as two steps away.
func Distance(seed, candidate signal.Category) int {
	if seed == "" {
		return 1
	}
	if candidate == "" {
		return 2
	}
	row, ok := distances[seed]
	if !ok {
		return MaxDistance
	}
	if d, ok := row[candidate]; ok {
		return d
	}
	return MaxDistance
}
