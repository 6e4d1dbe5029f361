package signal

import "github.com/okian/tailor/internal/domain/model"

// Weights is the per-bucket increment one event contributes.
type Weights struct {
	Handle      float64
	Vendor      float64
	ProductType float64
	Tag         float64
	Category    float64
	Material    float64
	Fit         float64
}

// eventWeights: intent-heavy events (cart, wishlist) dominate; passive ones
// (variant_select, scroll depth) barely move the needle.
var eventWeights = map[model.EventType]Weights{
	model.EventProductOpen:     {Handle: 1.0, Vendor: 0.6, ProductType: 0.5, Tag: 0.3, Category: 0.6, Material: 0.4, Fit: 0.3},
	model.EventAddToCart:       {Handle: 4.5, Vendor: 2.4, ProductType: 2.0, Tag: 1.2, Category: 2.2, Material: 1.8, Fit: 1.4},
	model.EventAddToWishlist:   {Handle: 3.2, Vendor: 1.8, ProductType: 1.5, Tag: 0.9, Category: 1.7, Material: 1.3, Fit: 1.0},
	model.EventSearchClick:     {Handle: 1.4, Vendor: 0.8, ProductType: 0.7, Tag: 0.5, Category: 0.8, Material: 0.5, Fit: 0.4},
	model.EventVariantSelect:   {Handle: 0.4, Vendor: 0.2, ProductType: 0.2, Tag: 0.1, Category: 0.2, Material: 0.15, Fit: 0.2},
	model.EventScroll75:        {Handle: 0.8, Vendor: 0.4, ProductType: 0.35, Tag: 0.2, Category: 0.4, Material: 0.3, Fit: 0.25},
	model.EventScroll100:       {Handle: 1.1, Vendor: 0.55, ProductType: 0.45, Tag: 0.3, Category: 0.5, Material: 0.4, Fit: 0.3},
	model.EventTimeOnProduct8s: {Handle: 1.3, Vendor: 0.7, ProductType: 0.6, Tag: 0.35, Category: 0.6, Material: 0.45, Fit: 0.35},
}

// WeightsFor returns the weight table for t.
func WeightsFor(t model.EventType) (Weights, bool) {
	w, ok := eventWeights[t]
	return w, ok
}
