// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// EventType names a behavioral signal emitted by the storefront.
type EventType string

// Known behavioral event types.
const (
	EventProductOpen     EventType = "product_open"
	EventAddToCart       EventType = "add_to_cart"
	EventAddToWishlist   EventType = "add_to_wishlist"
	EventSearchClick     EventType = "search_click"
	EventVariantSelect   EventType = "variant_select"
	EventScroll75        EventType = "pdp_scroll_75_percent"
	EventScroll100       EventType = "pdp_scroll_100_percent"
	EventTimeOnProduct8s EventType = "time_on_product_>8s"
)

// EventTypes lists every known event type in a stable order.
var EventTypes = []EventType{
	EventProductOpen,
	EventAddToCart,
	EventAddToWishlist,
	EventSearchClick,
	EventVariantSelect,
	EventScroll75,
	EventScroll100,
	EventTimeOnProduct8s,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Event is one behavioral observation for a visitor. Every product field is
// optional; whatever is populated feeds the matching profile buckets.
type Event struct {
	ID          string    // idempotency key
	Identity    string    // opaque visitor identity (guest or customer)
	Type        EventType // what happened
	Handle      string
	Vendor      string
	ProductType string
	Title       string
	Tags        []string
	At          time.Time // when it happened; zero means "now" at apply time
}

// Gender selects which candidate pools a visitor is eligible for.
type Gender string

// Known genders.
const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// ParseGender maps free text onto a Gender, defaulting to GenderUnknown.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "men", "man", "m":
		return GenderMale
	case "female", "women", "woman", "f":
		return GenderFemale
	default:
		return GenderUnknown
	}
}
