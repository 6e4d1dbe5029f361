// Package shopsim simulates storefront shoppers against a running service:
// it generates visitors and weighted browsing events, submits them, pages
// feeds and reels, and checks every page it receives.
package shopsim

import (
	"time"

	"github.com/okian/tailor/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL          string        // Base URL of the service
	CatalogPath      string        // Catalog the events refer to; empty uses the bundled sample
	Seed             string        // Makes visitors and events reproducible
	Visitors         int           // Number of simulated visitors
	EventsPerVisitor int           // Browsing events per visitor
	FeedPages        int           // Feed pages fetched per visitor
	ReelPages        int           // Reel pages fetched per visitor
	PageLimit        int           // Requested page size; 0 uses the server default
	Workers          int           // Concurrent requests
	Timeout          time.Duration // HTTP request timeout
	SettleDelay      time.Duration // Wait between submitting events and ranking
	OutputFile       string        // Writes generated events as JSON when set
}

// Visitor is one simulated shopper.
type Visitor struct {
	Identity  string       `json:"identity"`
	Gender    model.Gender `json:"gender"`
	Favorites []string     `json:"favorites"` // preferred product types
	Events    []Event      `json:"events"`
}

// Event is the body sent to POST /events.
type Event struct {
	EventID     string   `json:"event_id"`
	Identity    string   `json:"identity"`
	Type        string   `json:"type"`
	Handle      string   `json:"handle,omitempty"`
	Vendor      string   `json:"vendor,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	TS          string   `json:"ts,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	Visitors         int           `json:"visitors"`
	EventsGenerated  int           `json:"eventsGenerated"`
	EventsAccepted   int64         `json:"eventsAccepted"`
	EventsDuplicate  int64         `json:"eventsDuplicate"`
	EventsFailed     int64         `json:"eventsFailed"`
	FeedPages        int64         `json:"feedPages"`
	ReelPages        int64         `json:"reelPages"`
	ItemsServed      int64         `json:"itemsServed"`
	ColdStartPages   int64         `json:"coldStartPages"`
	DegradedPages    int64         `json:"degradedPages"`
	Violations       []string      `json:"violations,omitempty"`
	Duration         time.Duration `json:"duration"`
	EventsPerSecond  float64       `json:"eventsPerSecond"`
	RankingRequestMS float64       `json:"rankingRequestMs"`
}
