// Package cursor holds the opaque pagination state of the feed and reel
// surfaces. Callers only ever see the encoded string.
package cursor

import (
	"encoding/base64"
	"strings"

	"github.com/goccy/go-json"
)

// ServedCap bounds the reel's running set of surfaced handles.
const ServedCap = 320

const (
	feedPrefix = "f1."
	reelPrefix = "r1."
)

// Walk is the state of a round-robin walk over a fixed list of collection
// handles: the next handle index, one continuation token per handle and the
// handles that have no further pages.
type Walk struct {
	Index     int               `json:"i,omitempty"`
	Tokens    map[string]string `json:"t,omitempty"`
	Exhausted []string          `json:"x,omitempty"`
}

// Feed is the feed pagination state.
type Feed struct {
	Page       int    `json:"p,omitempty"`
	Newest     string `json:"n,omitempty"`
	NewestDone bool   `json:"nd,omitempty"`
	Search     string `json:"s,omitempty"`
	SearchDone bool   `json:"sd,omitempty"`
	Walk       Walk   `json:"w"`
}

// Reel is the reel pagination state.
type Reel struct {
	Seed       string   `json:"h"`
	Page       int      `json:"p,omitempty"`
	Search     string   `json:"s,omitempty"`
	SearchDone bool     `json:"sd,omitempty"`
	Walk       Walk     `json:"w"`
	Served     []string `json:"v,omitempty"`
}

// EncodeFeed serializes c.
func EncodeFeed(c Feed) string {
	return encode(feedPrefix, c)
}

// DecodeFeed parses s. It reports false, with the zero state, when s is
// empty or not a feed cursor.
func DecodeFeed(s string) (Feed, bool) {
	var c Feed
	if !decode(feedPrefix, s, &c) || c.Page < 0 {
		return Feed{}, false
	}
	return c, true
}

// EncodeReel serializes c.
func EncodeReel(c Reel) string {
	return encode(reelPrefix, c)
}

// DecodeReel parses s. It reports false, with the zero state, when s is
// empty or not a reel cursor.
func DecodeReel(s string) (Reel, bool) {
	var c Reel
	if !decode(reelPrefix, s, &c) || c.Page < 0 || c.Seed == "" {
		return Reel{}, false
	}
	if len(c.Served) > ServedCap {
		c.Served = c.Served[len(c.Served)-ServedCap:]
	}
	return c, true
}

// AddServed appends handles to the served set keeping the last ServedCap.
func (c *Reel) AddServed(handles ...string) {
	seen := make(map[string]struct{}, len(c.Served))
	for _, h := range c.Served {
		seen[h] = struct{}{}
	}
	for _, h := range handles {
		if _, dup := seen[h]; dup || h == "" {
			continue
		}
		seen[h] = struct{}{}
		c.Served = append(c.Served, h)
	}
	if len(c.Served) > ServedCap {
		c.Served = append([]string(nil), c.Served[len(c.Served)-ServedCap:]...)
	}
}

// ServedSet returns the served handles as a set.
func (c *Reel) ServedSet() map[string]struct{} {
	out := make(map[string]struct{}, len(c.Served))
	for _, h := range c.Served {
		out[h] = struct{}{}
	}
	return out
}

func encode(prefix string, v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

func decode(prefix, s string, v any) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), prefix)
	if !ok || rest == "" {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(rest)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}
