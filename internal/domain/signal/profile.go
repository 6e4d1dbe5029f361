// Package signal holds the decaying per-visitor affinity profile and the pure
// functions that build, read, and mutate it.
//
// Every operation takes a Profile value and returns a new one; nothing in this
// package performs I/O or keeps state between calls.
package signal

import (
	"time"

	"github.com/okian/tailor/internal/domain/model"
)

// Profile invariants and defaults.
const (
	SchemaVersion       = 3
	MaxScore            = 500.0
	RecentHandlesCap    = 50
	ServedCooldownCap   = 80
	DefaultHalfLifeDays = 21.0
	ColdStartThreshold  = 0.1

	maxKeyRunes    = 160
	scorePrecision = 1e4
	msPerDay       = 86_400_000.0
)

// BucketKind identifies one dimension of the profile.
type BucketKind int

// Bucket kinds in wire order.
const (
	BucketHandle BucketKind = iota
	BucketVendor
	BucketProductType
	BucketTag
	BucketCategory
	BucketMaterial
	BucketFit
	bucketCount
)

var bucketNames = [bucketCount]string{
	"byProductHandle",
	"byVendor",
	"byProductType",
	"byTag",
	"byCategory",
	"byMaterial",
	"byFit",
}

// Kinds returns every bucket kind in wire order.
func Kinds() []BucketKind {
	out := make([]BucketKind, bucketCount)
	for i := range out {
		out[i] = BucketKind(i)
	}
	return out
}

// String returns the wire name of the bucket.
func (k BucketKind) String() string {
	if k < 0 || k >= bucketCount {
		return "unknown"
	}
	return bucketNames[k]
}

// ScoreEntry is the raw accumulated score for one key and when it last moved.
type ScoreEntry struct {
	Score  float64
	LastAt time.Time
}

// Bucket maps a normalized key to its entry.
type Bucket map[string]ScoreEntry

// Signals groups the seven independent buckets.
type Signals struct {
	ByProductHandle Bucket
	ByVendor        Bucket
	ByProductType   Bucket
	ByTag           Bucket
	ByCategory      Bucket
	ByMaterial      Bucket
	ByFit           Bucket
}

// Bucket returns the bucket for kind. The returned map aliases the profile.
func (s *Signals) Bucket(kind BucketKind) Bucket {
	switch kind {
	case BucketHandle:
		return s.ByProductHandle
	case BucketVendor:
		return s.ByVendor
	case BucketProductType:
		return s.ByProductType
	case BucketTag:
		return s.ByTag
	case BucketCategory:
		return s.ByCategory
	case BucketMaterial:
		return s.ByMaterial
	case BucketFit:
		return s.ByFit
	default:
		return nil
	}
}

func (s *Signals) setBucket(kind BucketKind, b Bucket) {
	switch kind {
	case BucketHandle:
		s.ByProductHandle = b
	case BucketVendor:
		s.ByVendor = b
	case BucketProductType:
		s.ByProductType = b
	case BucketTag:
		s.ByTag = b
	case BucketCategory:
		s.ByCategory = b
	case BucketMaterial:
		s.ByMaterial = b
	case BucketFit:
		s.ByFit = b
	}
}

// Cooldowns tracks recently served items.
type Cooldowns struct {
	RecentlyServedHandles []string
}

// Profile is the durable personalization state for one visitor.
type Profile struct {
	SchemaVersion int
	UpdatedAt     time.Time
	Gender        model.Gender
	Signals       Signals
	RecentHandles []string // most recent first
	Cooldowns     Cooldowns
}

// CreateEmpty returns a profile with no signal.
func CreateEmpty(now time.Time) Profile {
	p := Profile{
		SchemaVersion: SchemaVersion,
		UpdatedAt:     now,
		Gender:        model.GenderUnknown,
		RecentHandles: []string{},
		Cooldowns:     Cooldowns{RecentlyServedHandles: []string{}},
	}
	for _, k := range Kinds() {
		p.Signals.setBucket(k, Bucket{})
	}
	return p
}

// Clone returns a deep copy of p.
func Clone(p Profile) Profile {
	out := p
	for _, k := range Kinds() {
		src := p.Signals.Bucket(k)
		dst := make(Bucket, len(src))
		for key, e := range src {
			dst[key] = e
		}
		out.Signals.setBucket(k, dst)
	}
	out.RecentHandles = append([]string{}, p.RecentHandles...)
	out.Cooldowns.RecentlyServedHandles = append([]string{}, p.Cooldowns.RecentlyServedHandles...)
	return out
}

// SetGender returns a copy of p with the gender replaced.
func SetGender(p Profile, g model.Gender, now time.Time) Profile {
	out := Clone(p)
	switch g {
	case model.GenderMale, model.GenderFemale:
		out.Gender = g
	default:
		out.Gender = model.GenderUnknown
	}
	out.UpdatedAt = now
	return out
}

// ApplyServedCooldown records handles that were just shown. The first handle
// becomes the most recent entry; the list stays de-duplicated and capped.
func ApplyServedCooldown(p Profile, handles []string, now time.Time) Profile {
	out := Clone(p)
	if len(handles) == 0 {
		return out
	}
	out.Cooldowns.RecentlyServedHandles = pushFront(out.Cooldowns.RecentlyServedHandles, handles, ServedCooldownCap)
	out.UpdatedAt = now
	return out
}

// InCooldown reports whether handle was served recently.
func (p *Profile) InCooldown(handle string) bool {
	return contains(p.Cooldowns.RecentlyServedHandles, NormalizeKey(handle))
}

// IsRecent reports whether handle is in the same-session recent list.
func (p *Profile) IsRecent(handle string) bool {
	return contains(p.RecentHandles, NormalizeKey(handle))
}

// pushFront prepends items (normalized, in order) to list, removing
// duplicates and truncating to limit.
func pushFront(list, items []string, limit int) []string {
	out := make([]string, 0, min(limit, len(list)+len(items)))
	seen := make(map[string]struct{}, len(list)+len(items))
	add := func(s string) {
		if len(out) >= limit {
			return
		}
		k := NormalizeKey(s)
		if !validKey(k) {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, s := range items {
		add(s)
	}
	for _, s := range list {
		add(s)
	}
	return out
}

func contains(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
