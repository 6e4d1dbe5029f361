package signal

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/okian/tailor/internal/domain/model"
)

// Unlimited disables a cap in Limits.
const Unlimited = -1

// hashTopN is how many keys per bucket feed Hash.
const hashTopN = 8

// Limits caps what Sanitize keeps. A bucket cap keeps the highest effective
// scores; Unlimited keeps everything.
type Limits struct {
	Buckets       [bucketCount]int
	RecentHandles int
	ServedHandles int
}

// DefaultLimits keeps every valid entry and caps the lists at their invariants.
func DefaultLimits() Limits {
	l := Limits{RecentHandles: RecentHandlesCap, ServedHandles: ServedCooldownCap}
	for i := range l.Buckets {
		l.Buckets[i] = Unlimited
	}
	return l
}

type wireEntry struct {
	Score  float64 `json:"score"`
	LastAt int64   `json:"lastAt"`
}

type wireCooldowns struct {
	RecentlyServedHandles []string `json:"recentlyServedHandles"`
}

type wireProfile struct {
	SchemaVersion int                             `json:"schemaVersion"`
	UpdatedAt     int64                           `json:"updatedAt"`
	Gender        string                          `json:"gender"`
	Signals       map[string]map[string]wireEntry `json:"signals"`
	RecentHandles []string                        `json:"recentHandles"`
	Cooldowns     wireCooldowns                   `json:"cooldowns"`
}

func toWire(p Profile) wireProfile {
	w := wireProfile{
		SchemaVersion: p.SchemaVersion,
		UpdatedAt:     p.UpdatedAt.UnixMilli(),
		Gender:        string(p.Gender),
		Signals:       make(map[string]map[string]wireEntry, bucketCount),
		RecentHandles: nonNil(p.RecentHandles),
		Cooldowns:     wireCooldowns{RecentlyServedHandles: nonNil(p.Cooldowns.RecentlyServedHandles)},
	}
	if w.Gender == "" {
		w.Gender = string(model.GenderUnknown)
	}
	for _, k := range Kinds() {
		b := p.Signals.Bucket(k)
		wb := make(map[string]wireEntry, len(b))
		for key, e := range b {
			wb[key] = wireEntry{Score: e.Score, LastAt: e.LastAt.UnixMilli()}
		}
		w.Signals[k.String()] = wb
	}
	return w
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Encode serializes p in the persisted wire format.
func Encode(p Profile) ([]byte, error) {
	return json.Marshal(toWire(p))
}

// EncodedSize returns the byte length of Encode(p), or math.MaxInt when p
// cannot be encoded.
func EncodedSize(p Profile) int {
	b, err := Encode(p)
	if err != nil {
		return math.MaxInt
	}
	return len(b)
}

// MarshalJSON encodes the profile in its wire format.
func (p Profile) MarshalJSON() ([]byte, error) {
	return Encode(p)
}

// Decode parses untrusted bytes into a sanitized profile. Anything that does
// not parse yields an empty profile.
func Decode(data []byte, now time.Time) Profile {
	p, _ := DecodeValid(data, now)
	return p
}

// DecodeValid is Decode that also reports whether data held a profile of the
// current schema. A false result means the stored record was discarded.
func DecodeValid(data []byte, now time.Time) (Profile, bool) {
	if len(data) == 0 {
		return CreateEmpty(now), false
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return CreateEmpty(now), false
	}
	if v, ok := asInt64(raw["schemaVersion"]); !ok || v != SchemaVersion {
		return CreateEmpty(now), false
	}
	return Normalize(raw, now), true
}

// Normalize defensively reads a JSON-like document. Malformed fields are
// dropped; an incompatible schema version yields an empty profile.
func Normalize(input map[string]any, now time.Time) Profile {
	if input == nil {
		return CreateEmpty(now)
	}
	version, ok := asInt64(input["schemaVersion"])
	if !ok || version != SchemaVersion {
		return CreateEmpty(now)
	}

	p := CreateEmpty(now)
	if ms, ok := asInt64(input["updatedAt"]); ok && ms > 0 {
		p.UpdatedAt = time.UnixMilli(ms)
	}
	if g, ok := input["gender"].(string); ok {
		p.Gender = model.ParseGender(g)
	}

	if signals, ok := input["signals"].(map[string]any); ok {
		for _, k := range Kinds() {
			raw, ok := signals[k.String()].(map[string]any)
			if !ok {
				continue
			}
			b := p.Signals.Bucket(k)
			for key, v := range raw {
				entry, ok := v.(map[string]any)
				if !ok {
					continue
				}
				score, okScore := asFloat(entry["score"])
				lastAt, okLast := asInt64(entry["lastAt"])
				if !okScore || !okLast || lastAt <= 0 {
					continue
				}
				b[key] = ScoreEntry{Score: score, LastAt: time.UnixMilli(lastAt)}
			}
		}
	}

	p.RecentHandles = asStrings(input["recentHandles"])
	if cd, ok := input["cooldowns"].(map[string]any); ok {
		p.Cooldowns.RecentlyServedHandles = asStrings(cd["recentlyServedHandles"])
	}
	return Sanitize(p, now, DefaultLimits())
}

// Sanitize enforces every profile invariant and applies limits. Keys are
// re-normalized (colliding keys keep the larger score and the later time),
// scores are clamped to (0, MaxScore], timestamps in the future are pulled
// back to now, and lists are de-duplicated and capped.
func Sanitize(p Profile, now time.Time, limits Limits) Profile {
	out := CreateEmpty(now)
	out.UpdatedAt = p.UpdatedAt
	if out.UpdatedAt.IsZero() || out.UpdatedAt.After(now) {
		out.UpdatedAt = now
	}
	switch p.Gender {
	case model.GenderMale, model.GenderFemale:
		out.Gender = p.Gender
	}

	for _, k := range Kinds() {
		clean := sanitizeBucket(p.Signals.Bucket(k), now)
		if limit := limits.Buckets[k]; limit >= 0 && len(clean) > limit {
			kept := make(Bucket, limit)
			for _, ks := range TopKeys(clean, limit, now, DefaultHalfLifeDays) {
				kept[ks.Key] = clean[ks.Key]
			}
			clean = kept
		}
		out.Signals.setBucket(k, clean)
	}

	out.RecentHandles = pushFront(nil, p.RecentHandles, max(limits.RecentHandles, 0))
	out.Cooldowns.RecentlyServedHandles = pushFront(nil, p.Cooldowns.RecentlyServedHandles, max(limits.ServedHandles, 0))
	return out
}

func sanitizeBucket(src Bucket, now time.Time) Bucket {
	out := make(Bucket, len(src))
	for key, e := range src {
		k := NormalizeKey(key)
		if !validKey(k) {
			continue
		}
		if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) || e.Score <= 0 || e.LastAt.IsZero() {
			continue
		}
		e.Score = clampScore(e.Score)
		if e.Score <= 0 {
			continue
		}
		if e.LastAt.After(now) {
			e.LastAt = now
		}
		if prev, dup := out[k]; dup {
			if prev.Score > e.Score {
				e.Score = prev.Score
			}
			if prev.LastAt.After(e.LastAt) {
				e.LastAt = prev.LastAt
			}
		}
		out[k] = e
	}
	return out
}

// Hash returns a stable digest of the gender and the top keys of each bucket
// by raw score. It is a cache key, not a security digest.
func Hash(p Profile) string {
	var sb strings.Builder
	sb.WriteString("v")
	sb.WriteString(strconv.Itoa(SchemaVersion))
	sb.WriteByte('|')
	sb.WriteString(string(p.Gender))
	for _, k := range Kinds() {
		b := p.Signals.Bucket(k)
		keys := make([]string, 0, len(b))
		for key := range b {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			si, sj := b[keys[i]].Score, b[keys[j]].Score
			if si != sj {
				return si > sj
			}
			return keys[i] < keys[j]
		})
		if len(keys) > hashTopN {
			keys = keys[:hashTopN]
		}
		sb.WriteByte('|')
		sb.WriteString(k.String())
		sb.WriteByte(':')
		sb.WriteString(strings.Join(keys, ","))
	}
	return strconv.FormatUint(xxhash.Sum64String(sb.String()), 16)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
