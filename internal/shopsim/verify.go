package shopsim

import (
	"fmt"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/reel"
)

// Server page bounds checked when the client leaves the limit to the server.
const (
	maxFeedPage = 60
	maxReelPage = reel.MaxPageSize + 1 // the seed leads page zero
)

// CheckPage returns the problems found in one page: empty or repeated
// handles and more items than allowed.
func CheckPage(surface string, items []model.Candidate, maxItems int) []string {
	var out []string
	if maxItems > 0 && len(items) > maxItems {
		out = append(out, fmt.Sprintf("%s: %d items exceed limit %d", surface, len(items), maxItems))
	}
	seen := make(map[string]struct{}, len(items))
	for i, c := range items {
		if c.Handle == "" {
			out = append(out, fmt.Sprintf("%s: item %d has no handle", surface, i))
			continue
		}
		if _, dup := seen[c.Handle]; dup {
			out = append(out, fmt.Sprintf("%s: handle %q repeated within a page", surface, c.Handle))
		}
		seen[c.Handle] = struct{}{}
	}
	return out
}

// reelTracker checks the properties that span a reel session: the seed
// leads page zero and nothing is served twice.
type reelTracker struct {
	seed   string
	served map[string]int
}

func newReelTracker(seed string) *reelTracker {
	return &reelTracker{seed: seed, served: map[string]int{}}
}

func (t *reelTracker) observe(page int, items []model.Candidate) []string {
	var out []string
	if page == 0 && (len(items) == 0 || items[0].Handle != t.seed) {
		out = append(out, fmt.Sprintf("reel %s: page 0 does not start with the seed", t.seed))
	}
	for _, c := range items {
		if prev, ok := t.served[c.Handle]; ok {
			out = append(out, fmt.Sprintf("reel %s: %q on page %d was already served on page %d", t.seed, c.Handle, page, prev))
			continue
		}
		t.served[c.Handle] = page
	}
	return out
}
