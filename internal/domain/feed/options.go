package feed

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithHalfLife sets the decay half-life in days used for every lookup.
func WithHalfLife(days float64) Option {
	return func(r *Ranker) {
		if days > 0 {
			r.halfLife = days
		}
	}
}

// WithVendorCap limits any vendor to capN appearances within the first
// window slots of a page.
func WithVendorCap(capN, window int) Option {
	return func(r *Ranker) {
		if capN > 0 {
			r.vendorCap = capN
		}
		if window > 0 {
			r.window = window
		}
	}
}

// WithCooldownPenalty sets the score penalty for recently served handles.
func WithCooldownPenalty(p float64) Option {
	return func(r *Ranker) {
		if p >= 0 {
			r.cooldownPenalty = p
		}
	}
}

// WithDebugRows sets how many score rows a debug pass reports.
func WithDebugRows(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.debugRows = n
		}
	}
}
