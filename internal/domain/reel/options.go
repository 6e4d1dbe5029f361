package reel

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithHalfLife sets the decay half-life in days for affinity lookups.
func WithHalfLife(days float64) Option {
	return func(r *Ranker) {
		if days > 0 {
			r.halfLife = days
		}
	}
}

// WithEarlyGuard sets how many leading slots of the first page are protected
// from category drift. Zero disables the guard.
func WithEarlyGuard(slots int) Option {
	return func(r *Ranker) {
		if slots >= 0 {
			r.guardSlots = slots
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
