package cursor

import "slices"

// Pick returns up to n handles to fetch next, in round-robin order starting
// at Index and skipping exhausted handles.
func (w Walk) Pick(handles []string, n int) []string {
	if len(handles) == 0 || n <= 0 {
		return nil
	}
	out := make([]string, 0, min(n, len(handles)))
	start := w.Index % len(handles)
	if start < 0 {
		start = 0
	}
	for i := 0; i < len(handles) && len(out) < n; i++ {
		h := handles[(start+i)%len(handles)]
		if w.IsExhausted(h) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Token returns the continuation token for handle ("" for the first page).
func (w Walk) Token(handle string) string {
	return w.Tokens[handle]
}

// IsExhausted reports whether handle has no further pages.
func (w Walk) IsExhausted(handle string) bool {
	return slices.Contains(w.Exhausted, handle)
}

// Record stores the outcome of fetching handle: the token of its next page,
// or exhaustion when it has none.
func (w *Walk) Record(handle, next string, hasNext bool) {
	if !hasNext || next == "" {
		if w.Tokens != nil {
			delete(w.Tokens, handle)
		}
		if !w.IsExhausted(handle) {
			w.Exhausted = append(w.Exhausted, handle)
		}
		return
	}
	if w.Tokens == nil {
		w.Tokens = make(map[string]string)
	}
	w.Tokens[handle] = next
}

// Advance moves the rotation start by k handles.
func (w *Walk) Advance(k, total int) {
	if total <= 0 {
		w.Index = 0
		return
	}
	w.Index = (w.Index + k) % total
}

// Done reports whether every handle is exhausted.
func (w Walk) Done(handles []string) bool {
	for _, h := range handles {
		if !w.IsExhausted(h) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of w.
func (w Walk) Clone() Walk {
	out := Walk{Index: w.Index, Exhausted: slices.Clone(w.Exhausted)}
	if w.Tokens != nil {
		out.Tokens = make(map[string]string, len(w.Tokens))
		for k, v := range w.Tokens {
			out.Tokens[k] = v
		}
	}
	return out
}
