package retrieval

import "errors"

// ErrSeedNotFound is returned by Reel when the seed product does not exist.
var ErrSeedNotFound = errors.New("retrieval: seed product not found")
