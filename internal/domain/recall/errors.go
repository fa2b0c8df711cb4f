package recall

import "errors"

// Sentinel kinds for index errors.
var (
	ErrEmptyIndex = errors.New("no valid item embeddings to index")
)
