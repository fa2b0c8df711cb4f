package artifact

import "errors"

var (
	// ErrArtifactNotLoaded means there is no usable artifact at all.
	ErrArtifactNotLoaded = errors.New("embedding artifact not loaded")
	// ErrDimensionMismatch means the scorer head was trained for other embeddings.
	ErrDimensionMismatch = errors.New("artifact dimension mismatch")
)
