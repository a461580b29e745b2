package compiler

import "errors"

// ErrCompilation marks an internal invariant violation hit while mapping
// validated fields to manifests. With valid input it should never occur;
// callers treat it as a defect, not a user error.
var ErrCompilation = errors.New("manifest compilation failed")
