package llm

import "errors"

// ErrGeneration is returned for any failure in Complete: transport error,
// empty content, non-string content, or schema validation failure. Callers
// (the guidance scheduler, the end-of-call summary handler) must never let
// this propagate as an uncaught failure to a client connection (spec.md §4.4).
var ErrGeneration = errors.New("llm: generation failed")
