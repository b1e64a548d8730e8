package model

import "errors"

// ErrNotTrained is returned by ranking, selection and prediction operations
// before any successful Train call.
var ErrNotTrained = errors.New("model not trained")

// InvalidInputError reports malformed training input, such as an empty
// valid-preference set after tie filtering.
type InvalidInputError struct {
	Reason string
}

func (e InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}
