package stats

import "errors"

// ErrInvalidFilter reports a filter value that cannot be interpreted.
var ErrInvalidFilter = errors.New("invalid filter")
