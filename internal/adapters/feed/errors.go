package feed

import "errors"

// ErrNilCallback is returned by Subscribe when no callback is given.
var ErrNilCallback = errors.New("feed: nil callback")
