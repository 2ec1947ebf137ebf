package directory

import "errors"

// Sentinel kinds for directory errors.
var (
	ErrNotFound   = errors.New("directory: not found")
	ErrPermission = errors.New("directory: permission denied")
)
