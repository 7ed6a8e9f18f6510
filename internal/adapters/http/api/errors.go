package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrMissingMessage = errors.New("message is required")
	ErrMissingImage   = errors.New("image payload is required")
	ErrMissingSession = errors.New("session_id is required")
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)
