package session

import "errors"

// ErrNotFound indicates the session id is unknown or has expired. It is
// surfaced to callers and never auto-recovered on image attachment.
var ErrNotFound = errors.New("session not found")
