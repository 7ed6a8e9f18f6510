package descriptor

import "errors"

// Sentinel kinds for extraction errors.
var (
	// ErrUnreadableImage means the bytes did not decode as a supported
	// raster format.
	ErrUnreadableImage = errors.New("unreadable image")

	// ErrNoFaceDetected means face localization failed. It is a reported
	// condition, not fatal: the returned descriptor is still usable in
	// degraded form with FaceDetected=false.
	ErrNoFaceDetected = errors.New("no face detected")
)
