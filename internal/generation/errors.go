package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrStreamDone signals the normal end of a progress stream.
	ErrStreamDone = errors.New("progress stream exhausted")

	// ErrGenerationFailed is returned when song generation fails for a
	// general, non-transient reason.
	ErrGenerationFailed = errors.New("song generation failed")

	// ErrTransientFailure is returned for temporary backend errors that might
	// resolve on retry.
	ErrTransientFailure = errors.New("transient error during song generation")

	// ErrInvalidConfig is returned when a pipeline or client configuration is
	// invalid.
	ErrInvalidConfig = errors.New("invalid generation configuration")
)
