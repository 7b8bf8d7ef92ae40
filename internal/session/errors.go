package session

import "errors"

var (
	// ErrSessionCreation indicates the base directory was unwritable or the
	// ID retry budget was exhausted. Fatal to the calling generation run.
	ErrSessionCreation = errors.New("session creation failed")

	// ErrInvalidPath indicates a requested path would escape the session
	// root. Always a programming/input error, never silently corrected.
	ErrInvalidPath = errors.New("path escapes session root")

	// ErrFileTracking indicates a copy/rename failure while tracking an
	// artifact. The session itself remains valid.
	ErrFileTracking = errors.New("file tracking failed")

	// ErrSessionFinalized indicates a mutation was attempted on a session
	// that has already been finalized or cleaned.
	ErrSessionFinalized = errors.New("session already finalized")
)
