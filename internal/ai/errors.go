// Error values for the ai package. Failures that indicate the service
// itself is unusable (unknown provider, nothing initialized, upstream
// outage) surface as these sentinels or wrapped upstream errors. Failures
// that would only corrupt the structural contract of a response (malformed
// JSON) are absorbed by the protocol layer and never reach here.

package ai

import "errors"

var (
	// ErrProviderNotFound is returned when a provider id is not registered.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrNotInitialized is returned when an operation is invoked on a
	// session with no active provider.
	ErrNotInitialized = errors.New("no active provider: session not initialized")

	// ErrNoDefaultProvider is returned when initialization falls back to the
	// default provider but the registry has none.
	ErrNoDefaultProvider = errors.New("registry has no default provider")

	// ErrThreadsUnsupported is returned for managed-thread operations on a
	// provider that does not keep server-side history.
	ErrThreadsUnsupported = errors.New("active provider does not support managed threads")

	// ErrAudioUnsupported is returned when audio input is supplied to a
	// provider that cannot process it and no draft transcription exists to
	// fall back on.
	ErrAudioUnsupported = errors.New("provider does not accept audio input")
)
