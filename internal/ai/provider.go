package ai

import "context"

// ProviderType distinguishes backends running on the local machine from
// hosted APIs. The session's model-reset policy branches on it: local
// backends have a small static model list the session can trust, cloud
// backends expose many valid models the static list cannot enumerate.
type ProviderType string

const (
	ProviderTypeLocal ProviderType = "local"
	ProviderTypeCloud ProviderType = "cloud"
)

// Provider is the capability contract every AI backend implements. All
// methods that reach the network take a context and return explicit errors;
// upstream failures are propagated unwrapped in meaning (no retries here).
type Provider interface {
	// ID is the stable registry key, e.g. "openai", "ollama".
	ID() string

	// Type reports whether this backend is local or cloud-hosted.
	Type() ProviderType

	// Models lists the statically known model ids. For cloud providers this
	// is advisory only.
	Models() []string

	// Initialize verifies configuration (keys, endpoints) before first use.
	Initialize(ctx context.Context) error

	// IsAvailable cheaply probes whether the backend is reachable.
	IsAvailable(ctx context.Context) bool

	// Generate produces a free-form tutor reply; it may request spoken
	// output when opts.Voice is set and the backend supports audio.
	Generate(ctx context.Context, conv *ConversationContext, message string, opts Options) (*GenerateResult, error)

	// GenerateText is the text-only variant, routed to a cheaper model
	// class where the backend distinguishes one.
	GenerateText(ctx context.Context, conv *ConversationContext, message string, opts Options) (*GenerateResult, error)

	// Respond performs the unified round trip: one call yields the reply
	// plus the structured assessment. Decode failures are absorbed into a
	// neutral-default UnifiedResponse; only upstream failures error.
	Respond(ctx context.Context, conv *ConversationContext, message string, opts Options) (*UnifiedResponse, error)

	// RichTranslate translates a word or phrase with dictionary-style
	// detail. Same never-throw-on-bad-JSON discipline as Respond.
	RichTranslate(ctx context.Context, text string, opts Options) (*RichTranslation, error)
}

// ManagedHistoryProvider is the narrower contract for backends that own
// their conversation history server-side. Call sites check for it with a
// type assertion instead of optional methods on Provider.
type ManagedHistoryProvider interface {
	Provider

	// CreateThread opens a new server-side thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// GetThreadMessages returns the turns stored in a server-side thread.
	GetThreadMessages(ctx context.Context, threadID string) ([]ChatMessage, error)
}
