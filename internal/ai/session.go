package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SessionConfig is the tunable state a session applies to every call unless
// the call site overrides it.
type SessionConfig struct {
	ProviderID  string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Session mediates all calls into the active provider. It is an explicit,
// caller-carried object rather than a package-level singleton: callers that
// want isolation construct one session per scope, callers that accept the
// documented switch race may share one.
//
// Session deliberately holds no lock around the active provider: provider
// switches are rare and idempotent, and a request racing a switch executes
// against a fully initialized provider either way.
type Session struct {
	registry *Registry
	active   Provider
	cfg      SessionConfig
}

// NewSession creates an uninitialized session over the given registry.
// Operations fail with ErrNotInitialized until Initialize succeeds.
func NewSession(registry *Registry, cfg SessionConfig) *Session {
	return &Session{registry: registry, cfg: cfg}
}

// Initialize resolves providerID from the registry, falling back to the
// designated default when the id is empty or unknown, initializes it, and
// adopts it as active.
func (s *Session) Initialize(ctx context.Context, providerID string) error {
	p, ok := s.registry.Get(providerID)
	if !ok {
		if providerID != "" {
			log.Warn().Str("provider", providerID).Str("fallback", s.registry.DefaultID()).
				Msg("unknown provider id, falling back to default")
		}
		p = s.registry.Default()
		if p == nil {
			return ErrNoDefaultProvider
		}
	}
	return s.adopt(ctx, p)
}

// SwitchProvider activates the provider with the given id. Unlike
// Initialize it does not fall back: an unknown id fails with
// ErrProviderNotFound and leaves the previously active provider and config
// unchanged.
func (s *Session) SwitchProvider(ctx context.Context, providerID string) error {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, providerID)
	}
	return s.adopt(ctx, p)
}

// adopt initializes p and, on success, makes it the active provider. The
// model-reset policy applies only to local providers: their static model
// list is authoritative, so an unsupported configured model is forced back
// to the first supported id. Cloud backends expose many valid models the
// static list cannot enumerate, so the configured id is trusted verbatim.
func (s *Session) adopt(ctx context.Context, p Provider) error {
	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize provider %q: %w", p.ID(), err)
	}

	cfg := s.cfg
	cfg.ProviderID = p.ID()
	if p.Type() == ProviderTypeLocal && !supportsModel(p, cfg.Model) {
		models := p.Models()
		if len(models) > 0 {
			log.Warn().Str("provider", p.ID()).Str("model", cfg.Model).Str("reset_to", models[0]).
				Msg("configured model not supported by local provider, resetting")
			cfg.Model = models[0]
		}
	}

	s.active = p
	s.cfg = cfg
	return nil
}

// ActiveProviderID returns the id of the active provider, or "" when the
// session is uninitialized.
func (s *Session) ActiveProviderID() string {
	if s.active == nil {
		return ""
	}
	return s.active.ID()
}

// Config returns the current session config.
func (s *Session) Config() SessionConfig {
	return s.cfg
}

// SetConfig replaces the stored tunables (model, temperature, max tokens)
// without touching the active provider.
func (s *Session) SetConfig(cfg SessionConfig) {
	cfg.ProviderID = s.cfg.ProviderID
	s.cfg = cfg
}

// Generate delegates to the active provider with merged options.
func (s *Session) Generate(ctx context.Context, conv *ConversationContext, message string, opts Options) (*GenerateResult, error) {
	if s.active == nil {
		return nil, ErrNotInitialized
	}
	return s.active.Generate(ctx, conv, message, s.merge(opts))
}

// GenerateText delegates to the active provider with merged options.
func (s *Session) GenerateText(ctx context.Context, conv *ConversationContext, message string, opts Options) (*GenerateResult, error) {
	if s.active == nil {
		return nil, ErrNotInitialized
	}
	return s.active.GenerateText(ctx, conv, message, s.merge(opts))
}

// Respond delegates the unified reply+assessment round trip to the active
// provider with merged options.
func (s *Session) Respond(ctx context.Context, conv *ConversationContext, message string, opts Options) (*UnifiedResponse, error) {
	if s.active == nil {
		return nil, ErrNotInitialized
	}
	return s.active.Respond(ctx, conv, message, s.merge(opts))
}

// RichTranslate delegates to the active provider with merged options.
func (s *Session) RichTranslate(ctx context.Context, text string, opts Options) (*RichTranslation, error) {
	if s.active == nil {
		return nil, ErrNotInitialized
	}
	return s.active.RichTranslate(ctx, text, s.merge(opts))
}

// CreateThread opens a server-side thread on providers that manage their
// own history; others fail with ErrThreadsUnsupported.
func (s *Session) CreateThread(ctx context.Context) (string, error) {
	if s.active == nil {
		return "", ErrNotInitialized
	}
	mh, ok := s.active.(ManagedHistoryProvider)
	if !ok {
		return "", ErrThreadsUnsupported
	}
	return mh.CreateThread(ctx)
}

// GetThreadMessages reads a server-side thread on providers that manage
// their own history; others fail with ErrThreadsUnsupported.
func (s *Session) GetThreadMessages(ctx context.Context, threadID string) ([]ChatMessage, error) {
	if s.active == nil {
		return nil, ErrNotInitialized
	}
	mh, ok := s.active.(ManagedHistoryProvider)
	if !ok {
		return nil, ErrThreadsUnsupported
	}
	return mh.GetThreadMessages(ctx, threadID)
}

// merge overlays call-site options on the session config. Explicit call-site
// values always win; zero values inherit.
func (s *Session) merge(opts Options) Options {
	if opts.Model == "" {
		opts.Model = s.cfg.Model
	}
	if opts.Temperature == nil {
		opts.Temperature = s.cfg.Temperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = s.cfg.MaxTokens
	}
	return opts
}

func supportsModel(p Provider, model string) bool {
	if model == "" {
		return false
	}
	for _, m := range p.Models() {
		if m == model {
			return true
		}
	}
	return false
}
