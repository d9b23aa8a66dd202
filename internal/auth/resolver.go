package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// Resolution outcomes reported to the recorder.
const (
	OutcomeResolved    = "resolved"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
)

// ResolutionRecorder receives one observation per verifier attempt.
type ResolutionRecorder interface {
	RecordAuthAttempt(method, outcome string)
}

// CredentialResolver maps a raw credential to an identity.
type CredentialResolver interface {
	Resolve(ctx context.Context, credential string) (*domain.Identity, bool)
}

// Resolver tries an ordered list of verifiers and returns the first identity.
// It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	verifiers []IdentityVerifier
	logger    *zap.Logger
	recorder  ResolutionRecorder
}

// NewResolver builds a resolver over verifiers in priority order.
func NewResolver(logger *zap.Logger, recorder ResolutionRecorder, verifiers ...IdentityVerifier) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{verifiers: verifiers, logger: logger, recorder: recorder}
}

// Resolve returns the identity for credential, or false when no verifier
// accepts it. Upstream failures fall through to the next verifier, so an
// unreachable store or provider never grants access.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*domain.Identity, bool) {
	if credential == "" {
		return nil, false
	}

	for _, v := range r.verifiers {
		if ctx.Err() != nil {
			return nil, false
		}

		identity, err := v.Verify(ctx, credential)
		switch {
		case err != nil:
			r.record(v.Name(), OutcomeUnavailable)
			r.logger.Warn("credential verification unavailable",
				zap.String("method", v.Name()), zap.Error(err))
		case identity != nil:
			if ctx.Err() != nil {
				return nil, false
			}
			r.record(v.Name(), OutcomeResolved)
			return identity, true
		default:
			r.record(v.Name(), OutcomeRejected)
		}
	}
	return nil, false
}

// Methods lists verifier names in resolution order.
func (r *Resolver) Methods() []string {
	names := make([]string, 0, len(r.verifiers))
	for _, v := range r.verifiers {
		names = append(names, v.Name())
	}
	return names
}

func (r *Resolver) record(method, outcome string) {
	if r.recorder != nil {
		r.recorder.RecordAuthAttempt(method, outcome)
	}
}
