package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/events"
)

// Core bundles the authentication collaborators built once at startup.
type Core struct {
	Hasher    *PasswordHasher
	Tokens    *TokenManager
	Resolver  *Resolver
	Federated *FederatedVerifier
	Cognito   *CognitoAuthenticator
}

// CoreDependencies are the external collaborators of the auth core.
type CoreDependencies struct {
	APIKeys    APIKeyStore
	Dispatcher events.Dispatcher
	Recorder   ResolutionRecorder
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// NewCore builds the hasher, token manager and the verifier chain selected
// by configuration: local JWT, then Cognito when enabled, then API keys.
func NewCore(ctx context.Context, cfg config.Config, deps CoreDependencies) (*Core, error) {
	hasher, err := NewPasswordHasher(cfg.Auth)
	if err != nil {
		return nil, err
	}
	tokens, err := NewTokenManager(cfg.Auth)
	if err != nil {
		return nil, err
	}

	core := &Core{Hasher: hasher, Tokens: tokens}
	verifiers := []IdentityVerifier{NewLocalJWTVerifier(tokens)}

	if cfg.Auth.EnableFederatedAuth {
		keys := NewKeySet(cfg.Cognito.JWKSURL(), cfg.Cognito.JWKSCacheTTL(), deps.HTTPClient)
		core.Federated = NewFederatedVerifier(keys, cfg.Cognito.Issuer(), cfg.Cognito.ClientID)
		verifiers = append(verifiers, core.Federated)

		core.Cognito, err = NewCognitoAuthenticator(ctx, cfg.Cognito, core.Federated)
		if err != nil {
			return nil, err
		}
	}

	if deps.APIKeys != nil {
		verifiers = append(verifiers, NewAPIKeyVerifier(deps.APIKeys, hasher, deps.Dispatcher, deps.Logger))
	}

	core.Resolver = NewResolver(deps.Logger, deps.Recorder, verifiers...)
	return core, nil
}
