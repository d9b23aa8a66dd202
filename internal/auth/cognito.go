package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/domain"
)

// cognitoAPI is the slice of the Cognito client used for password login.
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cognito.InitiateAuthInput, optFns ...func(*cognito.Options)) (*cognito.InitiateAuthOutput, error)
}

// CognitoAuthenticator performs USER_PASSWORD_AUTH against a user pool and
// verifies the returned ID token.
type CognitoAuthenticator struct {
	api          cognitoAPI
	clientID     string
	clientSecret string
	verifier     *FederatedVerifier
}

// NewCognitoAuthenticator loads AWS configuration for the pool's region.
func NewCognitoAuthenticator(ctx context.Context, cfg config.CognitoConfig, verifier *FederatedVerifier) (*CognitoAuthenticator, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newCognitoAuthenticator(cognito.NewFromConfig(awsCfg), cfg.ClientID, cfg.ClientSecret, verifier), nil
}

func newCognitoAuthenticator(api cognitoAPI, clientID, clientSecret string, verifier *FederatedVerifier) *CognitoAuthenticator {
	return &CognitoAuthenticator{api: api, clientID: clientID, clientSecret: clientSecret, verifier: verifier}
}

// Authenticate returns the identity for valid credentials, (nil, nil) for
// rejected credentials, and an ErrUpstreamUnavailable-wrapped error when the
// pool could not be reached.
func (a *CognitoAuthenticator) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if a.clientSecret != "" {
		params["SECRET_HASH"] = secretHash(email, a.clientID, a.clientSecret)
	}

	out, err := a.api.InitiateAuth(ctx, &cognito.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(a.clientID),
		AuthParameters: params,
	})
	if err != nil {
		if isRejectedLogin(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: cognito: %v", ErrUpstreamUnavailable, err)
	}
	// A pending challenge (e.g. NEW_PASSWORD_REQUIRED) is not a completed login.
	if out.AuthenticationResult == nil || out.AuthenticationResult.IdToken == nil {
		return nil, nil
	}

	identity, err := a.verifier.VerifyToken(ctx, aws.ToString(out.AuthenticationResult.IdToken))
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, nil
	}
	return identity, nil
}

func isRejectedLogin(err error) bool {
	var notAuthorized *types.NotAuthorizedException
	var notFound *types.UserNotFoundException
	var notConfirmed *types.UserNotConfirmedException
	var resetRequired *types.PasswordResetRequiredException
	return errors.As(err, &notAuthorized) ||
		errors.As(err, &notFound) ||
		errors.As(err, &notConfirmed) ||
		errors.As(err, &resetRequired)
}

// secretHash computes the SECRET_HASH parameter for app clients with a secret.
func secretHash(username, clientID, clientSecret string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
