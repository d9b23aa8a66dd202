package domain

// AuthType records which credential resolved an identity.
type AuthType string

const (
	AuthTypeJWT       AuthType = "jwt"
	AuthTypeFederated AuthType = "federated"
	AuthTypeAPIKey    AuthType = "api_key"
)

// TokenType differentiates access vs refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	SubjectID    string   `json:"user_id"`
	Email        string   `json:"email"`
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	Role         string   `json:"role"`
	Organization string   `json:"organization,omitempty"`
	AuthType     AuthType `json:"auth_type"`
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}
