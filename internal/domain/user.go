package domain

import "time"

// Role names carried in tokens and on user rows.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the domain model for platform accounts.
type User struct {
	ID           string
	Email        string
	PasswordHash string // empty for federated-only accounts
	FirstName    string
	LastName     string
	Organization *string
	Role         string
	IsActive     bool
	IsVerified   bool
	LastLogin    *time.Time
	CognitoSub   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity builds the request identity for this user.
func (u *User) Identity(authType AuthType) *Identity {
	id := &Identity{
		SubjectID: u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		AuthType:  authType,
	}
	if u.Organization != nil {
		id.Organization = *u.Organization
	}
	return id
}
