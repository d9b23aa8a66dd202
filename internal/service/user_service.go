package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/repository"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

// ProfileUpdate carries optional profile changes; nil fields are left as is.
type ProfileUpdate struct {
	FirstName    *string
	LastName     *string
	Organization *string
}

// UserService manages the authenticated caller's account.
type UserService struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
	logger *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, hasher *auth.PasswordHasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, hasher: hasher, logger: logger}
}

// Profile returns the caller's account. Federated callers without a linked
// local row get a profile built from their token claims.
func (s *UserService) Profile(ctx context.Context, identity *domain.Identity) (*domain.User, error) {
	user, err := s.users.GetBySubject(ctx, identity.SubjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if identity.AuthType != domain.AuthTypeFederated {
		return nil, apperrors.NewNotFound("User", nil)
	}

	profile := &domain.User{
		ID:        identity.SubjectID,
		Email:     identity.Email,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Role:      identity.Role,
		IsActive:  true,
	}
	if identity.Organization != "" {
		org := identity.Organization
		profile.Organization = &org
	}
	return profile, nil
}

// UpdateProfile applies changes to the caller's local account.
func (s *UserService) UpdateProfile(ctx context.Context, identity *domain.Identity, update ProfileUpdate) (*domain.User, error) {
	user, err := s.localUser(ctx, identity.SubjectID)
	if err != nil {
		return nil, err
	}

	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}
	if update.Organization != nil {
		org := strings.TrimSpace(*update.Organization)
		if org == "" {
			user.Organization = nil
		} else {
			user.Organization = &org
		}
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *UserService) ChangePassword(ctx context.Context, identity *domain.Identity, currentPassword, newPassword string) error {
	user, err := s.localUser(ctx, identity.SubjectID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return apperrors.NewValidationError("Password login is not enabled for this account", nil)
	}
	if !s.hasher.Verify(ctx, currentPassword, user.PasswordHash) {
		if err := ctx.Err(); err != nil {
			return apperrors.NewRequestTimeout(err)
		}
		return apperrors.NewAuthenticationError("Current password is incorrect")
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return apperrors.NewRequestTimeout(err)
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", user.ID))
	return nil
}

// GetUser returns any account by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("User", map[string]any{"id": id})
	}
	return user, err
}

func (s *UserService) localUser(ctx context.Context, subject string) (*domain.User, error) {
	user, err := s.users.GetBySubject(ctx, subject)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("User", nil)
	}
	return user, err
}
