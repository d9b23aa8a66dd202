package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

var (
	userEmail        string
	userPassword     string
	userFirstName    string
	userLastName     string
	userOrganization string
	userRole         string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a local account",
	Long: `Create a local account with a password digest.

Examples:
  authctl user create --email admin@example.com --password 's3cret-passw0rd' --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if userRole != domain.RoleUser && userRole != domain.RoleAdmin {
			return errors.New("--role must be user or admin")
		}
		if len(userPassword) < 8 {
			return errors.New("--password must be at least 8 characters")
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck

		ctx := cmd.Context()
		s, err := e.openStore(ctx)
		if err != nil {
			return err
		}
		defer s.pg.Close()

		hash, err := s.hasher.Hash(ctx, userPassword)
		if err != nil {
			return err
		}
		user := &domain.User{
			Email:        strings.ToLower(strings.TrimSpace(userEmail)),
			PasswordHash: hash,
			FirstName:    userFirstName,
			LastName:     userLastName,
			Role:         userRole,
			IsActive:     true,
			IsVerified:   true,
		}
		if org := strings.TrimSpace(userOrganization); org != "" {
			user.Organization = &org
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "account email")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "initial password")
	userCreateCmd.Flags().StringVar(&userFirstName, "first-name", "", "first name")
	userCreateCmd.Flags().StringVar(&userLastName, "last-name", "", "last name")
	userCreateCmd.Flags().StringVar(&userOrganization, "organization", "", "organization")
	userCreateCmd.Flags().StringVar(&userRole, "role", domain.RoleUser, "role (user|admin)")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
}
