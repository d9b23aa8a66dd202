package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/service"
)

var (
	apiKeyEmail   string
	apiKeyName    string
	apiKeyExpires int
	apiKeyID      string
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Issue and revoke API keys on behalf of a user",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key; the raw key is printed once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeyService(cmd.Context(), func(ctx context.Context, keys *service.APIKeyService, owner *domain.Identity) error {
			created, err := keys.Create(ctx, owner, apiKeyName, apiKeyExpires)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:     %s\n", created.Key.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "prefix: %s\n", created.Key.KeyPrefix)
			if created.Key.ExpiresAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "expires: %s\n", created.Key.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key:    %s\n", created.RawKey)
			return nil
		})
	},
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an API key owned by the user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeyService(cmd.Context(), func(ctx context.Context, keys *service.APIKeyService, owner *domain.Identity) error {
			if err := keys.Revoke(ctx, owner, apiKeyID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", apiKeyID)
			return nil
		})
	},
}

func withKeyService(ctx context.Context, fn func(context.Context, *service.APIKeyService, *domain.Identity) error) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	s, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.pg.Close()

	user, err := s.users.GetActiveByEmail(ctx, apiKeyEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("no active user with email %q", apiKeyEmail)
		}
		return err
	}

	keys := service.NewAPIKeyService(s.keys, s.users, s.hasher, nil, e.logger)
	return fn(ctx, keys, user.Identity(domain.AuthTypeJWT))
}

func init() {
	apiKeyCmd.PersistentFlags().StringVar(&apiKeyEmail, "email", "", "owner email")
	_ = apiKeyCmd.MarkPersistentFlagRequired("email")

	apiKeyCreateCmd.Flags().StringVar(&apiKeyName, "name", "", "key name")
	apiKeyCreateCmd.Flags().IntVar(&apiKeyExpires, "expires-in-days", 0, "lifetime in days (0 = no expiry)")
	_ = apiKeyCreateCmd.MarkFlagRequired("name")

	apiKeyRevokeCmd.Flags().StringVar(&apiKeyID, "id", "", "key id")
	_ = apiKeyRevokeCmd.MarkFlagRequired("id")

	apiKeyCmd.AddCommand(apiKeyCreateCmd)
	apiKeyCmd.AddCommand(apiKeyRevokeCmd)
}
