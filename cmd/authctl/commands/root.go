// Package commands implements the authctl administration CLI.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/observability"
	"github.com/spec-kit/druginsight-api/internal/persistence"
	"github.com/spec-kit/druginsight-api/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "DrugInsight authentication administration",
	Long: `authctl manages the DrugInsight authentication store: schema migrations,
local accounts, password digests and API keys.

Configuration is read from the same environment variables (and .env file)
as the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(apiKeyCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// env is the configuration and logger shared by every subcommand.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// store opens the database and the repositories built on it. The caller
// closes the returned Postgres.
type store struct {
	pg     *persistence.Postgres
	users  repository.UserRepository
	keys   repository.APIKeyRepository
	hasher *auth.PasswordHasher
}

func (e *env) openStore(ctx context.Context) (*store, error) {
	if e.cfg.Postgres.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(ctx, e.cfg.Postgres, e.logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	hasher, err := auth.NewPasswordHasher(e.cfg.Auth)
	if err != nil {
		pg.Close()
		return nil, err
	}
	return &store{
		pg:     pg,
		users:  repository.NewUserRepository(pg.PoolHandle()),
		keys:   repository.NewAPIKeyRepository(pg.PoolHandle()),
		hasher: hasher,
	}, nil
}
