package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/config"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the digest of a password using the configured scheme",
	Long: `Print the digest of a password using the configured preferred scheme.

The password is read from the first argument, or from stdin when omitted.

Examples:
  authctl hash-password 's3cret-passw0rd'
  echo -n 's3cret-passw0rd' | authctl hash-password`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd, args)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		hasher, err := auth.NewPasswordHasher(cfg.Auth)
		if err != nil {
			return err
		}
		digest, err := hasher.Hash(cmd.Context(), password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), digest)
		return nil
	},
}

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return "", errors.New("password is required")
	}
	return line, nil
}
