package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fusione/authcore/config"
	"github.com/fusione/authcore/password"
	"github.com/spf13/cobra"
)

// NewHashCmd prints the configured hash of a password, for seeding
// directories by hand.
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [password]",
		Short: "Hash a password with the configured algorithm",
		Long: `Hash a password with the configured algorithm and cost. The password is
read from the first argument, or from the first line of stdin when no
argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configFile)
			if err != nil {
				return err
			}

			plain := ""
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				plain = strings.TrimRight(line, "\r\n")
			}
			if plain == "" {
				return errors.New("password is required")
			}

			argonCfg := password.DefaultArgon2Config()
			argonCfg.Memory = settings.Password.Argon2Memory
			argonCfg.Time = settings.Password.Argon2Time
			argonCfg.Parallelism = settings.Password.Argon2Parallelism

			hasher, err := password.NewMulti(settings.Password.Algorithm, settings.Password.BcryptCost, argonCfg)
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
