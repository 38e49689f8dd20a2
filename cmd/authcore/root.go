package main

import (
	"github.com/spf13/cobra"
)

var configFile string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "Authentication and session core",
		Long: `authcore registers users, authenticates them, and manages their
sessions and permissions for the case-management suite.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, JSON or .env)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHashCmd())
	cmd.AddCommand(NewDemoCmd())
	cmd.AddCommand(NewLoadtestCmd())

	return cmd
}
