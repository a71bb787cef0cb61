// Package cli implements the orc command-line interface: the CLI Front-End
// (C9), a reference client of the Integration Surface plus the "serve"
// command that hosts it.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/orc/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// Command group IDs.
const (
	groupCore    = "core"
	groupAttempt = "attempt"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "orc",
	Short: "Task-attempt lifecycle engine: isolated, reproducible coding-agent runs against git repos",
	Long: `orc provisions an isolated git worktree per task attempt, launches a
pluggable coding-agent executor against it, and exposes the attempt's
lifecycle (logs, diff, rebase, merge, follow-up, PR creation) over a
small HTTP surface and this CLI.

Quick start:
  orc init                       Scaffold .orc/config.yaml
  orc serve                      Start the Integration Surface
  orc attempt create P T         Create an attempt for task T of project P
  orc attempt list P T           List attempts for task T`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .orc/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Core Commands:"},
		&cobra.Group{ID: groupAttempt, Title: "Attempt Lifecycle:"},
	)

	addCmd(newInitCmd(), groupCore)
	addCmd(newServeCmd(), groupCore)
	addCmd(newAttemptCmd(), groupAttempt)
}

// addCmd adds a command to root with the specified group.
func addCmd(cmd *cobra.Command, groupID string) {
	cmd.GroupID = groupID
	rootCmd.AddCommand(cmd)
}

// newInitCmd creates the init command, scaffolding .orc/config.yaml.
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold .orc/config.yaml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if err := config.Init(force); err != nil {
				return err
			}
			fmt.Println("initialized: .orc/config.yaml")
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite existing configuration")
	return cmd
}

// initConfig discovers .orc/config.yaml via viper so --config
// and verbose logging of the resolved path work the same way the
// teacher's CLI bootstrap did; the actual typed Config used by "serve"
// is loaded separately via config.Load().
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.OrcDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("ORC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}
