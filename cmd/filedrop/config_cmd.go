package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"filedrop/internal/config"
)

func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change configuration",
	}

	cmd.AddCommand(
		newConfigGetCmd(cfg),
		newConfigSetCmd(),
		newConfigListCmd(cfg),
		newConfigPathCmd(),
	)
	return cmd
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := cfg.Get(args[0])
			if err != nil {
				return fmt.Errorf("%w (allowed: %s)", err, strings.Join(config.AllowedKeys(), ", "))
			}
			return writePlain("%s\n", value)
		},
	}
}

func newConfigListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every key with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range config.AllowedKeys() {
				value, err := cfg.Get(key)
				if err != nil {
					return err
				}
				if err := writePlain("%s = %s\n", key, value); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the global and project config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := config.GlobalPath()
			if err != nil {
				return err
			}
			project, err := config.ProjectPath()
			if err != nil {
				return err
			}
			_ = writePlain("global: %s\n", global)
			return writePlain("project: %s\n", project)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a key to the project (or global) config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pathFn := config.ProjectPath
			if global {
				pathFn = config.GlobalPath
			}
			path, err := pathFn()
			if err != nil {
				return err
			}
			if err := config.SetKey(path, args[0], args[1]); err != nil {
				return err
			}
			return writePlain("set %s in %s\n", args[0], path)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to the global config (~/.filedrop.toml)")
	return cmd
}
