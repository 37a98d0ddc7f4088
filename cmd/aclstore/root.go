package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/openmined/aclstore/internal/config"
	"github.com/openmined/aclstore/internal/logging"
	"github.com/openmined/aclstore/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

// app carries the configuration and the lazily opened runtime of one invocation.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	rt      *config.Runtime
	logFile io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:          "aclstore",
		Short:        "Manage access control lists in a column-family store",
		Version:      version.Detailed(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "aclstore config file")
	flags.String("env-file", "", "load environment variables from this file (default .env if present)")
	flags.StringP("backend", "b", "", "store backend: bigtable, badger or sqlite")
	flags.String("cache", "", "cache backend: none, lru or redis")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-file", "", "also write JSON logs to this file")

	rootCmd.AddCommand(
		newInitCmd(a),
		newCreateCmd(a),
		newGetCmd(a),
		newGrantCmd(a),
		newRevokeCmd(a),
		newDeleteCmd(a),
		newExistsCmd(a),
		newApplyCmd(a),
		newVersionCmd(),
	)

	rootCmd.SetErrPrefix(red("Error:"))
	a.wrapRunE(rootCmd)
	return rootCmd
}

// wrapRunE makes every subcommand release the runtime, whether it failed or not.
func (a *app) wrapRunE(root *cobra.Command) {
	for _, sub := range root.Commands() {
		if sub.RunE == nil {
			continue
		}
		runE := sub.RunE
		sub.RunE = func(c *cobra.Command, args []string) error {
			return errors.Join(runE(c, args), a.close())
		}
	}
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	// .env first, so it can point at a config file or override keys
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("env file '%s': %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("env file '.env': %w", err)
	}

	config.SetDefaults(a.v)

	if cmd.Flags().Changed("config") {
		configFilePath, _ := cmd.Flags().GetString("config")
		a.v.SetConfigFile(configFilePath)
	} else {
		a.v.AddConfigPath(config.DefaultDataDir)
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", a.v.ConfigFileUsed(), err)
		}
	}

	a.v.BindPFlag("store.backend", cmd.Flags().Lookup("backend"))
	a.v.BindPFlag("cache.backend", cmd.Flags().Lookup("cache"))
	a.v.BindPFlag("log_level", cmd.Flags().Lookup("log-level"))
	a.v.BindPFlag("log_file", cmd.Flags().Lookup("log-file"))

	config.BindEnv(a.v)

	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := cfg.Level()
	logLevel.Set(level)
	if cfg.LogFile != "" {
		handler, closer, err := logging.File(cfg.LogFile, logLevel)
		if err != nil {
			return err
		}
		a.logFile = closer
		slog.SetDefault(slog.New(logging.Fanout(console, handler)))
	}
	slog.Debug("config loaded", "path", cfg.Path, "store", cfg.Store.Backend, "cache", cfg.Cache.Backend)
	return nil
}

// runtime opens the store and cache on first use.
func (a *app) runtime(ctx context.Context) (*config.Runtime, error) {
	if a.rt != nil {
		return a.rt, nil
	}
	rt, err := config.Open(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.rt = rt
	return rt, nil
}

func (a *app) close() error {
	var errs []error
	if a.rt != nil {
		errs = append(errs, a.rt.Close())
		a.rt = nil
	}
	if a.logFile != nil {
		slog.SetDefault(slog.New(console))
		errs = append(errs, a.logFile.Close())
		a.logFile = nil
	}
	return errors.Join(errs...)
}
