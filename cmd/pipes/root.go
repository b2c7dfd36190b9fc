// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nickandperla.net/pipes/internal/config"
	"nickandperla.net/pipes/internal/store"
	"nickandperla.net/pipes/pkg/pipes"
)

// app is what every subcommand shares once the config is loaded.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   store.Store
	runtime *pipes.Runtime
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var cfgFile string

	root := &cobra.Command{
		Use:   "pipes",
		Short: "Run pipes scripts",
		Long: `pipes runs scripts of the form

    origin > pipe > pipe -> pipe

where the origin expands into items and every pipe transforms them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cfgFile)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.config/pipes/config.yaml)")
	flags.String("driver", "", "macro store driver: memory, sqlite or bolt")
	flags.String("db", "", "macro store path")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Uint64("seed", 0, "random seed for reproducible runs")
	flags.Bool("no-stdlib", false, "disable the built-ins and the prelude")
	_ = viper.BindPFlag("store.driver", flags.Lookup("driver"))
	_ = viper.BindPFlag("store.path", flags.Lookup("db"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("engine.seed", flags.Lookup("seed"))
	_ = viper.BindPFlag("no_stdlib", flags.Lookup("no-stdlib"))

	root.AddCommand(
		newRunCmd(a),
		newReplCmd(a),
		newMacroCmd(a),
		newPipesCmd(a),
		newCheckCmd(),
	)
	return root
}

func (a *app) setup(cfgFile string) error {
	if err := config.Init(cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger, err = newLogger(cfg.Log); err != nil {
		return err
	}

	if a.store, err = store.Open(cfg.Store.Driver, cfg.Store.Path); err != nil {
		return errors.Wrap(err, "opening macro store")
	}
	if cfg.Macros.File != "" {
		f, err := os.Open(cfg.Macros.File)
		if err != nil {
			return errors.Wrap(err, "opening macros file")
		}
		defer f.Close()
		n, err := store.Import(a.store, f)
		if err != nil {
			return err
		}
		a.logger.Debug("imported macros", zap.String("file", cfg.Macros.File), zap.Int("count", n))
	}

	opts := []pipes.Option{
		pipes.WithStore(a.store),
		pipes.WithLogger(a.logger),
		pipes.WithMaxChars(cfg.Engine.MaxChars),
		pipes.WithMaxMacroDepth(cfg.Engine.MaxMacroDepth),
		pipes.WithGroupWorkers(cfg.Engine.GroupWorkers),
		pipes.WithJSTimeout(cfg.Engine.JSTimeout),
		pipes.WithFilesRoot(cfg.Files.Root),
	}
	if cfg.Engine.Seed != 0 {
		opts = append(opts, pipes.WithSeed(cfg.Engine.Seed))
	}
	if cfg.LLM.URL != "" {
		opts = append(opts, pipes.WithOllama(cfg.LLM.URL, cfg.LLM.Model, cfg.LLM.Timeout()))
	}
	if viper.GetBool("no_stdlib") {
		opts = append(opts, pipes.WithNoStdlib())
	}
	a.runtime, err = pipes.New(opts...)
	return err
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.runtime != nil {
		return a.runtime.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// newLogger builds a zap logger writing to stderr.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
