package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kk-code-lab/humpty/internal/config"
	"github.com/kk-code-lab/humpty/internal/log"
	"github.com/kk-code-lab/humpty/internal/meta"
	"github.com/kk-code-lab/humpty/internal/ops"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	catalog    string
	jsonOut    bool
	help       bool
}

func newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.SortFlags = false
	flags.StringVar(&common.configPath, "config", "", "YAML config file")
	flags.StringVar(&common.catalog, "catalog", "", "SQLite run catalog")
	flags.BoolVar(&common.jsonOut, "json", false, "Print the result as JSON")
	flags.BoolVarP(&common.help, "help", "h", false, "Show usage")
	return flags
}

func parseFlags(flags *pflag.FlagSet, common *commonFlags, args []string) error {
	if err := flags.Parse(args); err != nil {
		return usageError(err)
	}
	if common.help {
		return errShowUsage
	}
	return nil
}

// positional merges an optional positional argument with its flag form.
// At most one of the two may be given.
func positional(flagValue string, rest []string) (string, error) {
	switch {
	case len(rest) == 0:
		return flagValue, nil
	case flagValue != "":
		return "", usageError(fmt.Errorf("unexpected argument: %s", rest[0]))
	case len(rest) > 1:
		return "", usageError(fmt.Errorf("unexpected argument: %s", rest[1]))
	}
	return rest[0], nil
}

func loadConfig(common commonFlags) (config.Config, error) {
	cfg, err := config.Load(common.configPath)
	if err != nil {
		return config.Config{}, usageError(err)
	}
	if common.catalog != "" {
		cfg.Catalog = common.catalog
	}
	return cfg, nil
}

// env holds what a command needs once its arguments are known to be valid.
type env struct {
	cfg     config.Config
	logger  *zap.Logger
	catalog *meta.Store
}

// newEnv builds the logger and opens the catalog when one is configured.
// A catalog that cannot be opened is logged and skipped unless required.
func newEnv(cfg config.Config, requireCatalog bool) (*env, error) {
	logger, err := log.NewLogger("cli", cfg.Logging)
	if err != nil {
		return nil, &exitCodeError{code: exitFailure, msg: err.Error()}
	}
	e := &env{cfg: cfg, logger: logger}
	if cfg.Catalog == "" {
		if requireCatalog {
			e.Close()
			return nil, usageError(errCatalogNotSet)
		}
		return e, nil
	}
	store, err := meta.Open(cfg.Catalog)
	if err != nil {
		if requireCatalog {
			e.Close()
			return nil, opError("catalog", err)
		}
		logger.Warn("catalog unavailable", zap.String("path", cfg.Catalog), zap.Error(err))
		return e, nil
	}
	e.catalog = store
	return e, nil
}

func (e *env) options() ops.Options {
	opts := ops.Options{
		Logger:     e.logger,
		BufferSize: e.cfg.BufferSize,
	}
	if e.catalog != nil {
		opts.Catalog = e.catalog
	}
	return opts
}

func (e *env) ctx() context.Context {
	return context.Background()
}

func (e *env) Close() {
	if e.catalog != nil {
		if err := e.catalog.Close(); err != nil {
			e.logger.Warn("catalog close failed", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}
