// Package program holds the start-up and shutdown plumbing shared by the
// command line tools: log levels, signal handling and exit codes.
package program

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/reconquest/gitlab-ci-stats/internal/config"
	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
	"github.com/reconquest/sign-go"
)

func SetupLogging(debug bool, trace bool) {
	if debug {
		log.SetLevel(log.LevelDebug)
	}

	if trace {
		log.SetLevel(log.LevelTrace)
	}
}

// LoadConfig loads the configuration file with the log levels from flags
// already applied, then applies the levels from the file on top.
func LoadConfig(path string, debug bool, trace bool) (*config.Config, error) {
	SetupLogging(debug, trace)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	SetupLogging(cfg.Log.Debug || debug, cfg.Log.Trace || trace)

	return cfg, nil
}

// WithSignals returns a context that is canceled on SIGINT, SIGTERM or
// SIGQUIT.
func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go sign.Notify(func(signal os.Signal) bool {
		log.Warningf(nil, "got signal: %s, interrupting", signal)
		cancel()
		return false
	}, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	return ctx, cancel
}

// RequireConfigured prints a help message and exits if the configuration has
// no way to reach GitLab.
func RequireConfigured(
	name string,
	path string,
	cfg *config.Config,
	needDomain bool,
) {
	err := cfg.Validate(needDomain)
	if err == nil {
		return
	}

	if !errors.Is(err, config.ErrorNotConfigured) {
		Fatalf(err, "invalid configuration")
	}

	config.ShowMessageNotConfigured(name, path, *cfg)

	if cfg.Token == "" && cfg.TokenPath == "" {
		os.Exit(failure.ExitAuth)
	}

	os.Exit(failure.ExitGeneric)
}

// Fatalf logs the error and exits with the code of its failure kind.
func Fatalf(err error, message string, args ...interface{}) {
	if errors.Is(err, context.Canceled) || karma.Contains(err, context.Canceled) {
		log.Warningf(nil, "interrupted")
		os.Exit(failure.ExitGeneric)
	}

	log.Errorf(err, message, args...)

	os.Exit(failure.ExitCode(err))
}
