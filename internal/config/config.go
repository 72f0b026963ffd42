package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/kovetskiy/ko"
	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

var ErrorNotConfigured = errors.New("gitlab domain or token is not configured")

type Config struct {
	Domain string `yaml:"domain" env:"GITLAB_DOMAIN"`

	// Token takes precedence over TokenPath.
	Token     string `yaml:"token"      env:"GITLAB_TOKEN"`
	TokenPath string `yaml:"token_path" env:"GITLAB_TOKEN_PATH"`

	Timeout time.Duration `yaml:"timeout"  env:"GITLAB_TIMEOUT"  default:"30s"`
	PerPage int           `yaml:"per_page" env:"GITLAB_PER_PAGE" default:"100"`

	Log struct {
		Debug bool `yaml:"debug" env:"GITLAB_CI_STATS_DEBUG"`
		Trace bool `yaml:"trace" env:"GITLAB_CI_STATS_TRACE"`
	} `yaml:"log"`
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "gitlab-ci-stats", "config.yaml")
}

func Load(path string) (*Config, error) {
	log.Debugf(karma.Describe("path", path), "loading configuration")

	var config Config
	err := ko.Load(path, &config, yaml.Unmarshal, ko.RequireFile(false))
	if err != nil {
		return nil, karma.Format(
			err,
			"unable to load configuration: %s", path,
		)
	}

	return &config, nil
}

// Validate reports ErrorNotConfigured when the program has no way to reach
// GitLab. It does not touch the token file.
func (config *Config) Validate(needDomain bool) error {
	if needDomain && config.Domain == "" {
		return ErrorNotConfigured
	}

	if config.Token == "" && config.TokenPath == "" {
		return ErrorNotConfigured
	}

	if config.PerPage <= 0 || config.PerPage > 100 {
		log.Warningf(
			nil,
			"per_page must be within 1..100, got %d, using 100 instead",
			config.PerPage,
		)

		config.PerPage = 100
	}

	return nil
}

// ResolveToken returns the explicit token or reads it once from TokenPath.
func (config *Config) ResolveToken() (string, error) {
	if config.Token != "" {
		return config.Token, nil
	}

	if config.TokenPath == "" {
		return "", failure.Auth(errors.New("no gitlab token specified"))
	}

	data, err := os.ReadFile(config.TokenPath)
	if err != nil {
		return "", failure.Auth(
			karma.Format(
				err,
				"unable to read specified token file: %s", config.TokenPath,
			),
		)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", failure.Auth(
			karma.Describe("path", config.TokenPath).
				Reason("token file is empty"),
		)
	}

	return token, nil
}
