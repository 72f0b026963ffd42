package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/alecthomas/kingpin/v2"

	"github.com/reconquest/gitlab-ci-stats/internal/config"
	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/gitlab-ci-stats/internal/gitlab"
	"github.com/reconquest/gitlab-ci-stats/internal/program"
	"github.com/reconquest/gitlab-ci-stats/internal/stats"
	"github.com/reconquest/gitlab-ci-stats/internal/status"
	"github.com/reconquest/gitlab-ci-stats/internal/traces"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

var version = "[manual build]"

func main() {
	app := cli.New(
		"gitlab-job-traces",
		"Download job logs for jobs listed in a CSV written by gitlab-job-stats.",
	).Version(version)

	configPath := app.Flag("config", "Use the given configuration file.").
		Short('c').
		Default(config.DefaultPath()).
		String()

	csvPath := app.Arg("csv", "CSV file of jobs to look at.").
		Required().
		String()

	outputDir := app.Flag("output", "Directory to save job logs in. "+
		"Defaults to the CSV path without extension.").
		Short('o').
		String()

	tokenFile := app.Flag("token-file", "Read the GitLab personal access token from the given file.").
		Short('f').
		String()

	token := app.Flag("token", "A GitLab personal access token with API read access. "+
		"Consider using --token-file instead.").
		Short('t').
		String()

	globs := app.Flag("job", "Job name glob to include. May be given multiple times.").
		Short('j').
		Strings()

	statuses := app.Flag("status", "Job status to include. May be given multiple times. "+
		"Defaults to failed.").
		Short('s').
		Strings()

	concurrency := app.Flag("concurrency", "Number of logs to download at once.").
		Default("4").
		Int()

	debug := app.Flag("debug", "Enable debug logging.").Bool()
	trace := app.Flag("trace", "Enable trace logging, including HTTP requests.").Bool()

	cli.MustParse(app.Parse(os.Args[1:]))

	if *tokenFile != "" && *token != "" {
		app.Fatalf("--token and --token-file are mutually exclusive")
	}

	cfg, err := program.LoadConfig(*configPath, *debug, *trace)
	if err != nil {
		program.Fatalf(err, "unable to load configuration")
	}

	if *tokenFile != "" {
		cfg.Token = ""
		cfg.TokenPath = *tokenFile
	}

	if *token != "" {
		cfg.Token = *token
	}

	program.RequireConfigured(app.Name, *configPath, cfg, false)

	wanted := []status.Status{}
	for _, value := range *statuses {
		parsed, err := status.Parse(value)
		if err != nil {
			app.Fatalf("%s, known are: %v", err, status.Known())
		}

		wanted = append(wanted, parsed)
	}

	if *outputDir == "" {
		*outputDir = strings.TrimSuffix(*csvPath, filepath.Ext(*csvPath))
	}

	rows, err := readRows(*csvPath)
	if err != nil {
		program.Fatalf(err, "unable to read jobs")
	}

	secret, err := cfg.ResolveToken()
	if err != nil {
		program.Fatalf(err, "unable to obtain gitlab token")
	}

	fetcher := traces.NewFetcher(func(baseURL string) (traces.Downloader, error) {
		log.Debugf(karma.Describe("base_url", baseURL), "connecting to gitlab instance")

		return gitlab.NewClient(gitlab.Options{
			Domain:  baseURL,
			Token:   secret,
			Timeout: cfg.Timeout,
		})
	})

	ctx, cancel := program.WithSignals(context.Background())
	defer cancel()

	downloaded, err := fetcher.Download(ctx, rows, traces.Options{
		OutputDir:   *outputDir,
		Statuses:    wanted,
		Globs:       *globs,
		Concurrency: *concurrency,
	})
	if err != nil {
		program.Fatalf(err, "unable to download job logs")
	}

	log.Infof(karma.Describe("dir", *outputDir), "downloaded %d job logs", downloaded)
}

func readRows(path string) ([]stats.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, failure.IO(karma.Format(err, "unable to open csv: %s", path))
	}

	defer file.Close()

	rows, err := stats.ReadRows(file)
	if err != nil {
		return nil, karma.Describe("path", path).Format(err, "unable to parse csv")
	}

	return rows, nil
}
