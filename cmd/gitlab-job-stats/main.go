package main

import (
	"context"
	"os"

	cli "github.com/alecthomas/kingpin/v2"

	"github.com/reconquest/gitlab-ci-stats/internal/config"
	"github.com/reconquest/gitlab-ci-stats/internal/gitlab"
	"github.com/reconquest/gitlab-ci-stats/internal/program"
	"github.com/reconquest/gitlab-ci-stats/internal/stats"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

var version = "[manual build]"

func main() {
	app := cli.New(
		"gitlab-job-stats",
		"Query a GitLab project for CI/CD job statistics and save them as CSV.",
	).Version(version)

	configPath := app.Flag("config", "Use the given configuration file.").
		Short('c').
		Default(config.DefaultPath()).
		String()

	tokenFile := app.Flag("token-file", "Read the GitLab personal access token from the given file.").
		Short('f').
		String()

	token := app.Flag("token", "A GitLab personal access token with API read access. "+
		"Consider using --token-file instead.").
		Short('t').
		String()

	domain := app.Flag("domain", "The domain of your GitLab instance, e.g. gitlab.com.").
		Short('d').
		String()

	project := app.Flag("project", "The full group/project path, or a project ID.").
		Short('p').
		Required().
		String()

	branch := app.Flag("branch", "Export jobs of pipelines on this branch.").
		Short('b').
		Required().
		String()

	since := app.Flag("since", "Export pipelines created on or after this date, YYYY-MM-DD.").
		Required().
		String()

	maxPipelines := app.Flag("max-pipelines", "Export at most this many pipelines, 0 means no limit.").
		Default("0").
		Int()

	outputPath := app.Flag("output", "Destination CSV file, - for stdout.").
		Short('o').
		Required().
		String()

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

	if *domain != "" {
		cfg.Domain = *domain
	}

	if *tokenFile != "" {
		cfg.Token = ""
		cfg.TokenPath = *tokenFile
	}

	if *token != "" {
		cfg.Token = *token
	}

	program.RequireConfigured(app.Name, *configPath, cfg, true)

	sinceDate, err := stats.ParseSince(*since)
	if err != nil {
		program.Fatalf(err, "invalid --since")
	}

	secret, err := cfg.ResolveToken()
	if err != nil {
		program.Fatalf(err, "unable to obtain gitlab token")
	}

	client, err := gitlab.NewClient(gitlab.Options{
		Domain:  cfg.Domain,
		Token:   secret,
		Timeout: cfg.Timeout,
		PerPage: cfg.PerPage,
	})
	if err != nil {
		program.Fatalf(err, "unable to create gitlab client")
	}

	log.Debugf(karma.Describe("base_url", client.BaseURL()), "using gitlab instance")

	ctx, cancel := program.WithSignals(context.Background())
	defer cancel()

	_, err = stats.NewExporter(client).Export(
		ctx,
		stats.Query{
			Project:      *project,
			Branch:       *branch,
			Since:        sinceDate,
			MaxPipelines: *maxPipelines,
		},
		*outputPath,
	)
	if err != nil {
		program.Fatalf(err, "unable to export job statistics")
	}
}
