package main

import (
	"io"
	"os"

	cli "github.com/alecthomas/kingpin/v2"

	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/gitlab-ci-stats/internal/output"
	"github.com/reconquest/gitlab-ci-stats/internal/program"
	"github.com/reconquest/gitlab-ci-stats/internal/timeline"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

var version = "[manual build]"

func main() {
	app := cli.New(
		"gitlab-trace-timeline",
		"Convert GitLab CI job logs with section markers into Chrome trace event JSON.",
	).Version(version)

	inputPath := app.Flag("input", "Job log to read, - for stdin.").
		Short('i').
		Default(output.Stdout).
		String()

	outputPath := app.Flag("output", "Where to write trace events, - for stdout.").
		Short('o').
		Default(output.Stdout).
		String()

	debug := app.Flag("debug", "Enable debug logging.").Bool()

	cli.MustParse(app.Parse(os.Args[1:]))

	program.SetupLogging(*debug, false)

	err := convert(*inputPath, *outputPath)
	if err != nil {
		program.Fatalf(err, "unable to convert job log")
	}
}

func convert(inputPath string, outputPath string) error {
	var input io.Reader = os.Stdin
	if inputPath != output.Stdout {
		file, err := os.Open(inputPath)
		if err != nil {
			return failure.IO(karma.Format(err, "unable to open job log: %s", inputPath))
		}

		defer file.Close()

		input = file
	}

	events, err := timeline.Parse(input)
	if err != nil {
		return failure.IO(err)
	}

	log.Debugf(nil, "found %d section markers", len(events))

	destination, err := output.Create(outputPath)
	if err != nil {
		return err
	}

	defer destination.Discard()

	err = timeline.Write(destination, events)
	if err != nil {
		return err
	}

	return destination.Commit()
}
