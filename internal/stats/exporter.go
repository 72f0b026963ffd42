package stats

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/reconquest/cog"
	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/gitlab-ci-stats/internal/gitlab"
	"github.com/reconquest/gitlab-ci-stats/internal/output"
	"github.com/reconquest/gitlab-ci-stats/internal/status"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

const SinceLayout = "2006-01-02"

var errLimitReached = errors.New("max pipelines limit reached")

type Source interface {
	CheckBranch(ctx context.Context, project string, branch string) error

	ListPipelines(
		ctx context.Context,
		project string,
		branch string,
		since time.Time,
		fn func(gitlab.Pipeline) error,
	) error

	ListJobs(
		ctx context.Context,
		project string,
		pipelineID int,
		fn func(gitlab.Job) error,
	) error
}

type Query struct {
	Project string
	Branch  string

	// Since is inclusive and compared in UTC.
	Since time.Time

	// MaxPipelines limits the number of exported pipelines, 0 means no limit.
	MaxPipelines int
}

func ParseSince(value string) (time.Time, error) {
	since, err := time.Parse(SinceLayout, value)
	if err != nil {
		return time.Time{}, karma.Format(
			err,
			"invalid date %q, expected YYYY-MM-DD", value,
		)
	}

	return since, nil
}

type Exporter struct {
	source Source
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Export writes the header and one row per job to path and returns the
// number of rows. The file appears only if the whole export succeeded.
func (exporter *Exporter) Export(
	ctx context.Context,
	query Query,
	path string,
) (int, error) {
	file, err := output.Create(path)
	if err != nil {
		return 0, err
	}

	defer file.Discard()

	rows, err := exporter.WriteCSV(ctx, query, file)
	if err != nil {
		return 0, err
	}

	err = file.Commit()
	if err != nil {
		return 0, err
	}

	log.Infof(
		karma.Describe("path", file.Path()),
		"exported %d jobs", rows,
	)

	return rows, nil
}

func (exporter *Exporter) WriteCSV(
	ctx context.Context,
	query Query,
	writer io.Writer,
) (int, error) {
	err := exporter.source.CheckBranch(ctx, query.Project, query.Branch)
	if err != nil {
		return 0, err
	}

	records := csv.NewWriter(writer)

	err = records.Write(Header)
	if err != nil {
		return 0, failure.IO(karma.Format(err, "unable to write csv header"))
	}

	log.Infof(
		karma.
			Describe("project", query.Project).
			Describe("branch", query.Branch).
			Describe("since", query.Since.Format(SinceLayout)),
		"querying pipelines",
	)

	var rows, pipelines int
	err = exporter.source.ListPipelines(
		ctx,
		query.Project,
		query.Branch,
		query.Since,
		func(pipeline gitlab.Pipeline) error {
			if query.MaxPipelines > 0 && pipelines >= query.MaxPipelines {
				return errLimitReached
			}

			pipelines++

			logger := log.NewChildWithPrefix(fmt.Sprintf("[pipeline:%d]", pipeline.ID))

			count, err := exporter.writePipeline(ctx, logger, query, pipeline, records)
			rows += count

			return err
		},
	)
	if err != nil && err != errLimitReached {
		return rows, err
	}

	records.Flush()
	err = records.Error()
	if err != nil {
		return rows, failure.IO(karma.Format(err, "unable to write csv"))
	}

	log.Debugf(nil, "exported %d pipelines", pipelines)

	return rows, nil
}

func (exporter *Exporter) writePipeline(
	ctx context.Context,
	logger *cog.Logger,
	query Query,
	pipeline gitlab.Pipeline,
	records *csv.Writer,
) (int, error) {
	logger.Debugf(nil, "created at %s, listing jobs", pipeline.CreatedAt.Format(time.RFC3339))

	rows := 0
	unfinished := 0
	err := exporter.source.ListJobs(
		ctx,
		query.Project,
		pipeline.ID,
		func(job gitlab.Job) error {
			err := records.Write(NewRow(job).Record())
			if err != nil {
				return failure.IO(
					karma.Describe("job", job.ID).
						Format(err, "unable to write csv row"),
				)
			}

			if !status.IsFinal(status.Status(job.Status)) {
				unfinished++
			}

			rows++
			return nil
		},
	)
	if err != nil {
		return rows, err
	}

	if unfinished > 0 {
		logger.Debugf(nil, "%d of %d jobs are not finished yet", unfinished, rows)
	}

	logger.Debugf(nil, "exported %d jobs", rows)

	return rows, nil
}
