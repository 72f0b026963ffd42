package stats

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/reconquest/gitlab-ci-stats/internal/gitlab"
	"github.com/reconquest/karma-go"
)

// CreatedDateLayout matches the way GitLab itself encodes timestamps.
const CreatedDateLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	ColumnJobID          = "job-id"
	ColumnPipelineID     = "pipeline-id"
	ColumnJobURL         = "job-url"
	ColumnCreatedDate    = "created-date"
	ColumnName           = "name"
	ColumnStatus         = "status"
	ColumnDuration       = "duration"
	ColumnQueuedDuration = "queued-duration"
)

var Header = []string{
	ColumnJobID,
	ColumnPipelineID,
	ColumnJobURL,
	ColumnCreatedDate,
	ColumnName,
	ColumnStatus,
	ColumnDuration,
	ColumnQueuedDuration,
}

type Row struct {
	JobID          int
	PipelineID     int
	JobURL         string
	CreatedDate    string
	Name           string
	Status         string
	Duration       string
	QueuedDuration string
}

func NewRow(job gitlab.Job) Row {
	row := Row{
		JobID:      job.ID,
		PipelineID: job.PipelineID,
		JobURL:     job.WebURL,
		Name:       job.Name,
		Status:     job.Status,
	}

	if job.CreatedAt != nil {
		row.CreatedDate = job.CreatedAt.UTC().Format(CreatedDateLayout)
	}

	// a job that never started has neither duration nor queued duration,
	// GitLab reports them as null
	if job.StartedAt != nil {
		row.Duration = formatSeconds(job.Duration)
		row.QueuedDuration = formatSeconds(job.QueuedDuration)
	} else if job.QueuedDuration != 0 {
		row.QueuedDuration = formatSeconds(job.QueuedDuration)
	}

	return row
}

func (row Row) Record() []string {
	return []string{
		strconv.Itoa(row.JobID),
		strconv.Itoa(row.PipelineID),
		row.JobURL,
		row.CreatedDate,
		row.Name,
		row.Status,
		row.Duration,
		row.QueuedDuration,
	}
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ReadRows parses a CSV written by the exporter. Columns are looked up by
// header name, extra columns are ignored.
func ReadRows(reader io.Reader) ([]Row, error) {
	records := csv.NewReader(reader)
	records.FieldsPerRecord = -1

	header, err := records.Read()
	if err != nil {
		if err == io.EOF {
			return nil, karma.Format(err, "csv is empty, expected a header")
		}

		return nil, karma.Format(err, "unable to read csv header")
	}

	index := map[string]int{}
	for i, name := range header {
		index[name] = i
	}

	for _, name := range []string{ColumnJobID, ColumnJobURL, ColumnName, ColumnStatus} {
		if _, ok := index[name]; !ok {
			return nil, karma.Describe("header", header).
				Reason("csv header has no column: " + name)
		}
	}

	get := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	rows := []Row{}
	for {
		record, err := records.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, karma.Format(err, "unable to read csv row")
		}

		context := karma.Describe("line", len(rows)+2)

		var row Row
		row.JobID, err = strconv.Atoi(get(record, ColumnJobID))
		if err != nil {
			return nil, context.Format(err, "invalid job id")
		}

		if value := get(record, ColumnPipelineID); value != "" {
			row.PipelineID, err = strconv.Atoi(value)
			if err != nil {
				return nil, context.Format(err, "invalid pipeline id")
			}
		}

		row.JobURL = get(record, ColumnJobURL)
		row.CreatedDate = get(record, ColumnCreatedDate)
		row.Name = get(record, ColumnName)
		row.Status = get(record, ColumnStatus)
		row.Duration = get(record, ColumnDuration)
		row.QueuedDuration = get(record, ColumnQueuedDuration)

		rows = append(rows, row)
	}

	return rows, nil
}
