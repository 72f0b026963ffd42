package stats

import (
	"strings"
	"testing"

	"github.com/reconquest/gitlab-ci-stats/internal/gitlab"
	"github.com/stretchr/testify/assert"
)

func TestNewRow_FormatsFields(t *testing.T) {
	test := assert.New(t)

	created := at("2023-05-10T16:12:33.5+02:00")
	started := at("2023-05-10T14:12:34Z")

	row := NewRow(gitlab.Job{
		ID:             7668536,
		PipelineID:     1417944,
		WebURL:         "https://gitlab.com/group/project/-/jobs/7668536",
		Name:           "build: [release, linux]",
		Status:         "success",
		CreatedAt:      &created,
		StartedAt:      &started,
		Duration:       7.396026,
		QueuedDuration: 0,
	})

	test.Equal([]string{
		"7668536",
		"1417944",
		"https://gitlab.com/group/project/-/jobs/7668536",
		"2023-05-10T14:12:33.500Z",
		"build: [release, linux]",
		"success",
		"7.396026",
		"0",
	}, row.Record())
}

func TestNewRow_LeavesDurationsEmptyForJobsThatNeverStarted(t *testing.T) {
	test := assert.New(t)

	row := NewRow(gitlab.Job{ID: 1, PipelineID: 2, Status: "manual"})

	test.Equal("", row.Duration)
	test.Equal("", row.QueuedDuration)
	test.Equal("", row.CreatedDate)
	test.Len(row.Record(), len(Header))
}

func TestNewRow_KeepsQueuedDurationOfPendingJob(t *testing.T) {
	test := assert.New(t)

	row := NewRow(gitlab.Job{ID: 1, Status: "pending", QueuedDuration: 12.5})

	test.Equal("", row.Duration)
	test.Equal("12.5", row.QueuedDuration)
}

func TestReadRows_LooksUpColumnsByName(t *testing.T) {
	test := assert.New(t)

	rows, err := ReadRows(strings.NewReader(
		"status,name,job-url,job-id,extra\n" +
			"failed,\"test: [a, b]\",https://gitlab.com/g/p/-/jobs/5,5,x\n",
	))
	test.NoError(err)
	test.Equal([]Row{{
		JobID:  5,
		JobURL: "https://gitlab.com/g/p/-/jobs/5",
		Name:   "test: [a, b]",
		Status: "failed",
	}}, rows)
}

func TestReadRows_RejectsMissingColumns(t *testing.T) {
	test := assert.New(t)

	_, err := ReadRows(strings.NewReader("job-id,name\n1,a\n"))
	test.Error(err)

	_, err = ReadRows(strings.NewReader(""))
	test.Error(err)

	_, err = ReadRows(strings.NewReader("job-id,job-url,name,status\nabc,u,n,s\n"))
	test.Error(err)
}
