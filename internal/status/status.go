package status

import (
	"strings"

	"github.com/reconquest/karma-go"
)

// Status is a GitLab job status as returned by the jobs API.
type Status string

const (
	CREATED              = Status("created")
	WAITING_FOR_RESOURCE = Status("waiting_for_resource")
	PREPARING            = Status("preparing")
	PENDING              = Status("pending")
	RUNNING              = Status("running")
	SUCCESS              = Status("success")
	FAILED               = Status("failed")
	CANCELED             = Status("canceled")
	SKIPPED              = Status("skipped")
	MANUAL               = Status("manual")
	SCHEDULED            = Status("scheduled")
)

var known = []Status{
	CREATED,
	WAITING_FOR_RESOURCE,
	PREPARING,
	PENDING,
	RUNNING,
	SUCCESS,
	FAILED,
	CANCELED,
	SKIPPED,
	MANUAL,
	SCHEDULED,
}

func Known() []Status {
	return append([]Status{}, known...)
}

func Parse(value string) (Status, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, status := range known {
		if string(status) == value {
			return status, nil
		}
	}

	return "", karma.Describe("status", value).Reason("unknown job status")
}

func IsFinal(status Status) bool {
	return status == SUCCESS ||
		status == FAILED ||
		status == CANCELED ||
		status == SKIPPED
}
