// Package timeline converts GitLab job logs into the Chrome trace event
// format, one begin/end pair per collapsible log section.
package timeline

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

const (
	PhaseBegin = "B"
	PhaseEnd   = "E"
)

var sectionMarker = regexp.MustCompile(
	`section_(start|end):(\d+):([^\[\s\x00-\x1f]+)`,
)

type Event struct {
	Name  string `json:"name"`
	Phase string `json:"ph"`
	// Timestamp is in microseconds since the first section marker.
	Timestamp int64 `json:"ts"`
	PID       int   `json:"pid"`
	TID       int   `json:"tid"`
}

func Parse(reader io.Reader) ([]Event, error) {
	var (
		events  = []Event{}
		started bool
		start   int64
		lines   = bufio.NewReader(reader)
		number  int
	)

	for {
		line, err := lines.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, karma.Describe("line", number+1).
				Format(err, "unable to read job log")
		}

		number++

		line = strings.ToValidUTF8(line, "\uFFFD")

		for _, match := range sectionMarker.FindAllStringSubmatch(line, -1) {
			timestamp, parseErr := strconv.ParseInt(match[2], 10, 64)
			if parseErr != nil {
				log.Warningf(nil, "line %d: skipping section with bad timestamp: %s", number, match[2])
				continue
			}

			if !started {
				start = timestamp
				started = true
			}

			phase := PhaseEnd
			if match[1] == "start" {
				phase = PhaseBegin
			}

			events = append(events, Event{
				Name:      match[3],
				Phase:     phase,
				Timestamp: (timestamp - start) * 1000000,
				PID:       1,
				TID:       1,
			})
		}

		if err == io.EOF {
			break
		}
	}

	return events, nil
}

func Write(writer io.Writer, events []Event) error {
	if events == nil {
		events = []Event{}
	}

	err := json.NewEncoder(writer).Encode(events)
	if err != nil {
		return karma.Format(err, "unable to encode trace events")
	}

	return nil
}
