package traces

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/gitlab-ci-stats/internal/output"
	"github.com/reconquest/gitlab-ci-stats/internal/set"
	"github.com/reconquest/gitlab-ci-stats/internal/stats"
	"github.com/reconquest/gitlab-ci-stats/internal/status"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

const DefaultConcurrency = 4

type Downloader interface {
	DownloadTrace(ctx context.Context, project string, jobID int, writer io.Writer) error
}

// NewDownloaderFunc creates a downloader for the GitLab instance at baseURL.
type NewDownloaderFunc func(baseURL string) (Downloader, error)

type Options struct {
	OutputDir   string
	Statuses    []status.Status
	Globs       []string
	Concurrency int
}

type Fetcher struct {
	newDownloader NewDownloaderFunc

	mutex       sync.Mutex
	downloaders map[string]Downloader
}

func NewFetcher(newDownloader NewDownloaderFunc) *Fetcher {
	return &Fetcher{
		newDownloader: newDownloader,
		downloaders:   map[string]Downloader{},
	}
}

// Locate splits a job web URL like https://gitlab.com/group/project/-/jobs/1
// into the instance base URL and the project path.
func Locate(jobURL string) (string, string, error) {
	context := karma.Describe("url", jobURL)

	parsed, err := url.Parse(jobURL)
	if err != nil {
		return "", "", context.Format(err, "unable to parse job url")
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", "", context.Reason("job url has no scheme or host")
	}

	parts := strings.SplitN(parsed.Path, "/-/", 2)
	if len(parts) != 2 {
		return "", "", context.Reason("job url has no /-/ separator")
	}

	project := strings.Trim(parts[0], "/")
	if project == "" {
		return "", "", context.Reason("job url has no project path")
	}

	return parsed.Scheme + "://" + parsed.Host, project, nil
}

func TracePath(dir string, jobID int) string {
	return filepath.Join(dir, strconv.Itoa(jobID)+".txt")
}

// Select returns rows with a matching status and name whose trace is not
// downloaded into dir yet.
func Select(rows []stats.Row, options Options) ([]stats.Row, error) {
	matcher, err := newMatcher(options.Globs)
	if err != nil {
		return nil, err
	}

	statuses := set.NewStringSet()
	for _, value := range options.Statuses {
		statuses.Put(string(value))
	}
	if statuses.Len() == 0 {
		statuses.Put(string(status.FAILED))
	}

	log.Debugf(
		karma.
			Describe("statuses", statuses.List()).
			Describe("globs", options.Globs),
		"selecting jobs out of %d", len(rows),
	)

	selected := []stats.Row{}
	for _, row := range rows {
		if !statuses.Has(row.Status) || !matcher.Match(row.Name) {
			continue
		}

		_, err := os.Stat(TracePath(options.OutputDir, row.JobID))
		if err == nil {
			log.Tracef(karma.Describe("job", row.JobID), "trace already downloaded")
			continue
		}

		selected = append(selected, row)
	}

	return selected, nil
}

// Download fetches traces of the selected rows into options.OutputDir and
// returns how many were downloaded.
func (fetcher *Fetcher) Download(
	ctx context.Context,
	rows []stats.Row,
	options Options,
) (int, error) {
	selected, err := Select(rows, options)
	if err != nil {
		return 0, err
	}

	log.Infof(
		karma.Describe("dir", options.OutputDir),
		"found %d jobs to download traces for", len(selected),
	)

	if len(selected) == 0 {
		return 0, nil
	}

	err = os.MkdirAll(options.OutputDir, 0755)
	if err != nil {
		return 0, failure.IO(
			karma.Describe("dir", options.OutputDir).
				Format(err, "unable to create output directory"),
		)
	}

	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	var downloaded int64
	for _, row := range selected {
		row := row

		baseURL, project, err := Locate(row.JobURL)
		if err != nil {
			_ = group.Wait()
			return int(atomic.LoadInt64(&downloaded)), karma.Describe("job", row.JobID).
				Format(err, "unable to locate job project")
		}

		downloader, err := fetcher.getDownloader(baseURL)
		if err != nil {
			_ = group.Wait()
			return int(atomic.LoadInt64(&downloaded)), err
		}

		group.Go(func() error {
			err := fetcher.fetch(ctx, downloader, project, row, options.OutputDir)
			if err != nil {
				return err
			}

			atomic.AddInt64(&downloaded, 1)
			return nil
		})
	}

	err = group.Wait()

	return int(atomic.LoadInt64(&downloaded)), err
}

func (fetcher *Fetcher) fetch(
	ctx context.Context,
	downloader Downloader,
	project string,
	row stats.Row,
	dir string,
) error {
	path := TracePath(dir, row.JobID)

	log.Debugf(
		karma.Describe("job", row.JobID).Describe("name", row.Name),
		"downloading trace to %s", path,
	)

	file, err := output.Create(path)
	if err != nil {
		return err
	}

	defer file.Discard()

	err = downloader.DownloadTrace(ctx, project, row.JobID, file)
	if err != nil {
		return err
	}

	return file.Commit()
}

func (fetcher *Fetcher) getDownloader(baseURL string) (Downloader, error) {
	fetcher.mutex.Lock()
	defer fetcher.mutex.Unlock()

	if downloader, ok := fetcher.downloaders[baseURL]; ok {
		return downloader, nil
	}

	downloader, err := fetcher.newDownloader(baseURL)
	if err != nil {
		return nil, err
	}

	fetcher.downloaders[baseURL] = downloader

	return downloader, nil
}
