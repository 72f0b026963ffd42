package traces

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/gitlab-ci-stats/internal/gitlab"
	"github.com/reconquest/gitlab-ci-stats/internal/gitlab/gitlabtest"
	"github.com/reconquest/gitlab-ci-stats/internal/stats"
	"github.com/reconquest/gitlab-ci-stats/internal/status"
	"github.com/stretchr/testify/assert"
)

const testToken = "glpat-test-token"

func newFetcher(token string) *Fetcher {
	return NewFetcher(func(baseURL string) (Downloader, error) {
		return gitlab.NewClient(gitlab.Options{
			Domain:  baseURL,
			Token:   token,
			Timeout: 5 * time.Second,
		})
	})
}

func row(server *gitlabtest.Server, id int, name, status string) stats.Row {
	return stats.Row{
		JobID:  id,
		JobURL: server.URL + "/group/project/-/jobs/" + strconv.Itoa(id),
		Name:   name,
		Status: status,
	}
}

func listDir(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	names := []string{}
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func TestLocate(t *testing.T) {
	test := assert.New(t)

	baseURL, project, err := Locate("https://gitlab.com/group/sub/project/-/jobs/7668536")
	test.NoError(err)
	test.Equal("https://gitlab.com", baseURL)
	test.Equal("group/sub/project", project)

	_, _, err = Locate("https://gitlab.com/group/project/jobs/1")
	test.Error(err)

	_, _, err = Locate("/group/project/-/jobs/1")
	test.Error(err)
}

func TestDownload_FetchesMatchingFailedJobsOnly(t *testing.T) {
	test := assert.New(t)

	server := gitlabtest.NewServer(testToken)
	defer server.Close()

	server.AddTrace(1, "trace of 1\n")
	server.AddTrace(2, "trace of 2\n")
	server.AddTrace(3, "trace of 3\n")
	server.AddTrace(4, "trace of 4\n")

	rows := []stats.Row{
		row(server, 1, "test: [release, linux]", "failed"),
		row(server, 2, "test: [debug, linux]", "success"),
		row(server, 3, "build", "failed"),
		row(server, 4, "test: [debug, windows]", "failed"),
	}

	dir := filepath.Join(t.TempDir(), "traces")

	downloaded, err := newFetcher(testToken).Download(
		context.Background(),
		rows,
		Options{OutputDir: dir, Globs: []string{"test*"}, Concurrency: 2},
	)
	test.NoError(err)
	test.Equal(2, downloaded)
	test.Equal([]string{"1.txt", "4.txt"}, listDir(t, dir))

	contents, err := os.ReadFile(filepath.Join(dir, "4.txt"))
	test.NoError(err)
	test.Equal("trace of 4\n", string(contents))

	for _, request := range server.Requests() {
		test.Contains(request, "/projects/group%2Fproject/jobs/")
	}
}

func TestDownload_SkipsAlreadyDownloadedTraces(t *testing.T) {
	test := assert.New(t)

	server := gitlabtest.NewServer(testToken)
	defer server.Close()

	server.AddTrace(1, "fresh\n")
	server.AddTrace(2, "fresh\n")

	dir := t.TempDir()
	test.NoError(os.WriteFile(filepath.Join(dir, "1.txt"), []byte("cached\n"), 0644))

	downloaded, err := newFetcher(testToken).Download(
		context.Background(),
		[]stats.Row{
			row(server, 1, "a", "failed"),
			row(server, 2, "b", "canceled"),
		},
		Options{
			OutputDir: dir,
			Statuses:  []status.Status{status.FAILED, status.CANCELED},
		},
	)
	test.NoError(err)
	test.Equal(1, downloaded)

	contents, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	test.NoError(err)
	test.Equal("cached\n", string(contents))

	test.Len(server.Requests(), 1)
	test.True(strings.Contains(server.Requests()[0], "/jobs/2/trace"))
}

func TestDownload_ReturnsTaxonomyErrorsAndKeepsNoPartialFiles(t *testing.T) {
	test := assert.New(t)

	server := gitlabtest.NewServer(testToken)
	defer server.Close()

	dir := t.TempDir()

	_, err := newFetcher(testToken).Download(
		context.Background(),
		[]stats.Row{row(server, 404, "gone", "failed")},
		Options{OutputDir: dir, Concurrency: 1},
	)
	var notFoundErr *failure.NotFoundError
	test.True(errors.As(err, &notFoundErr), "%v", err)
	test.Empty(listDir(t, dir))

	server.AddTrace(5, "x")
	_, err = newFetcher("revoked").Download(
		context.Background(),
		[]stats.Row{row(server, 5, "x", "failed")},
		Options{OutputDir: dir},
	)
	var authErr *failure.AuthError
	test.True(errors.As(err, &authErr), "%v", err)
	test.Empty(listDir(t, dir))
}

func TestDownload_DoesNothingWithoutMatches(t *testing.T) {
	test := assert.New(t)

	dir := filepath.Join(t.TempDir(), "not-created")

	downloaded, err := NewFetcher(func(string) (Downloader, error) {
		return nil, errors.New("must not be called")
	}).Download(
		context.Background(),
		[]stats.Row{{JobID: 1, Name: "a", Status: "success"}},
		Options{OutputDir: dir},
	)
	test.NoError(err)
	test.Equal(0, downloaded)

	_, err = os.Stat(dir)
	test.True(os.IsNotExist(err))
}
