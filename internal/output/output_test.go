package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/stretchr/testify/assert"
)

func TestFile_CommitReplacesDestination(t *testing.T) {
	test := assert.New(t)

	path := filepath.Join(t.TempDir(), "jobs.csv")
	test.NoError(os.WriteFile(path, []byte("old"), 0644))

	file, err := Create(path)
	test.NoError(err)
	test.Equal(path, file.Path())

	_, err = file.Write([]byte("new"))
	test.NoError(err)

	contents, err := os.ReadFile(path)
	test.NoError(err)
	test.Equal("old", string(contents))

	test.NoError(file.Commit())
	file.Discard()

	contents, err = os.ReadFile(path)
	test.NoError(err)
	test.Equal("new", string(contents))

	entries, err := os.ReadDir(filepath.Dir(path))
	test.NoError(err)
	test.Len(entries, 1)
}

func TestFile_DiscardLeavesNothingBehind(t *testing.T) {
	test := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.csv")

	file, err := Create(path)
	test.NoError(err)

	_, err = file.Write([]byte("partial"))
	test.NoError(err)

	file.Discard()

	entries, err := os.ReadDir(dir)
	test.NoError(err)
	test.Empty(entries)
}

func TestCreate_ReturnsIOErrorForMissingDirectory(t *testing.T) {
	test := assert.New(t)

	_, err := Create(filepath.Join(t.TempDir(), "missing", "jobs.csv"))

	var ioErr *failure.IOError
	test.True(errors.As(err, &ioErr), "%v", err)
}
