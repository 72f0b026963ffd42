package output

import (
	"io"
	"os"
	"path/filepath"

	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/karma-go"
)

// Stdout is the path that makes Create write to the standard output.
const Stdout = "-"

var _ io.Writer = (*File)(nil)

// File collects data in a temporary file next to the destination and
// renames it over the destination on Commit. Until then the destination is
// not touched.
type File struct {
	path string
	temp *os.File
	dst  io.Writer
	done bool
}

func Create(path string) (*File, error) {
	if path == Stdout {
		return &File{path: path, dst: os.Stdout}, nil
	}

	context := karma.Describe("path", path)

	temp, err := os.CreateTemp(
		filepath.Dir(path),
		"."+filepath.Base(path)+".*.tmp",
	)
	if err != nil {
		return nil, failure.IO(context.Format(err, "unable to create output file"))
	}

	return &File{path: path, temp: temp, dst: temp}, nil
}

func (file *File) Path() string {
	return file.path
}

func (file *File) Write(data []byte) (int, error) {
	written, err := file.dst.Write(data)
	if err != nil {
		return written, failure.IO(
			karma.Describe("path", file.path).Format(err, "unable to write output"),
		)
	}

	return written, nil
}

func (file *File) Commit() error {
	if file.done || file.temp == nil {
		file.done = true
		return nil
	}

	file.done = true

	context := karma.Describe("path", file.path)

	err := file.temp.Chmod(0644)
	if err != nil {
		file.remove()
		return failure.IO(context.Format(err, "unable to chmod output file"))
	}

	err = file.temp.Close()
	if err != nil {
		file.remove()
		return failure.IO(context.Format(err, "unable to close output file"))
	}

	err = os.Rename(file.temp.Name(), file.path)
	if err != nil {
		file.remove()
		return failure.IO(context.Format(err, "unable to move output file in place"))
	}

	return nil
}

// Discard drops everything written so far. It is a no-op after Commit, so it
// is safe to defer.
func (file *File) Discard() {
	if file.done || file.temp == nil {
		return
	}

	file.done = true

	_ = file.temp.Close()
	file.remove()
}

func (file *File) remove() {
	_ = os.Remove(file.temp.Name())
}
