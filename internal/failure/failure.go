package failure

import (
	"errors"
)

const (
	ExitOK       = 0
	ExitGeneric  = 1
	ExitAuth     = 2
	ExitNotFound = 3
	ExitNetwork  = 4
	ExitIO       = 5
)

// AuthError means the token is missing, unreadable or rejected by GitLab.
type AuthError struct {
	Err error
}

func (err *AuthError) Error() string { return err.Err.Error() }
func (err *AuthError) Unwrap() error { return err.Err }

// NotFoundError means GitLab does not know the requested project, pipeline
// or job.
type NotFoundError struct {
	Err error
}

func (err *NotFoundError) Error() string { return err.Err.Error() }
func (err *NotFoundError) Unwrap() error { return err.Err }

// NetworkError covers transport failures and responses that can't be used.
type NetworkError struct {
	Err error
}

func (err *NetworkError) Error() string { return err.Err.Error() }
func (err *NetworkError) Unwrap() error { return err.Err }

type IOError struct {
	Err error
}

func (err *IOError) Error() string { return err.Err.Error() }
func (err *IOError) Unwrap() error { return err.Err }

func Auth(err error) error     { return &AuthError{Err: err} }
func NotFound(err error) error { return &NotFoundError{Err: err} }
func Network(err error) error  { return &NetworkError{Err: err} }
func IO(err error) error       { return &IOError{Err: err} }

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		authErr     *AuthError
		notFoundErr *NotFoundError
		networkErr  *NetworkError
		ioErr       *IOError
	)

	switch {
	case errors.As(err, &authErr):
		return ExitAuth
	case errors.As(err, &notFoundErr):
		return ExitNotFound
	case errors.As(err, &networkErr):
		return ExitNetwork
	case errors.As(err, &ioErr):
		return ExitIO
	default:
		return ExitGeneric
	}
}
