package httpdl

import (
	"errors"
	"fmt"
)

// Kind tells a caller where a download failed.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindFilesystem Kind = "filesystem"
	KindMerge      Kind = "merge"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var dlErr *Error
	if errors.As(err, &dlErr) {
		return dlErr.Kind
	}
	return ""
}

func networkError(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func fsError(op string, err error) error {
	return &Error{Kind: KindFilesystem, Op: op, Err: err}
}

func mergeError(op string, err error) error {
	return &Error{Kind: KindMerge, Op: op, Err: err}
}
