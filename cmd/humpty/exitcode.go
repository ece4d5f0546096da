package main

import "fmt"

const (
	exitUsage   = 1
	exitFailure = 2
)

type exitCodeError struct {
	code  int
	msg   string
	quiet bool
}

func (e *exitCodeError) Error() string {
	return e.msg
}

func (e *exitCodeError) ExitCode() int {
	return e.code
}

func (e *exitCodeError) Quiet() bool {
	return e.quiet
}

func usageError(err error) error {
	return &exitCodeError{code: exitUsage, msg: err.Error()}
}

// opError reports a failure of an operation that started after its
// arguments parsed, e.g. "split failed: chunk checksum mismatch ...".
func opError(op string, err error) error {
	return &exitCodeError{code: exitFailure, msg: fmt.Sprintf("%s failed: %v", op, err)}
}
