package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nshruti113/netguard-dashboard/internal/api"
)

// Process exit codes
const (
	ExitOK       = 0
	ExitRuntime  = 1 // generic runtime failure
	ExitUsage    = 2 // invalid flags or arguments
	ExitConfig   = 3 // invalid or incomplete configuration
	ExitIO       = 4 // filesystem problems, e.g. the session file
	ExitAuth     = 5 // missing or rejected credential
	ExitExternal = 6 // NetGuard API or Redis unreachable or failing
)

// Error is a user-facing failure with an optional hint and wrapped cause
type Error struct {
	Code     string // stable identifier, e.g. "AUTH_REQUIRED"
	Message  string
	Hint     string
	ExitCode int

	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *Error) WithHint(h string) *Error {
	e.Hint = h
	return e
}

func newError(code string, exitCode int, msg string) *Error {
	if exitCode == 0 {
		exitCode = ExitRuntime
	}
	return &Error{Code: code, Message: msg, ExitCode: exitCode}
}

func wrap(code string, exitCode int, msg string, cause error) *Error {
	e := newError(code, exitCode, msg)
	e.Cause = cause
	return e
}

func usageError(format string, args ...any) *Error {
	return newError("USAGE", ExitUsage, fmt.Sprintf(format, args...)).
		WithHint("run with --help to see the accepted flags")
}

// classify maps any error returned by a command onto an *Error
func classify(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	var ae *api.AuthError
	if errors.As(err, &ae) {
		msg := "not logged in"
		if ae.StatusCode != 0 {
			msg = "the NetGuard API rejected the stored credential"
		}
		return wrap("AUTH_REQUIRED", ExitAuth, msg, err).WithHint("run `netguard login`")
	}

	var te *api.TransportError
	if errors.As(err, &te) {
		switch {
		case te.StatusCode == 0 && te.Timeout():
			return wrap("API_TIMEOUT", ExitExternal, "the NetGuard API did not answer in time", err).
				WithHint("check that the API is up and api.base_url is correct")
		case te.StatusCode == 0:
			return wrap("API_UNREACHABLE", ExitExternal, "cannot reach the NetGuard API", err).
				WithHint("check that the API is up and api.base_url is correct")
		case te.StatusCode == http.StatusNotFound:
			return wrap("NOT_FOUND", ExitRuntime, "no such record", err)
		case te.StatusCode < 500:
			return wrap("API_REJECTED", ExitRuntime, fmt.Sprintf("request rejected (%d)", te.StatusCode), err)
		default:
			return wrap("API_FAILED", ExitExternal, fmt.Sprintf("the NetGuard API failed (%d)", te.StatusCode), err)
		}
	}

	return wrap("RUNTIME", ExitRuntime, err.Error(), err)
}

func printError(w io.Writer, e *Error) {
	colorRed.Fprintf(w, "Error: %s\n", e.Message)
	if e.Cause != nil && e.Cause.Error() != e.Message {
		colorWhite.Fprintf(w, "  cause: %v\n", e.Cause)
	}
	if e.Hint != "" {
		colorYellow.Fprintf(w, "  hint: %s\n", e.Hint)
	}
}
