package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSlug           = errors.New("invalid slug")
	ErrMalformedComponent    = errors.New("malformed component")
	ErrMisplacedMode         = errors.New("misplaced mode")
	ErrNotReady              = errors.New("orchestrator not ready")
	ErrUnprocessablePayload  = errors.New("unprocessable payload")
	ErrTransportFailure      = errors.New("transport failure")
	ErrComponentImport       = errors.New("component import failed")
	ErrWrapperImport         = errors.New("wrapper import failed")
	ErrSessionClosed         = errors.New("session closed")
	ErrSessionAborted        = errors.New("session aborted")
	ErrCapabilityUnavailable = errors.New("capability unavailable in this build mode")
	ErrRenderFailures        = errors.New("one or more pages failed to render")
	ErrDuplicateOutput       = errors.New("pages map to the same output file")
)

// RegistrationError carries the slug and payload details of a failed
// registration. Kind is one of the sentinel errors above.
type RegistrationError struct {
	Kind    error
	Slug    string
	Keys    []string
	Message string
	Cause   error
}

func (e *RegistrationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Slug != "" {
		fmt.Fprintf(&sb, " for slug %q", e.Slug)
	}
	if len(e.Keys) > 0 {
		fmt.Fprintf(&sb, " (rejected keys: %s)", strings.Join(e.Keys, ", "))
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *RegistrationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// PageError records why a single page failed to render.
type PageError struct {
	File  string
	Cause error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %s: %v", e.File, e.Cause)
}

func (e *PageError) Unwrap() error {
	return e.Cause
}
