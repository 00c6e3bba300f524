// Package errors provides structured error types for the elaboration core.
package errors

import (
	"fmt"
	"sort"
)

// ErrorCode identifies specific error conditions raised during module
// loading, evaluation, or elaboration. pkg/diag does not map codes to
// severities; a diagnostic's severity is set where the diagnostic is built.
type ErrorCode string

const (
	ErrCodeUnresolved       ErrorCode = "LOAD_UNRESOLVED"
	ErrCodeCycle            ErrorCode = "LOAD_CYCLE"
	ErrCodeFetchFailed      ErrorCode = "LOAD_FETCH_FAILED"
	ErrCodeSyntax           ErrorCode = "PARSE_SYNTAX"
	ErrCodeEval             ErrorCode = "EVAL_ERROR"
	ErrCodeFieldMismatch    ErrorCode = "INTERFACE_FIELD_MISMATCH"
	ErrCodeMissingPins      ErrorCode = "COMPONENT_MISSING_PINS"
	ErrCodeUnknownPin       ErrorCode = "COMPONENT_UNKNOWN_PIN"
	ErrCodeMissingIO        ErrorCode = "MODULE_MISSING_IO"
	ErrCodeUnusedInput      ErrorCode = "MODULE_UNUSED_INPUT"
	ErrCodeUnstableRef      ErrorCode = "LOAD_UNSTABLE_REF"
	ErrCodeDuplicatePad     ErrorCode = "SYMBOL_DUPLICATE_PAD"
	ErrCodeCheckFailed      ErrorCode = "CHECK_FAILED"
	ErrCodeUserError        ErrorCode = "USER_ERROR"
	ErrCodeAmbiguousSymbol  ErrorCode = "SYMBOL_AMBIGUOUS"
	ErrCodePinKindMismatch  ErrorCode = "COMPONENT_PIN_KIND_MISMATCH"
)

// Error is the base error type for the elaboration core. It is the
// source_error payload carried by diagnostics (pkg/diag.Diagnostic).
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]interface{})}
}

// Wrap creates a new error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Details: make(map[string]interface{})}
}

// WithDetail adds a single detail to an error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code ErrorCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// IsUnstableRef lets pkg/diag's LspFilterPass recognize an unstable-reference
// warning's source error without importing loadspec (which would import diag
// itself, forming a cycle).
func (e *Error) IsUnstableRef() bool {
	return e.Code == ErrCodeUnstableRef
}

// Unresolved builds the error for a load spec whose final path is absent and
// allow_not_exist is false.
func Unresolved(spec string) *Error {
	return New(ErrCodeUnresolved, fmt.Sprintf("could not resolve %q", spec)).
		WithDetail("spec", spec)
}

// Cycle builds the error for an alias or load chain that revisits a node it
// already started resolving, naming every file on the chain.
func Cycle(chain []string) *Error {
	return New(ErrCodeCycle, fmt.Sprintf("cycle detected: %s", joinChain(chain))).
		WithDetail("chain", chain)
}

// FetchFailed builds the error for a remote fetch that could not complete.
func FetchFailed(ref string, cause error) *Error {
	return Wrap(ErrCodeFetchFailed, fmt.Sprintf("failed to fetch %s", ref), cause).
		WithDetail("ref", ref)
}

// UnstableRef builds the (warning-severity, at the diagnostic layer) error
// describing a remote reference pinned to a branch or HEAD rather than a
// tag or commit.
func UnstableRef(spec string) *Error {
	return New(ErrCodeUnstableRef, fmt.Sprintf("%q resolves to an unstable reference (not a tag or commit)", spec)).
		WithDetail("spec", spec)
}

func joinChain(chain []string) string {
	out := ""
	for i, s := range chain {
		if i > 0 {
			out += " -> "
		}
		out += s
	}
	return out
}

// MissingPins builds the error for a component whose pins map omits one or
// more pads required by its symbol or pin_defs.
func MissingPins(component string, missing []string) *Error {
	return New(ErrCodeMissingPins, fmt.Sprintf("missing pins: %s", joinSorted(missing))).
		WithDetail("component", component).
		WithDetail("missing", missing)
}

// UnknownPin builds the error for a pins key that names no declared signal.
func UnknownPin(component string, unknown []string) *Error {
	return New(ErrCodeUnknownPin, fmt.Sprintf("unknown pin: %s", joinSorted(unknown))).
		WithDetail("component", component).
		WithDetail("unknown", unknown)
}

// MissingIO builds the error for a module instantiation missing required
// io()/config() arguments.
func MissingIO(module string, missing []string) *Error {
	return New(ErrCodeMissingIO, fmt.Sprintf("missing required io/config: %s", joinSorted(missing))).
		WithDetail("module", module).
		WithDetail("missing", missing)
}

// UnusedInput builds the error for keyword arguments matching no declared
// io()/config() placeholder.
func UnusedInput(module string, extra []string) *Error {
	return New(ErrCodeUnusedInput, fmt.Sprintf("unused inputs: %s", joinSorted(extra))).
		WithDetail("module", module).
		WithDetail("extra", extra)
}

// joinSorted renders a diagnostic-friendly list. Elaboration must be
// deterministic across runs, so the offending names are sorted even though
// spec order is unconstrained.
func joinSorted(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	out := ""
	for i, s := range sorted {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
