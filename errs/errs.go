// Package errs defines the machine-readable error taxonomy shared by every
// gridstore component: the storage and session providers, the artifact
// coordinator, the namespace registry, the multipart manager, the
// streaming engine, and the federation index.
//
// Every error surfaced by a public operation carries a Kind from this
// package so callers can distinguish, for instance, AccessDenied from
// ArtifactNotFound — deliberately kept separate since the caller is
// trusted inside its own sandbox, unlike a public S3-style API that
// collapses both into a generic 403/404.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindArtifactNotFound     Kind = "ArtifactNotFound"
	KindAccessDenied         Kind = "AccessDenied"
	KindSessionError         Kind = "SessionError"
	KindProviderError        Kind = "ProviderError"
	KindConfigurationError   Kind = "ConfigurationError"
	KindMalformedKey         Kind = "MalformedKey"
	KindInvalidPartSequence  Kind = "InvalidPartSequence"
	KindPartTooSmall         Kind = "PartTooSmall"
	KindUploadNotOpen        Kind = "UploadNotOpen"
	KindFederationError      Kind = "FederationError"
	KindIntegrityError       Kind = "IntegrityError"
	KindMissingUserID        Kind = "MissingUserIdForUserScope"
	KindMetadataWriteFailed  Kind = "MetadataWriteFailed"
)

// Error is the single exported error type gridstore returns from its
// public operations. Callers distinguish failure modes with errors.Is
// against the Sentinel values below, or by inspecting Kind directly via
// errors.As.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, errs.New(kind, "")) match on Kind alone,
// ignoring Message and Err — the common way callers probe for a kind
// without constructing an exact message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error that wraps cause, following the fmt.Errorf
// "%w" convention used throughout the rest of gridstore, but preserving
// Kind as a first-class field instead of burying it in the message text.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Of reports the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is (or wraps) a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}

// Retryable reports whether the error's Kind should be retried under the
// coordinator's exponential backoff policy (spec: only ProviderError is
// transient; validation, not-found, access-denied, and multipart
// violations are never retried).
func Retryable(err error) bool {
	return IsKind(err, KindProviderError)
}
