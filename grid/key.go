// Package grid implements the canonical object-storage key layout shared by
// every artifact, namespace, checkpoint, and multipart upload in gridstore.
//
// Every key written to a StorageProvider bucket has the form:
//
//	grid/{sandbox_id}/{scope_marker}/{leaf}[/{sub_path}]
//
// where scope_marker is one of "sess-{session_id}", "user-{user_id}", or
// "shared". The codec is deliberately dumb: it has no knowledge of scopes,
// artifacts, or namespaces, only of the four-segment layout and the
// characters that are not allowed inside a segment.
package grid

import (
	"fmt"
	"strings"
)

// Root is the fixed first path segment of every key this package builds.
const Root = "grid"

// MalformedKeyError reports that a key could not be parsed or a segment
// failed validation when building one.
type MalformedKeyError struct {
	Key    string
	Reason string
}

func (e *MalformedKeyError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("grid: malformed key: %s", e.Reason)
	}
	return fmt.Sprintf("grid: malformed key %q: %s", e.Key, e.Reason)
}

// Key is the parsed form of a grid key.
type Key struct {
	Sandbox     string
	ScopeMarker string
	Leaf        string
	SubPath     string // empty when the key has no fourth segment
}

// String rebuilds the bit-exact key this Key was parsed from (or an
// equivalent one built from the same fields).
func (k Key) String() string {
	return Build(k.Sandbox, k.ScopeMarker, k.Leaf, k.SubPath)
}

// SessionScopeMarker returns the scope marker for a session-scoped key.
func SessionScopeMarker(sessionID string) string {
	return "sess-" + sessionID
}

// UserScopeMarker returns the scope marker for a user-scoped key.
func UserScopeMarker(userID string) string {
	return "user-" + userID
}

// SandboxScopeMarker is the scope marker shared by every sandbox-scoped key.
const SandboxScopeMarker = "shared"

// validSegment rejects empty segments, segments containing "/", and
// segments beginning with ".". sub_path is exempt from the "/" rule since
// it is itself allowed to describe a nested path.
func validSegment(s string) error {
	if s == "" {
		return fmt.Errorf("segment must not be empty")
	}
	if strings.Contains(s, "/") {
		return fmt.Errorf("segment must not contain '/'")
	}
	if strings.HasPrefix(s, ".") {
		return fmt.Errorf("segment must not start with '.'")
	}
	return nil
}

// Build assembles a grid key from its parts. subPath is optional: pass ""
// to omit the fourth segment. It panics if any of sandbox, scopeMarker, or
// leaf fails validation, since a caller building a key from untrusted input
// should validate with Validate first — Build is for the internal,
// already-trusted construction path used throughout the coordinator.
func Build(sandbox, scopeMarker, leaf, subPath string) string {
	if err := validSegment(sandbox); err != nil {
		panic(fmt.Sprintf("grid.Build: invalid sandbox: %v", err))
	}
	if err := validSegment(scopeMarker); err != nil {
		panic(fmt.Sprintf("grid.Build: invalid scope marker: %v", err))
	}
	if err := validSegment(leaf); err != nil {
		panic(fmt.Sprintf("grid.Build: invalid leaf: %v", err))
	}

	key := Root + "/" + sandbox + "/" + scopeMarker + "/" + leaf
	if subPath != "" {
		subPath = strings.TrimPrefix(subPath, "/")
		key += "/" + subPath
	}
	return key
}

// BuildSafe is Build without the panic: it validates every segment and
// returns a MalformedKeyError instead.
func BuildSafe(sandbox, scopeMarker, leaf, subPath string) (string, error) {
	if err := validSegment(sandbox); err != nil {
		return "", &MalformedKeyError{Reason: "sandbox: " + err.Error()}
	}
	if err := validSegment(scopeMarker); err != nil {
		return "", &MalformedKeyError{Reason: "scope marker: " + err.Error()}
	}
	if err := validSegment(leaf); err != nil {
		return "", &MalformedKeyError{Reason: "leaf: " + err.Error()}
	}
	return Build(sandbox, scopeMarker, leaf, subPath), nil
}

// Parse splits a grid key into its components. It fails with
// MalformedKeyError if the root segment isn't "grid" or fewer than three
// segments follow it.
func Parse(key string) (Key, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 4 {
		return Key{}, &MalformedKeyError{Key: key, Reason: "expected at least 4 path segments"}
	}
	if parts[0] != Root {
		return Key{}, &MalformedKeyError{Key: key, Reason: "missing grid root segment"}
	}
	for _, seg := range parts[1:4] {
		if seg == "" {
			return Key{}, &MalformedKeyError{Key: key, Reason: "empty path segment"}
		}
	}

	k := Key{
		Sandbox:     parts[1],
		ScopeMarker: parts[2],
		Leaf:        parts[3],
	}
	if len(parts) > 4 {
		k.SubPath = strings.Join(parts[4:], "/")
	}
	return k, nil
}

// HasPrefix reports whether key is rooted under the given sandbox and scope
// marker, i.e. whether it begins with "grid/{sandbox}/{scopeMarker}/".
func HasPrefix(key, sandbox, scopeMarker string) bool {
	prefix := Root + "/" + sandbox + "/" + scopeMarker + "/"
	return strings.HasPrefix(key, prefix)
}

// CanonicalPrefix returns the "grid/{sandbox}/{scopeMarker}/" prefix shared
// by every key written under one sandbox+scope pair.
func CanonicalPrefix(sandbox, scopeMarker string) string {
	return Root + "/" + sandbox + "/" + scopeMarker + "/"
}
