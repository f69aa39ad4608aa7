// Package idgen generates the opaque, URL-safe identifiers used for
// artifacts, sessions, namespaces, checkpoints, and multipart uploads.
//
// Identifiers are 128 bits of crypto/rand entropy encoded as unpadded
// base32 (RFC 4648), which keeps them URL-safe and case-insensitive
// without the '=' padding or '+'/'/' characters a base64 id would carry
// into a grid key leaf segment.
package idgen

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// New returns a fresh 128-bit random identifier with the given prefix
// (e.g. "artifact", "sess", "ns", "upload", "ckpt"), separated by a hyphen.
// An empty prefix returns the bare encoded id.
func New(prefix string) string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read on the standard reader only fails if the OS
		// entropy source is broken beyond recovery; there is no safe
		// degraded mode to fall back to.
		panic(fmt.Sprintf("idgen: crypto/rand unavailable: %v", err))
	}
	encoded := encoding.EncodeToString(buf[:])
	if prefix == "" {
		return encoded
	}
	return prefix + "-" + encoded
}

// Sandbox generates a random sandbox id in the "sandbox-{8 hex}" form
// spec'd as the default when no sandbox_id is configured.
func Sandbox() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("idgen: crypto/rand unavailable: %v", err))
	}
	return fmt.Sprintf("sandbox-%x", buf)
}
