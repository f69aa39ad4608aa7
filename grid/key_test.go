package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParseRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		sandbox     string
		scopeMarker string
		leaf        string
	}{
		{"session scope", "sandbox-a", SessionScopeMarker("sess-123"), "artifact-1"},
		{"user scope", "sandbox-b", UserScopeMarker("alice"), "artifact-2"},
		{"sandbox scope", "sandbox-c", SandboxScopeMarker, "artifact-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := Build(tt.sandbox, tt.scopeMarker, tt.leaf, "")
			parsed, err := Parse(key)
			require.NoError(t, err)
			assert.Equal(t, tt.sandbox, parsed.Sandbox)
			assert.Equal(t, tt.scopeMarker, parsed.ScopeMarker)
			assert.Equal(t, tt.leaf, parsed.Leaf)
			assert.Empty(t, parsed.SubPath)
		})
	}
}

func TestBuildWithSubPath(t *testing.T) {
	key := Build("sandbox-a", "shared", "ws-1", "dir/file.txt")
	assert.Equal(t, "grid/sandbox-a/shared/ws-1/dir/file.txt", key)

	parsed, err := Parse(key)
	require.NoError(t, err)
	assert.Equal(t, "dir/file.txt", parsed.SubPath)
}

func TestParseRejectsMissingRoot(t *testing.T) {
	_, err := Parse("notgrid/sandbox-a/shared/leaf")
	require.Error(t, err)
	var malformed *MalformedKeyError
	assert.ErrorAs(t, err, &malformed)
}

func TestParseRejectsTooFewSegments(t *testing.T) {
	_, err := Parse("grid/sandbox-a/shared")
	require.Error(t, err)
}

func TestParseRejectsEmptySegment(t *testing.T) {
	_, err := Parse("grid//shared/leaf")
	require.Error(t, err)
}

func TestBuildSafeRejectsSlashInSegment(t *testing.T) {
	_, err := BuildSafe("sandbox/a", "shared", "leaf", "")
	require.Error(t, err)
}

func TestBuildSafeRejectsDotPrefixedSegment(t *testing.T) {
	_, err := BuildSafe(".hidden", "shared", "leaf", "")
	require.Error(t, err)
}

func TestBuildPanicsOnInvalidSegment(t *testing.T) {
	assert.Panics(t, func() {
		Build("", "shared", "leaf", "")
	})
}

func TestHasPrefix(t *testing.T) {
	key := Build("sandbox-a", "sess-1", "artifact-1", "")
	assert.True(t, HasPrefix(key, "sandbox-a", "sess-1"))
	assert.False(t, HasPrefix(key, "sandbox-b", "sess-1"))
	assert.False(t, HasPrefix(key, "sandbox-a", "sess-2"))
}

func TestCanonicalPrefix(t *testing.T) {
	assert.Equal(t, "grid/sandbox-a/sess-1/", CanonicalPrefix("sandbox-a", "sess-1"))
}

func TestScopeMarkers(t *testing.T) {
	assert.Equal(t, "sess-abc", SessionScopeMarker("abc"))
	assert.Equal(t, "user-bob", UserScopeMarker("bob"))
	assert.Equal(t, "shared", SandboxScopeMarker)
}

func TestKeyStringRoundTrip(t *testing.T) {
	k := Key{Sandbox: "s", ScopeMarker: "shared", Leaf: "leaf", SubPath: "a/b"}
	assert.Equal(t, "grid/s/shared/leaf/a/b", k.String())
}
