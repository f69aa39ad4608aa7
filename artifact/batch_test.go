package artifact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	items := []BatchItem{
		{Data: []byte("a"), Mime: "text/plain", Summary: "ok"},
		{Data: []byte("b"), Mime: "", Summary: "missing mime, should fail"},
		{Data: []byte("c"), Mime: "text/plain", Summary: "ok"},
	}

	var failed []int
	results := s.StoreBatch(ctx, "s1", items, func(index int, err error) {
		failed = append(failed, index)
	})

	require.Len(t, results, 3)
	assert.NotEmpty(t, results[0].ArtifactID)
	assert.Error(t, results[1].Err)
	assert.NotEmpty(t, results[2].ArtifactID)
	assert.Equal(t, []int{1}, failed)
}
