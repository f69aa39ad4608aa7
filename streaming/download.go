package streaming

import (
	"context"
	"io"
)

// DownloadInput describes a stream_download call per spec.md §4.3.2.
type DownloadInput struct {
	ArtifactID string
	SessionID  string
	UserID     string
	ChunkSize  int // defaults to DefaultChunkSize when <= 0
	OnProgress ProgressCallback
}

// ChunkReader is the single-consumer, non-restartable lazy byte-chunk
// sequence spec.md §9's pattern mapping names for stream_download: a
// language-appropriate substitute for a generator of chunks. Next
// returns io.EOF once every chunk has been yielded.
type ChunkReader struct {
	data       []byte
	offset     int
	chunkSize  int
	total      int64
	received   int64
	onProgress ProgressCallback
}

// Next returns the next chunk of at most ChunkSize bytes, or io.EOF when
// the object has been fully read. Progress is reported after each
// returned chunk, per spec.md §4.3.2.
func (c *ChunkReader) Next() ([]byte, error) {
	if c.offset >= len(c.data) {
		return nil, io.EOF
	}
	end := c.offset + c.chunkSize
	if end > len(c.data) {
		end = len(c.data)
	}
	chunk := c.data[c.offset:end]
	c.offset = end
	c.received += int64(len(chunk))
	if c.onProgress != nil {
		c.onProgress(c.received, c.total)
	}
	return chunk, nil
}

// StreamDownload returns a ChunkReader over an artifact's bytes, chunked
// at in.ChunkSize (default DefaultChunkSize = 64 KiB), after enforcing
// the scope check (spec.md §4.3.2: "Passes scope check before first
// chunk is produced").
//
// None of gridstore's objectstore.Provider adapters expose a true
// streaming GET either (see streaming/engine.go's package doc), so this
// reads the full object up front and then hands it out in bounded
// chunks — observably identical to the spec's chunk sequence from the
// caller's perspective, documented in DESIGN.md as the same
// simplification StreamUpload makes on the write side.
func (e *Engine) StreamDownload(ctx context.Context, in DownloadInput) (*ChunkReader, error) {
	meta, err := e.readMetadata(ctx, in.ArtifactID)
	if err != nil {
		return nil, err
	}
	if err := checkScope(meta, in.SessionID, in.UserID); err != nil {
		return nil, err
	}

	body, _, getErr := e.storage.GetObject(ctx, e.bucket, meta.Key)
	if mapped := mapProviderErr(getErr); mapped != nil {
		return nil, mapped
	}

	chunkSize := in.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkReader{
		data:       body,
		chunkSize:  chunkSize,
		total:      meta.Bytes,
		onProgress: in.OnProgress,
	}, nil
}
