package namespace

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/objectstore"
	"github.com/evalgo/gridstore/types"
)

// dirMarker is the zero-byte object that realizes an otherwise-empty
// directory, since object storage has no native directory concept. A
// directory with at least one file in it needs no marker; Ls synthesizes
// the intermediate directory names from object key prefixes either way.
const dirMarker = ".keep"

// NodeInfo describes one VFS entry, returned by GetNodeInfo.
type NodeInfo struct {
	Path    string
	IsDir   bool
	Size    int64
	Mime    string
	Meta    map[string]interface{}
}

// StorageStats is a namespace-wide usage summary, returned by
// GetStorageStats.
type StorageStats struct {
	ObjectCount int
	TotalBytes  int64
}

// VFS is the workspace-relative filesystem view spec.md §4.4 names,
// obtained through Registry.GetNamespaceVFS. Every path argument is
// relative to the namespace root; VFS resolves it against the namespace's
// grid path before talking to the underlying objectstore.Provider.
type VFS struct {
	registry *Registry
	info     types.NamespaceInfo
	cwd      string // workspace-relative directory prefix, no trailing "/"
}

// GetNamespaceVFS returns the VFS view over an existing namespace.
func (r *Registry) GetNamespaceVFS(ctx context.Context, nsID string) (*VFS, error) {
	info, err := r.Info(ctx, nsID)
	if err != nil {
		return nil, err
	}
	return &VFS{registry: r, info: info}, nil
}

func (v *VFS) resolve(p string) string {
	joined := path.Join(v.cwd, p)
	return strings.TrimPrefix(joined, "/")
}

func (v *VFS) key(p string) string {
	return objectKey(v.info.GridPath, v.resolve(p))
}

func (v *VFS) metaIndexKey() string {
	return objectKey(v.info.GridPath, "_node_meta.json")
}

// Cd returns a new VFS rooted at p relative to the current directory. It
// does not verify p exists; use Exists/IsDir first if that matters.
func (v *VFS) Cd(p string) *VFS {
	return &VFS{registry: v.registry, info: v.info, cwd: v.resolve(p)}
}

// Exists reports whether path names a file (object) directly, not a
// directory inferred from a common prefix.
func (v *VFS) Exists(ctx context.Context, p string) (bool, error) {
	_, err := v.registry.storage.HeadObject(ctx, v.registry.bucket, v.key(p))
	if err == objectstore.ErrNoSuchKey {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.KindProviderError, "namespace: head object", err)
	}
	return true, nil
}

// IsFile is Exists under another name, matching the spec's named surface.
func (v *VFS) IsFile(ctx context.Context, p string) (bool, error) { return v.Exists(ctx, p) }

// IsDir reports whether path has at least one object nested under it (or
// an explicit directory marker).
func (v *VFS) IsDir(ctx context.Context, p string) (bool, error) {
	prefix := v.key(p)
	if prefix != "" {
		prefix += "/"
	}
	result, err := v.registry.storage.ListObjectsV2(ctx, v.registry.bucket, prefix, 1)
	if err != nil {
		return false, errs.Wrap(errs.KindProviderError, "namespace: list for is_dir", err)
	}
	return len(result.Contents) > 0, nil
}

// Mkdir creates an empty directory by writing its marker object. Creating
// an already-populated directory is a no-op.
func (v *VFS) Mkdir(ctx context.Context, p string) error {
	markerKey := v.key(path.Join(p, dirMarker))
	if _, err := v.registry.storage.PutObject(ctx, v.registry.bucket, markerKey, nil, "application/octet-stream", nil); err != nil {
		return errs.Wrap(errs.KindProviderError, "namespace: mkdir", err)
	}
	return nil
}

// Rmdir recursively deletes every object under a directory, including its
// marker.
func (v *VFS) Rmdir(ctx context.Context, p string) error {
	prefix := v.key(p) + "/"
	return v.registry.deleteAllUnder(ctx, prefix)
}

// Rm deletes a single file.
func (v *VFS) Rm(ctx context.Context, p string) error {
	if err := v.registry.storage.DeleteObject(ctx, v.registry.bucket, v.key(p)); err != nil {
		return errs.Wrap(errs.KindProviderError, "namespace: rm", err)
	}
	return nil
}

// Cp copies a file within the namespace.
func (v *VFS) Cp(ctx context.Context, src, dst string) error {
	if _, err := v.registry.storage.CopyObject(ctx, v.registry.bucket, v.key(src), v.key(dst)); err != nil {
		return errs.Wrap(errs.KindProviderError, "namespace: cp", err)
	}
	return nil
}

// Mv renames/moves a file within the namespace.
func (v *VFS) Mv(ctx context.Context, src, dst string) error {
	if err := v.Cp(ctx, src, dst); err != nil {
		return err
	}
	return v.Rm(ctx, src)
}

// ReadFile returns a file's raw bytes.
func (v *VFS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	body, _, err := v.registry.storage.GetObject(ctx, v.registry.bucket, v.key(p))
	if err != nil {
		if err == objectstore.ErrNoSuchKey {
			return nil, errs.Wrap(errs.KindArtifactNotFound, "namespace: file not found", err)
		}
		return nil, errs.Wrap(errs.KindProviderError, "namespace: read_file", err)
	}
	return body, nil
}

// WriteFile writes a file's raw bytes, creating or overwriting it.
func (v *VFS) WriteFile(ctx context.Context, p string, data []byte) error {
	if _, err := v.registry.storage.PutObject(ctx, v.registry.bucket, v.key(p), data, "application/octet-stream", nil); err != nil {
		return errs.Wrap(errs.KindProviderError, "namespace: write_file", err)
	}
	return nil
}

// ReadText/WriteText are ReadFile/WriteFile with a string payload; VFS
// makes no encoding promise beyond UTF-8, matching the coordinator's own
// ReadFileText.
func (v *VFS) ReadText(ctx context.Context, p string) (string, error) {
	data, err := v.ReadFile(ctx, p)
	return string(data), err
}

func (v *VFS) WriteText(ctx context.Context, p, text string) error {
	return v.WriteFile(ctx, p, []byte(text))
}

// ReadBinary/WriteBinary are named identically to ReadFile/WriteFile per
// spec.md §4.4's VFS surface; Go draws no type distinction between a byte
// slice read as text or as binary, so both pairs share one implementation.
func (v *VFS) ReadBinary(ctx context.Context, p string) ([]byte, error) { return v.ReadFile(ctx, p) }

func (v *VFS) WriteBinary(ctx context.Context, p string, data []byte) error {
	return v.WriteFile(ctx, p, data)
}

// Touch creates an empty file if it does not already exist; an existing
// file is left untouched.
func (v *VFS) Touch(ctx context.Context, p string) error {
	exists, err := v.Exists(ctx, p)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return v.WriteFile(ctx, p, nil)
}

// Ls lists the immediate children (files and synthesized subdirectories)
// of a directory.
func (v *VFS) Ls(ctx context.Context, p string) ([]string, error) {
	prefix := v.key(p)
	if prefix != "" {
		prefix += "/"
	}
	result, err := v.registry.storage.ListObjectsV2(ctx, v.registry.bucket, prefix, 0)
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "namespace: ls", err)
	}
	seen := map[string]bool{}
	var names []string
	for _, obj := range result.Contents {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == "" || rel == dirMarker {
			continue
		}
		head := rel
		if idx := strings.Index(rel, "/"); idx >= 0 {
			head = rel[:idx]
		}
		if !seen[head] {
			seen[head] = true
			names = append(names, head)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Find lists every path under dir (recursively by default) matching
// pattern, a path.Match-style glob applied to each entry's base name.
func (v *VFS) Find(ctx context.Context, pattern, dir string, recursive bool) ([]string, error) {
	prefix := v.key(dir)
	if prefix != "" {
		prefix += "/"
	}
	result, err := v.registry.storage.ListObjectsV2(ctx, v.registry.bucket, prefix, 0)
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "namespace: find", err)
	}
	var out []string
	for _, obj := range result.Contents {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == "" || strings.HasSuffix(rel, dirMarker) {
			continue
		}
		if !recursive && strings.Contains(rel, "/") {
			continue
		}
		matched, err := path.Match(pattern, path.Base(rel))
		if err != nil {
			return nil, errs.Wrap(errs.KindConfigurationError, "namespace: invalid find pattern", err)
		}
		if matched {
			out = append(out, rel)
		}
	}
	return out, nil
}

// nodeMetaIndex is the namespace-wide path -> metadata map VFS persists as
// a single sidecar object, since object storage has no native concept of
// per-key custom metadata that survives every adapter uniformly.
type nodeMetaIndex map[string]map[string]interface{}

func (v *VFS) loadMetaIndex(ctx context.Context) (nodeMetaIndex, error) {
	body, _, err := v.registry.storage.GetObject(ctx, v.registry.bucket, v.metaIndexKey())
	if err == objectstore.ErrNoSuchKey {
		return nodeMetaIndex{}, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "namespace: read node metadata index", err)
	}
	var idx nodeMetaIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "namespace: decode node metadata index", err)
	}
	if idx == nil {
		idx = nodeMetaIndex{}
	}
	return idx, nil
}

func (v *VFS) saveMetaIndex(ctx context.Context, idx nodeMetaIndex) error {
	raw, err := json.Marshal(idx)
	if err != nil {
		return errs.Wrap(errs.KindMetadataWriteFailed, "namespace: encode node metadata index", err)
	}
	if _, err := v.registry.storage.PutObject(ctx, v.registry.bucket, v.metaIndexKey(), raw, "application/json", nil); err != nil {
		return errs.Wrap(errs.KindMetadataWriteFailed, "namespace: write node metadata index", err)
	}
	return nil
}

// GetMetadata returns whatever custom metadata SetMetadata previously
// attached to path, or an empty map if none.
func (v *VFS) GetMetadata(ctx context.Context, p string) (map[string]interface{}, error) {
	idx, err := v.loadMetaIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx[v.resolve(p)], nil
}

// SetMetadata attaches custom metadata to path, replacing any previous
// value.
func (v *VFS) SetMetadata(ctx context.Context, p string, meta map[string]interface{}) error {
	idx, err := v.loadMetaIndex(ctx)
	if err != nil {
		return err
	}
	idx[v.resolve(p)] = meta
	return v.saveMetaIndex(ctx, idx)
}

// GetNodeInfo returns size, kind, and custom metadata for a path.
func (v *VFS) GetNodeInfo(ctx context.Context, p string) (NodeInfo, error) {
	isDir, err := v.IsDir(ctx, p)
	if err != nil {
		return NodeInfo{}, err
	}
	info := NodeInfo{Path: v.resolve(p), IsDir: isDir}
	if !isDir {
		head, err := v.registry.storage.HeadObject(ctx, v.registry.bucket, v.key(p))
		if err != nil {
			if err == objectstore.ErrNoSuchKey {
				return NodeInfo{}, errs.New(errs.KindArtifactNotFound, "namespace: node not found")
			}
			return NodeInfo{}, errs.Wrap(errs.KindProviderError, "namespace: head node", err)
		}
		info.Size = head.ContentLength
		info.Mime = head.ContentType
	}
	meta, err := v.GetMetadata(ctx, p)
	if err != nil {
		return NodeInfo{}, err
	}
	info.Meta = meta
	return info, nil
}

// GetStorageStats sums object count and bytes across the whole namespace,
// excluding checkpoint snapshots.
func (v *VFS) GetStorageStats(ctx context.Context) (StorageStats, error) {
	keys, err := v.registry.listLiveKeys(ctx, v.info.GridPath)
	if err != nil {
		return StorageStats{}, err
	}
	stats := StorageStats{ObjectCount: len(keys)}
	for _, key := range keys {
		head, err := v.registry.storage.HeadObject(ctx, v.registry.bucket, key)
		if err != nil {
			continue
		}
		stats.TotalBytes += head.ContentLength
	}
	return stats, nil
}

// BatchReadFiles reads multiple files, isolating per-file failures into
// the returned error map rather than aborting the whole batch.
func (v *VFS) BatchReadFiles(ctx context.Context, paths []string) (map[string][]byte, map[string]error) {
	out := make(map[string][]byte, len(paths))
	failures := make(map[string]error)
	for _, p := range paths {
		data, err := v.ReadFile(ctx, p)
		if err != nil {
			failures[p] = err
			continue
		}
		out[p] = data
	}
	return out, failures
}

// BatchWriteFiles writes multiple files, isolating per-file failures.
func (v *VFS) BatchWriteFiles(ctx context.Context, files map[string][]byte) map[string]error {
	failures := make(map[string]error)
	for p, data := range files {
		if err := v.WriteFile(ctx, p, data); err != nil {
			failures[p] = err
		}
	}
	return failures
}

// BatchCreateFiles creates empty files via Touch, isolating per-file
// failures.
func (v *VFS) BatchCreateFiles(ctx context.Context, paths []string) map[string]error {
	failures := make(map[string]error)
	for _, p := range paths {
		if err := v.Touch(ctx, p); err != nil {
			failures[p] = err
		}
	}
	return failures
}

// BatchDeleteFiles deletes multiple files, isolating per-file failures.
func (v *VFS) BatchDeleteFiles(ctx context.Context, paths []string) map[string]error {
	failures := make(map[string]error)
	for _, p := range paths {
		if err := v.Rm(ctx, p); err != nil {
			failures[p] = err
		}
	}
	return failures
}
