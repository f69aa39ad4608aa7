package objectstore

import (
	"context"
	"fmt"
	"path/filepath"
)

// Config is the subset of config.StoreConfig the object-storage factory
// needs. Kept as its own small struct (rather than importing the config
// package) to avoid an import cycle — config validates option values,
// this package turns validated values into live Providers.
type Config struct {
	Kind StorageProviderKind

	// Bucket is the S3-class bucket name, or the filesystem/vfs-sqlite
	// root directory (spec.md §6: "bucket ... acts as root directory for
	// filesystem").
	Bucket string

	Region          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string

	IBMCOSEndpoint string
}

// StorageProviderKind mirrors config.StorageProviderKind's string values
// so this package doesn't need to import config. Both are the same
// underlying strings spec.md §6 names.
type StorageProviderKind string

const (
	KindMemory         StorageProviderKind = "memory"
	KindFilesystem     StorageProviderKind = "filesystem"
	KindS3             StorageProviderKind = "s3"
	KindIBMCOS         StorageProviderKind = "ibm_cos"
	KindVFSMemory      StorageProviderKind = "vfs-memory"
	KindVFSFilesystem  StorageProviderKind = "vfs-filesystem"
	KindVFSS3          StorageProviderKind = "vfs-s3"
	KindVFSSqlite      StorageProviderKind = "vfs-sqlite"
)

// New is the registry-of-factories-keyed-by-name gridstore uses to turn a
// configured provider name into a live Provider, per spec.md §9's pattern
// mapping ("a registry of factories keyed by name, each returning a value
// of an interface type... no dynamic dispatch beyond one v-table hop").
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Kind {
	case KindMemory:
		return NewMemory(), nil
	case KindFilesystem:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("objectstore: filesystem provider requires a root directory (bucket)")
		}
		return NewFilesystem(cfg.Bucket)
	case KindS3:
		return NewS3(ctx, S3Config{
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			EndpointURL:     cfg.EndpointURL,
			UsePathStyle:    cfg.EndpointURL != "",
		})
	case KindIBMCOS:
		// IBM COS is S3-compatible; it is wired to the same S3 client with
		// a different endpoint, per SPEC_FULL.md §C.4 rather than a
		// second near-duplicate client.
		endpoint := cfg.IBMCOSEndpoint
		if endpoint == "" {
			endpoint = cfg.EndpointURL
		}
		return NewS3(ctx, S3Config{
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			EndpointURL:     endpoint,
			UsePathStyle:    true,
		})
	case KindVFSMemory:
		return NewVFS(string(cfg.Kind), NewMemory()), nil
	case KindVFSFilesystem:
		fs, err := NewFilesystem(cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return NewVFS(string(cfg.Kind), fs), nil
	case KindVFSS3:
		s3p, err := NewS3(ctx, S3Config{
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			EndpointURL:     cfg.EndpointURL,
			UsePathStyle:    cfg.EndpointURL != "",
		})
		if err != nil {
			return nil, err
		}
		return NewVFS(string(cfg.Kind), s3p), nil
	case KindVFSSqlite:
		// No sqlite-backed object store exists in the example pack (see
		// SPEC_FULL.md §B.1); fall back to a filesystem root derived from
		// the sqlite path's directory, documented as a simplification.
		fs, err := NewFilesystem(filepath.Dir(cfg.Bucket))
		if err != nil {
			return nil, err
		}
		return NewVFS(string(cfg.Kind), fs), nil
	default:
		return nil, fmt.Errorf("objectstore: unknown storage provider kind %q", cfg.Kind)
	}
}
