// Package gridstore wires gridstore's collaborators — StorageProvider,
// SessionProvider, the SessionManager, the ArtifactStore coordinator, the
// NamespaceRegistry, the MultipartUploadManager, the StreamingEngine, and
// the FederationIndex — into one facade bound to a single sandbox
// identity, following spec.md §6's configuration surface and §9's
// registry-of-factories construction pattern.
//
// This is the only package a caller needs to import for the common case;
// each collaborator package remains independently usable for callers
// that want to bind their own providers directly.
package gridstore

import (
	"context"
	"time"

	"github.com/evalgo/gridstore/artifact"
	"github.com/evalgo/gridstore/common"
	"github.com/evalgo/gridstore/config"
	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/federation"
	"github.com/evalgo/gridstore/multipart"
	"github.com/evalgo/gridstore/namespace"
	"github.com/evalgo/gridstore/objectstore"
	"github.com/evalgo/gridstore/sessionstore"
	"github.com/evalgo/gridstore/streaming"
	"github.com/evalgo/gridstore/version"
)

// Store is the assembled facade: one sandbox identity, one StorageProvider,
// one SessionProvider, and every coordinator built over them.
type Store struct {
	SandboxID string

	Storage  objectstore.Provider
	Sessions sessionstore.Provider

	Artifacts  *artifact.Store
	Namespaces *namespace.Registry
	Multipart  *multipart.Manager
	Streaming  *streaming.Engine
	Federation *federation.Index
	SessionMgr *sessionstore.Manager
}

// Close releases the underlying SessionProvider's resources (connections,
// goroutines). StorageProvider adapters have no long-lived resources of
// their own to release (the S3 client owns its own transport, closed by
// the process, not by gridstore).
func (s *Store) Close() error {
	if s.Sessions != nil {
		return s.Sessions.Close()
	}
	return nil
}

// Open builds a Store from cfg, resolving the configured provider kinds
// through objectstore.New / sessionstore.New (spec.md §9's "registry of
// factories keyed by name") and binding every coordinator over the same
// pair of providers.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	logger := common.ServiceLogger("gridstore", version.GetGridstoreVersion()).
		WithContext(ctx).
		WithField("sandbox_id", cfg.SandboxID)
	defer common.LogPanic(logger)

	var store *Store
	err := common.LogOperation(logger, "open", func() error {
		storageProvider, err := objectstore.New(ctx, objectstore.Config{
			Kind:            objectstore.StorageProviderKind(cfg.StorageProvider),
			Bucket:          storageRoot(cfg),
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			EndpointURL:     cfg.S3EndpointURL,
			IBMCOSEndpoint:  cfg.IBMCOSEndpoint,
		})
		if err != nil {
			return errs.Wrap(errs.KindConfigurationError, "gridstore: construct storage provider", err)
		}

		sessionProvider, err := sessionstore.New(ctx, sessionstore.Config{
			Kind:     sessionstore.ProviderKind(cfg.SessionProvider),
			RedisURL: cfg.SessionRedisURL,
		})
		if err != nil {
			return errs.Wrap(errs.KindConfigurationError, "gridstore: construct session provider", err)
		}

		sessionMgr := sessionstore.NewManager(cfg.SandboxID, sessionProvider, 5*time.Second)

		var fed *federation.Index
		if cfg.FederationEnabled {
			fed = federation.NewIndex(sessionProvider, time.Duration(cfg.FederationTTLDays)*24*time.Hour)
		}

		artifactStore, err := artifact.New(artifact.Config{
			SandboxID:         cfg.SandboxID,
			Bucket:            cfg.Bucket,
			Storage:           storageProvider,
			Sessions:          sessionProvider,
			SessionManager:    sessionMgr,
			Federation:        fed,
			DefaultTTLSeconds: cfg.DefaultTTLSeconds,
			MaxRetries:        cfg.MaxRetries,
		})
		if err != nil {
			return err
		}

		namespaceRegistry, err := namespace.NewRegistry(namespace.Config{
			SandboxID:         cfg.SandboxID,
			Bucket:            cfg.Bucket,
			Storage:           storageProvider,
			Sessions:          sessionProvider,
			DefaultTTLSeconds: cfg.DefaultTTLSeconds,
		})
		if err != nil {
			return err
		}

		multipartMgr := multipart.NewManager(cfg.Bucket, storageProvider, sessionProvider).
			WithSandboxID(cfg.SandboxID).
			WithFederation(fed)

		streamingEngine, err := streaming.NewEngine(streaming.Config{
			SandboxID:         cfg.SandboxID,
			Bucket:            cfg.Bucket,
			Storage:           storageProvider,
			Sessions:          sessionProvider,
			Federation:        fed,
			DefaultTTLSeconds: cfg.DefaultTTLSeconds,
		})
		if err != nil {
			return err
		}

		store = &Store{
			SandboxID:  cfg.SandboxID,
			Storage:    storageProvider,
			Sessions:   sessionProvider,
			Artifacts:  artifactStore,
			Namespaces: namespaceRegistry,
			Multipart:  multipartMgr,
			Streaming:  streamingEngine,
			Federation: fed,
			SessionMgr: sessionMgr,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// storageRoot resolves the root/bucket value the objectstore factory
// needs: FSRoot for filesystem-class providers, Bucket otherwise, per
// spec.md §6 ("bucket ... acts as root directory for filesystem").
func storageRoot(cfg config.StoreConfig) string {
	switch config.StorageProviderKind(cfg.StorageProvider) {
	case config.ProviderFilesystem, config.ProviderVFSFilesystem, config.ProviderVFSSqlite:
		if cfg.FSRoot != "" {
			return cfg.FSRoot
		}
		return cfg.Bucket
	default:
		return cfg.Bucket
	}
}
