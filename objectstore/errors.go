package objectstore

import "errors"

// ErrNoSuchKey and ErrNoSuchBucket are the two sentinel conditions the
// coordinator maps onto errs.KindArtifactNotFound / errs.KindProviderError
// respectively (spec §6's "Error codes exposed at this layer").
var (
	ErrNoSuchKey    = errors.New("objectstore: no such key")
	ErrNoSuchBucket = errors.New("objectstore: no such bucket")
)
