package artifact

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/evalgo/gridstore/errs"
)

// retryPolicy mirrors the teacher's storage/s3aws.go reach for
// aws-sdk-go-v2/aws/retry for the same concern, generalized to
// backoff/v4's exponential backoff so every provider (not only the S3
// one) gets the same withRetry wrapper.
type retryPolicy struct {
	maxRetries int
}

const (
	initialBackoff = 100 * time.Millisecond
	backoffFactor  = 2.0
	maxBackoff     = 2 * time.Second
)

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.Multiplier = backoffFactor
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries, not wall-clock time
	b.Reset()
	return b
}

// withRetry runs op, retrying up to maxRetries times with exponential
// backoff when op returns a transient errs.KindProviderError. Any other
// error kind (validation, not-found, access-denied, multipart violations)
// is surfaced immediately without retry, per spec.md §4.3.1 and §7.
func (p retryPolicy) withRetry(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !errs.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(p.maxRetries)), ctx)
	return backoff.Retry(wrapped, policy)
}
