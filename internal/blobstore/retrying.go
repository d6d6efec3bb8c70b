package blobstore

import (
	"context"

	"photosync/internal/retry"
)

// Retrying wraps a Client so transient failures are retried with backoff.
type Retrying struct {
	next   Client
	policy retry.Policy
}

// NewRetrying wraps next with policy.
func NewRetrying(next Client, policy retry.Policy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

var _ Client = (*Retrying)(nil)

func (r *Retrying) Upload(ctx context.Context, id string, data []byte) (string, error) {
	return retry.Value(ctx, r.policy, "blob upload", func(ctx context.Context) (string, error) {
		return r.next.Upload(ctx, id, data)
	})
}

func (r *Retrying) Download(ctx context.Context, path string) ([]byte, error) {
	return retry.Value(ctx, r.policy, "blob download", func(ctx context.Context) ([]byte, error) {
		return r.next.Download(ctx, path)
	})
}

func (r *Retrying) Delete(ctx context.Context, path string) (bool, error) {
	return retry.Value(ctx, r.policy, "blob delete", func(ctx context.Context) (bool, error) {
		return r.next.Delete(ctx, path)
	})
}

func (r *Retrying) Exists(ctx context.Context, path string) (bool, error) {
	return retry.Value(ctx, r.policy, "blob exists", func(ctx context.Context) (bool, error) {
		return r.next.Exists(ctx, path)
	})
}

func (r *Retrying) Ping(ctx context.Context) error {
	return r.policy.Do(ctx, "blob ping", r.next.Ping)
}
