package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("store: key not found")
	// ErrQuotaExceeded is returned when a value does not fit the configured quota.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)

// KV is a flat string key space, the server-side stand-in for browser local storage.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Quota rejects values larger than MaxValueBytes before they reach the backend.
type Quota struct {
	KV
	MaxValueBytes int
}

// WithQuota wraps kv; maxValueBytes <= 0 disables the check.
func WithQuota(kv KV, maxValueBytes int) KV {
	if maxValueBytes <= 0 {
		return kv
	}
	return &Quota{KV: kv, MaxValueBytes: maxValueBytes}
}

// Set enforces the quota.
func (q *Quota) Set(ctx context.Context, key, value string) error {
	if len(value) > q.MaxValueBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrQuotaExceeded, key, len(value), q.MaxValueBytes)
	}
	return q.KV.Set(ctx, key, value)
}
