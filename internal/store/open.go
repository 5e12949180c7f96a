package store

import "fmt"

// Options selects and configures a backend.
type Options struct {
	Backend     string
	BadgerDir   string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
	QuotaBytes  int
}

// Open constructs the configured backend wrapped with the quota check.
func Open(opts Options) (KV, error) {
	var (
		kv  KV
		err error
	)
	switch opts.Backend {
	case "memory":
		kv = NewMemory()
	case "badger":
		kv, err = NewBadger(opts.BadgerDir)
	case "redis":
		kv = NewRedis(opts.RedisAddr, "rollcall:")
	case "postgres":
		kv, err = NewPostgres(opts.DatabaseURL)
	case "sqlite":
		kv, err = NewSQLite(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return WithQuota(kv, opts.QuotaBytes), nil
}
