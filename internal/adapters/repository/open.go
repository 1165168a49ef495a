package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Params selects and addresses a backend.
type Params struct {
	Driver        string
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open returns the NameStore for p.Driver.
func Open(ctx context.Context, p Params, opts ...Option) (NameStore, error) {
	switch p.Driver {
	case DriverSQLite:
		return NewSQLite(ctx, p.DSN, opts...)
	case DriverPostgres:
		return NewPostgres(ctx, p.DSN, opts...)
	case DriverRedis:
		return NewRedis(ctx, &redis.Options{
			Addr:     p.RedisAddr,
			Password: p.RedisPassword,
			DB:       p.RedisDB,
		}, opts...)
	case DriverMemory:
		return NewMemory(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, p.Driver)
	}
}
