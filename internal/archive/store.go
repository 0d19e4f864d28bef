// Package archive keeps compressed daily allocation snapshots in an object
// store. Stores are plain key/value blobs; Archive layers the snapshot
// format and the day-keyed lookups on top.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// Driver names an object store backend.
type Driver string

const (
	DriverNone   Driver = "none"
	DriverFS     Driver = "fs"
	DriverS3     Driver = "s3"
	DriverMemory Driver = "memory"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("archive: object not found")

// Object describes a stored blob.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is a minimal object store. Put overwrites existing keys.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns objects whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Config selects and configures a Store.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the Store named by cfg.Driver. DriverNone returns a nil
// Store and no error.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverNone, "":
		return nil, nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverFS:
		return NewFS(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unknown archive driver %q", cfg.Driver)}
	}
}
