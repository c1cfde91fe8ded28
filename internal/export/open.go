package export

import (
	"context"
	"fmt"
)

// Archive kinds accepted by Open.
const (
	KindDir    = "dir"
	KindSQLite = "sqlite"
	KindS3     = "s3"
)

// Target selects and configures an archive.
type Target struct {
	Kind   string
	Dir    string
	DB     string
	Bucket string
	Prefix string
}

// Open returns the archive described by t.
func Open(ctx context.Context, t Target) (Archive, error) {
	switch t.Kind {
	case KindDir, "":
		return NewDirSink(t.Dir)
	case KindSQLite:
		if t.DB == "" {
			return nil, fmt.Errorf("open archive: sqlite needs a database path")
		}
		return OpenStore(t.DB)
	case KindS3:
		return NewS3Sink(ctx, t.Bucket, t.Prefix)
	default:
		return nil, fmt.Errorf("open archive: unknown kind %q (want %s, %s or %s)", t.Kind, KindDir, KindSQLite, KindS3)
	}
}
