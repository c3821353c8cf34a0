package blob

import (
	"context"
	"fmt"

	"interdiag/internal/config"
	infrafs "interdiag/internal/infra/blob/fs"
	inframemory "interdiag/internal/infra/blob/memory"
	infras3 "interdiag/internal/infra/blob/s3"
	"interdiag/internal/logging"
)

// Open returns the store selected by cfg.Driver (fs when empty).
func Open(ctx context.Context, cfg config.Blob, logger logging.Logger) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return infrafs.New(cfg.FSRoot)
	case DriverS3:
		return infras3.New(ctx, infras3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			Logger:    logger,
		})
	case DriverMemory:
		return inframemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store { return inframemory.New() }

// NewMockS3ForTests returns an S3 store backed by an in-process fake
// endpoint, together with a switch that makes the endpoint fail.
func NewMockS3ForTests() (Store, func(failing bool)) {
	s, m := infras3.NewMockForTests()
	return s, m.SetFailing
}
