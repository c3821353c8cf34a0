// Package blob is the entry point for run artifact storage. It re-exports
// the core abstractions and selects a driver from configuration; callers
// outside this package never import the infra drivers directly.
package blob

import (
	"interdiag/internal/blob/core"
)

type (
	// Driver identifies a store backend.
	Driver = core.Driver
	// PutOptions configures an artifact write.
	PutOptions = core.PutOptions
	// Info describes stored artifact metadata.
	Info = core.Info
	// Store is the artifact store interface.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)
