// Package blob re-exports the blob abstractions and opens the configured
// backend. It is the only package allowed to import the infra blob backends.
package blob

import (
	"opensilex/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrNotFound is wrapped by errors for missing keys.
	ErrNotFound = core.ErrNotFound
	// ErrExists is wrapped by create-only writes on a taken key.
	ErrExists = core.ErrExists
)
