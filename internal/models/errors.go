package models

import "errors"

var (
	// ErrNoFallback is returned when a cache-first miss cannot be fetched and nothing else can answer
	ErrNoFallback = errors.New("no fallback available")
	// ErrProvisionFailed wraps the first asset failure of a provisioning pass
	ErrProvisionFailed = errors.New("provisioning failed")
	// ErrNoActiveVersion is returned when a request arrives before any version has activated
	ErrNoActiveVersion = errors.New("no active version")
	// ErrRegionDeleted is returned when writing through a handle whose region was deleted
	ErrRegionDeleted = errors.New("region deleted")
)
