package heatmap

import "errors"

var (
	// ErrNoOccurrenceData means no observations exist for the requested
	// (species, date). Reported to the caller, never retried.
	ErrNoOccurrenceData = errors.New("no occurrence data for requested date")

	// ErrNoClimateData means no climate grid snapshot exists for the
	// requested date. Reported to the caller, never retried.
	ErrNoClimateData = errors.New("no climate data for requested date")

	// ErrStorageUnavailable wraps persistent asset-store failures after
	// bounded retries.
	ErrStorageUnavailable = errors.New("asset storage unavailable")
)
