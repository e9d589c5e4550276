package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMetadata means the metadata query returned no usable video
	// object. Fatal, no retry.
	ErrNoMetadata = errors.New("no video metadata available")

	// ErrNoValidQuality means every candidate quality failed probing.
	ErrNoValidQuality = errors.New("no valid quality found")

	// ErrNoSegmentsInRange means the clip window matched zero segments.
	ErrNoSegmentsInRange = errors.New("no segments in requested range")

	// ErrTooManyFailures means the consecutive non-blocked failure
	// threshold was exceeded; the network is considered dead.
	ErrTooManyFailures = errors.New("too many connection failures")

	// ErrCancelled is user-initiated cancellation, distinguished from
	// failure. No error notification is sent for it.
	ErrCancelled = errors.New("download cancelled")

	// ErrStorageQuota means the segment store cannot hold the estimated
	// download size.
	ErrStorageQuota = errors.New("insufficient storage quota")

	// ErrExportFailed means every save mechanism failed.
	ErrExportFailed = errors.New("all export paths failed")
)

// FailureClass categorizes a segment fetch outcome. Classification is
// load-bearing: blocked segments are expected and never abort a job,
// while transient failures count toward the fatal threshold.
type FailureClass int

const (
	// FailureTransient covers timeouts, 429, 5xx and network errors.
	// Retried with backoff; counts toward the fatal threshold.
	FailureTransient FailureClass = iota

	// FailureBlocked is an HTTP 403: content withheld for copyright.
	// Recorded as a statistic, never counted toward the fatal threshold.
	FailureBlocked

	// FailureCancelled is a propagated cancellation; aborts immediately
	// without retry.
	FailureCancelled
)

func (c FailureClass) String() string {
	switch c {
	case FailureBlocked:
		return "blocked"
	case FailureCancelled:
		return "cancelled"
	default:
		return "transient"
	}
}

// SegmentFetchError carries the classification of a failed segment fetch
type SegmentFetchError struct {
	Class      FailureClass
	StatusCode int // last HTTP status, 0 for pure network errors
	Attempts   int
	Err        error
}

func (e *SegmentFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("segment fetch failed (%s, HTTP %d, %d attempts): %v", e.Class, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("segment fetch failed (%s, %d attempts): %v", e.Class, e.Attempts, e.Err)
}

func (e *SegmentFetchError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an HTTP status to a failure class. 403 is the
// copyright-block signal; everything else non-2xx is treated as
// transient and retryable.
func ClassifyStatus(status int) FailureClass {
	if status == 403 {
		return FailureBlocked
	}
	return FailureTransient
}
