package composer

import "github.com/kidsdesign/storefront/internal/catalog"

// LaneState is the state of one independent fetch.
type LaneState int

const (
	LaneIdle LaneState = iota
	LaneLoading
	LaneSucceeded
	LaneFailed
)

func (s LaneState) String() string {
	switch s {
	case LaneIdle:
		return "idle"
	case LaneLoading:
		return "loading"
	case LaneSucceeded:
		return "succeeded"
	case LaneFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RequestKey identifies the fetch that a lane result belongs to. Generation is
// bumped on every restart so a late result is rejected even when the
// parameters happen to match again.
type RequestKey struct {
	Params     catalog.PageRequest
	Generation uint64
}

// Lane tracks one fetch through idle, loading, succeeded and failed.
type Lane[T any] struct {
	State LaneState
	Key   RequestKey
	Data  T
	Err   error
}

// Start moves the lane to loading for key, dropping any previous result.
func (l *Lane[T]) Start(key RequestKey) {
	var zero T
	l.State = LaneLoading
	l.Key = key
	l.Data = zero
	l.Err = nil
}

// Succeed applies a result. It reports false and leaves the lane untouched
// when key is stale or the lane is not loading.
func (l *Lane[T]) Succeed(key RequestKey, data T) bool {
	if !l.accepts(key) {
		return false
	}
	l.State = LaneSucceeded
	l.Data = data
	return true
}

// Fail applies a failure under the same rules as Succeed.
func (l *Lane[T]) Fail(key RequestKey, err error) bool {
	if !l.accepts(key) {
		return false
	}
	l.State = LaneFailed
	l.Err = err
	return true
}

// Pending reports whether the lane has not produced a result yet.
func (l *Lane[T]) Pending() bool {
	return l.State == LaneIdle || l.State == LaneLoading
}

func (l *Lane[T]) accepts(key RequestKey) bool {
	return l.State == LaneLoading && l.Key == key
}
