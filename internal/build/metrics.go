package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build outcomes for the health endpoint.
type BuildMetrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	SharedResults    int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastBuild        time.Time
	LastError        string
	mutex            sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records one toolchain invocation.
func (bm *BuildMetrics) RecordBuild(duration time.Duration, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += duration
	bm.LastBuild = time.Now()

	if err != nil {
		bm.FailedBuilds++
		bm.LastError = err.Error()
	} else {
		bm.SuccessfulBuilds++
		bm.LastError = ""
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// RecordShared records a request answered by a build it did not start.
func (bm *BuildMetrics) RecordShared() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.SharedResults++
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		SharedResults:    bm.SharedResults,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
		LastBuild:        bm.LastBuild,
		LastError:        bm.LastError,
	}
}

// SuccessRate returns the share of successful builds as a percentage.
func (bm *BuildMetrics) SuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0
	}

	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100
}
