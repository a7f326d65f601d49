package build

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
	"github.com/conneroisu/wasmreload/internal/logging"
	"github.com/conneroisu/wasmreload/internal/metrics"
)

// Result is a finished build together with the artifact bytes read right
// after it, so every caller sees the file that build produced.
type Result struct {
	Artifact Artifact
	Data     []byte
	Duration time.Duration
	// Shared is true when the build was also handed to other callers.
	Shared bool
}

// Coordinator serializes builds on one goroutine and collapses concurrent
// requests for the same project into a single build.
type Coordinator struct {
	builder  Builder
	timeout  time.Duration
	logger   logging.Logger
	metrics  *metrics.Metrics
	stats    *BuildMetrics
	group    singleflight.Group
	requests chan buildRequest
	done     chan struct{}
	started  atomic.Bool
}

type buildRequest struct {
	ctx   context.Context
	dir   string
	reply chan buildReply
}

type buildReply struct {
	result Result
	err    error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTimeout bounds each build. Zero means no bound.
func WithTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records builds into m.
func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator creates a coordinator around builder. Start must be called
// before Build.
func NewCoordinator(builder Builder, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		builder:  builder,
		logger:   logging.Discard(),
		stats:    NewBuildMetrics(),
		requests: make(chan buildRequest),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("build")

	return c
}

// Start launches the builder goroutine. Builds run under ctx: cancelling it
// interrupts the running build and stops the coordinator.
func (c *Coordinator) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	go c.loop(ctx)
}

// Done is closed once the builder goroutine has exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Stats returns the build counters.
func (c *Coordinator) Stats() *BuildMetrics {
	return c.stats
}

// Build runs a fresh build of dir, or joins the build of dir already in
// flight. ctx only bounds how long the caller waits: a build shared with
// other callers is not cancelled when one of them gives up.
func (c *Coordinator) Build(ctx context.Context, dir string) (Result, error) {
	if !c.started.Load() {
		return Result{}, apperrors.NewInternalError(apperrors.ErrCodeInternalError, "build coordinator not started", nil)
	}

	ch := c.group.DoChan(dir, func() (interface{}, error) {
		return c.submit(dir)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		result := r.Val.(Result)
		result.Shared = r.Shared
		if r.Shared {
			c.stats.RecordShared()
			c.metrics.BuildShared()
		}
		return result, nil
	}
}

// submit hands dir to the builder goroutine and waits for its reply.
func (c *Coordinator) submit(dir string) (Result, error) {
	req := buildRequest{dir: dir, reply: make(chan buildReply, 1)}

	select {
	case c.requests <- req:
	case <-c.done:
		return Result{}, errStopped()
	}

	select {
	case reply := <-req.reply:
		return reply.result, reply.err
	case <-c.done:
		return Result{}, errStopped()
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.requests:
			req.ctx = ctx
			result, err := c.execute(req)
			req.reply <- buildReply{result: result, err: err}
		}
	}
}

func (c *Coordinator) execute(req buildRequest) (Result, error) {
	ctx := req.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	perf := logging.StartOperation(c.logger, "build")
	start := time.Now()

	artifact, err := c.builder.Build(ctx, req.dir)
	var data []byte
	if err == nil {
		data, err = os.ReadFile(artifact.Path)
		if err != nil {
			err = apperrors.ErrArtifactMissing(artifact.Path).WithContext("cause", err.Error())
		}
	}

	duration := time.Since(start)
	c.stats.RecordBuild(duration, err)
	c.metrics.BuildCompleted(duration, err)

	if err != nil {
		perf.EndWithError(ctx, err, "dir", req.dir)
		return Result{}, err
	}
	perf.End(ctx, "artifact", artifact.Path, "bytes", len(data))

	return Result{Artifact: artifact, Data: data, Duration: duration}, nil
}

func errStopped() error {
	return apperrors.NewInternalError(apperrors.ErrCodeInternalError, "build coordinator stopped", context.Canceled)
}
