package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/wasmreload/internal/dirty"
	"github.com/conneroisu/wasmreload/internal/fingerprint"
	"github.com/conneroisu/wasmreload/internal/scanner"
)

// scriptedScanner replays a fixed sequence of scan results and then reports
// no change forever.
type scriptedScanner struct {
	mu          sync.Mutex
	baselineErr error
	results     []scanResult
	baselines   int
	scans       atomic.Int32
}

type scanResult struct {
	changed bool
	err     error
}

func (s *scriptedScanner) Baseline(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines++
	return 3, s.baselineErr
}

func (s *scriptedScanner) Scan(context.Context) (bool, error) {
	s.scans.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return false, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.changed, r.err
}

func (s *scriptedScanner) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func runPoller(t *testing.T, p *Poller) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		if err := p.Baseline(ctx); err != nil {
			done <- err
			return
		}
		done <- p.Loop(ctx)
	}()
	t.Cleanup(cancel)
	return cancel, done
}

func TestPollerFailedBaselineIsReturned(t *testing.T) {
	sc := &scriptedScanner{baselineErr: errors.New("permission denied")}
	p := NewPoller(sc, dirty.New(), WithInterval(time.Millisecond))

	_, done := runPoller(t, p)
	err := <-done
	assert.EqualError(t, err, "permission denied")
	assert.Equal(t, int32(0), sc.scans.Load())
}

func TestPollerSetsFlagOnChange(t *testing.T) {
	sc := &scriptedScanner{results: []scanResult{{changed: false}, {changed: true}}}
	flag := dirty.New()
	p := NewPoller(sc, flag, WithInterval(5*time.Millisecond))

	cancel, done := runPoller(t, p)

	require.Eventually(t, flag.IsSet, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, sc.baselines)
}

func TestPollerSurvivesScanErrors(t *testing.T) {
	sc := &scriptedScanner{results: []scanResult{
		{err: errors.New("file vanished")},
		{err: errors.New("file vanished")},
		{changed: true},
	}}
	flag := dirty.New()
	p := NewPoller(sc, flag, WithInterval(5*time.Millisecond))

	_, _ = runPoller(t, p)

	require.Eventually(t, flag.IsSet, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sc.remaining())
}

func TestPollerDoesNotClearFlag(t *testing.T) {
	sc := &scriptedScanner{}
	flag := dirty.New()
	flag.Set()
	p := NewPoller(sc, flag, WithInterval(2*time.Millisecond))

	_, _ = runPoller(t, p)

	require.Eventually(t, func() bool { return sc.scans.Load() >= 5 }, time.Second, 2*time.Millisecond)
	assert.True(t, flag.IsSet(), "only serving the artifact clears the flag")
}

func TestPollerWakesEarly(t *testing.T) {
	sc := &scriptedScanner{results: []scanResult{{changed: true}}}
	flag := dirty.New()
	wake := make(chan struct{}, 1)
	p := NewPoller(sc, flag, WithInterval(time.Hour), WithWake(wake))

	_, _ = runPoller(t, p)

	require.Eventually(t, func() bool {
		select {
		case wake <- struct{}{}:
		default:
		}
		return flag.IsSet()
	}, time.Second, 5*time.Millisecond)
}

func TestPollerWithTreeScanner(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(root, "src", "lib.rs")
	require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0755))
	require.NoError(t, os.WriteFile(lib, []byte("pub fn a() {}"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target"), 0755))

	ts, err := scanner.New(root, scanner.DefaultExclude, fingerprint.NewStore(nil))
	require.NoError(t, err)

	flag := dirty.New()
	p := NewPoller(ts, flag, WithInterval(5*time.Millisecond))
	require.NoError(t, p.Baseline(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Loop(ctx) }()

	// Build output does not mark the tree dirty.
	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "demo.wasm"), []byte{0, 'a', 's', 'm'}, 0644))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, flag.IsSet())

	require.NoError(t, os.WriteFile(lib, []byte("pub fn b() {}"), 0644))
	require.Eventually(t, flag.IsSet, time.Second, 5*time.Millisecond)
}
