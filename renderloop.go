package crx_arm

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// RenderLoop advances an Interpolator at a fixed frame rate and hands every frame to
// onFrame. The loop runs on its own goroutine between Start and Stop.
type RenderLoop struct {
	clk      clock.Clock
	interval time.Duration
	interp   *Interpolator
	onFrame  func(RenderFrame)
	logger   logging.Logger

	mu      sync.Mutex
	workers *utils.StoppableWorkers
	frames  uint64
}

// NewRenderLoop creates a stopped loop. A nil clk uses the wall clock.
func NewRenderLoop(clk clock.Clock, fps int, interp *Interpolator, onFrame func(RenderFrame), logger logging.Logger) *RenderLoop {
	if clk == nil {
		clk = clock.New()
	}
	if fps <= 0 {
		fps = defaultFPS
	}
	return &RenderLoop{
		clk:      clk,
		interval: time.Second / time.Duration(fps),
		interp:   interp,
		onFrame:  onFrame,
		logger:   logger,
	}
}

// Start begins ticking. Calling Start on a running loop does nothing.
func (l *RenderLoop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers != nil {
		return
	}

	ticker := l.clk.Ticker(l.interval)
	last := l.clk.Now()
	l.logger.Debugf("Render loop started at %v per frame", l.interval)
	l.workers = utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Step(now.Sub(last).Seconds())
				last = now
			}
		}
	})
}

// Step runs a single frame of dt seconds.
func (l *RenderLoop) Step(dt float64) RenderFrame {
	l.interp.Tick(dt)
	frame := l.interp.Frame()

	l.mu.Lock()
	l.frames++
	l.mu.Unlock()

	if l.onFrame != nil {
		l.onFrame(frame)
	}
	return frame
}

// Frames returns how many frames have been rendered.
func (l *RenderLoop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Stop halts the loop and waits for the current frame to finish.
func (l *RenderLoop) Stop() {
	l.mu.Lock()
	workers := l.workers
	l.workers = nil
	l.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
}
