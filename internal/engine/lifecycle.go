package engine

import "golang.org/x/sync/errgroup"

// Start launches the background streaming loader goroutine, supervised by an
// errgroup so Close can join it deterministically (spec §5 "a single
// static loader thread"; grounded on internal/streamloader.Loader's
// Run/Stop pair, generalized here to fit the engine's own lifecycle rather
// than requiring every caller to manage the goroutine by hand).
func (e *Engine) Start() {
	e.group.Go(func() error {
		e.Loader.Run()
		return nil
	})
}

// Close stops the loader and blocks until its goroutine has exited.
func (e *Engine) Close() error {
	e.Loader.Stop()
	return e.group.Wait()
}
