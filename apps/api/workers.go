package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/trezcool/classcue/core"
)

// worker is a background loop running until its context is done.
type worker struct {
	name string
	run  func(ctx context.Context) error
}

// startWorkers runs every worker in its own goroutine. A failing worker is logged and never stops the others.
// The returned func waits for all of them to return.
func startWorkers(ctx context.Context, logger core.Logger, workers ...worker) (wait func()) {
	var group errgroup.Group
	for _, w := range workers {
		w := w
		group.Go(func() error {
			if err := w.run(ctx); err != nil {
				logger.Error(fmt.Sprintf("%s worker failed: %v", w.name, err), err)
			}
			return nil
		})
	}
	return func() { _ = group.Wait() }
}
