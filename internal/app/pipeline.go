package app

import (
	"errors"
	"log"

	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/session"
)

// Start runs the sample pipeline: every point received on samples is fed
// to the session until Stop is called or samples is closed.
func (a *App) Start(samples <-chan geometry.Point3D) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(samples, a.stopCh, a.doneCh)

	log.Println("app: sample pipeline started")
	return nil
}

// Stop halts the sample pipeline and waits for it to exit.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	log.Println("app: sample pipeline stopped")
}

// runPipeline feeds samples to the session. Samples arriving while idle
// are dropped silently; any other failure is logged and the loop goes on.
func (a *App) runPipeline(samples <-chan geometry.Point3D, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case p, ok := <-samples:
			if !ok {
				log.Println("app: sample source closed")
				return
			}
			if _, err := a.AddSample(p); err != nil && !errors.Is(err, session.ErrInvalidState) {
				log.Printf("app: error processing sample: %v", err)
			}
		}
	}
}
