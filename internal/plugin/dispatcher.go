package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/gvf/internal/app"
)

// Binding runs one plugin action whenever a gesture activates.
type Binding struct {
	GestureID int
	Plugin    string
	Action    string
	Params    json.RawMessage
}

// Dispatcher runs the bound plugin actions of every activation event.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	bindings map[int][]Binding

	// Names resolves a gesture id to its display name. Optional.
	Names func(id int) string

	wg sync.WaitGroup
}

// NewDispatcher checks every binding against the discovered plugins.
func NewDispatcher(m *Manager, e *Executor, bindings []Binding) (*Dispatcher, error) {
	d := &Dispatcher{
		manager:  m,
		executor: e,
		bindings: make(map[int][]Binding),
	}
	for _, b := range bindings {
		p, err := m.Get(b.Plugin)
		if err != nil {
			return nil, fmt.Errorf("binding for gesture %d: %w: %s", b.GestureID, err, b.Plugin)
		}
		if !p.Supports(b.Action) {
			return nil, fmt.Errorf("binding for gesture %d: plugin %s has no action %q", b.GestureID, b.Plugin, b.Action)
		}
		d.bindings[b.GestureID] = append(d.bindings[b.GestureID], b)
	}
	return d, nil
}

// Handle runs the bindings of an activation event in the background.
// Other events are ignored.
func (d *Dispatcher) Handle(e app.Event) {
	if e.Type != app.EventActivation || e.Estimate == nil {
		return
	}

	for _, b := range d.bindings[e.GestureID] {
		req := &Request{
			Action:       b.Action,
			ActivationID: e.ID,
			GestureID:    e.GestureID,
			Alignment:    e.Estimate.Alignment,
			Probability:  e.Estimate.Probability,
			Speed:        e.Estimate.Dynamics.Speed,
			Params:       b.Params,
		}
		if d.Names != nil {
			req.Gesture = d.Names(e.GestureID)
		}

		d.wg.Add(1)
		go func(b Binding) {
			defer d.wg.Done()
			d.run(b, req)
		}(b)
	}
}

func (d *Dispatcher) run(b Binding, req *Request) {
	p, err := d.manager.Get(b.Plugin)
	if err != nil {
		log.Printf("plugin: gesture %d: %v: %s", b.GestureID, err, b.Plugin)
		return
	}

	resp, err := d.executor.Execute(context.Background(), p, req)
	if err != nil {
		log.Printf("plugin: %v", err)
		return
	}
	if !resp.Success {
		log.Printf("plugin: %s %s failed: %s", b.Plugin, b.Action, resp.Error)
		return
	}
	log.Printf("plugin: %s %s ran for gesture %d", b.Plugin, b.Action, b.GestureID)
}

// Wait blocks until every running plugin has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
