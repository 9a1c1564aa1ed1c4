// Package app provides the runtime around a recognition session: template
// persistence, the activation log, event fan-out and the sample pipeline.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/gvf/internal/filter"
	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/gesture"
	"github.com/ayusman/gvf/internal/random"
	"github.com/ayusman/gvf/internal/session"
	"github.com/ayusman/gvf/internal/store"
)

// Config holds configuration options for the application.
type Config struct {
	// Store persists templates and activations. It may be nil.
	Store  *store.Store
	Params filter.Params
	// Seed for the filter random source; zero uses the current time.
	Seed uint64
}

// App serializes every call into the session and publishes what happens.
type App struct {
	config  Config
	session *session.Session

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}

	events *broadcaster
}

// New creates a new App with an idle session.
func New(config Config) *App {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &App{
		config:  config,
		session: session.New(config.Params, random.New(seed)),
		events:  newBroadcaster(),
	}
}

// LoadGestures loads every persisted template into the session.
func (a *App) LoadGestures() error {
	if a.config.Store == nil {
		return nil
	}

	records, err := a.config.Store.Gestures().Records()
	if err != nil {
		return fmt.Errorf("load gestures: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	loaded := 0
	for _, r := range records {
		if err := a.session.AddTemplate(r); err != nil {
			log.Printf("app: skipping stored gesture %d: %v", r.ID, err)
			continue
		}
		loaded++
	}

	log.Printf("app: loaded %d gestures from database", loaded)
	return nil
}

// State returns the session state.
func (a *App) State() session.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.State()
}

// Params returns the filter parameters in use.
func (a *App) Params() filter.Params {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Engine().Params()
}

// Tune runs fn against the filter engine with the session locked.
func (a *App) Tune(fn func(e *filter.Engine)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.session.Engine())
}

// StartRecording begins recording gesture id.
func (a *App) StartRecording(id int, name string) error {
	a.mu.Lock()
	err := a.session.StartRecordingNamed(id, name)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.publishState(session.Recording)
	return nil
}

// StopRecording commits the recording and persists it.
func (a *App) StopRecording() (gesture.Record, error) {
	a.mu.Lock()
	rec, err := a.session.StopRecording()
	a.mu.Unlock()

	if errors.Is(err, session.ErrInvalidState) {
		return rec, err
	}
	a.publishState(session.Idle)
	if err != nil {
		return rec, err
	}

	if err := a.persist(rec); err != nil {
		return rec, fmt.Errorf("persist gesture %d: %w", rec.ID, err)
	}
	return rec, nil
}

func (a *App) persist(rec gesture.Record) error {
	if a.config.Store == nil {
		return nil
	}

	repo := a.config.Store.Gestures()
	if _, err := repo.Create(rec); err != nil {
		return err
	}
	// the recording widened the shared range of every template
	return repo.UpdateRanges(rec.Min, rec.Max)
}

// StartListening starts recognition over ids, or every gesture.
func (a *App) StartListening(ids ...int) error {
	a.mu.Lock()
	err := a.session.StartListening(ids...)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.publishState(session.Listening)
	return nil
}

// StopListening stops recognition.
func (a *App) StopListening() error {
	a.mu.Lock()
	err := a.session.StopListening()
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.publishState(session.Idle)
	return nil
}

// AddSample feeds one point to the session. While listening it publishes
// the estimates of the tick and records any activation.
func (a *App) AddSample(p geometry.Point3D) (*session.Activation, error) {
	a.mu.Lock()
	act, err := a.session.AddSample(p)
	listening := a.session.State() == session.Listening
	var estimates map[int]gesture.Estimate
	if err == nil && listening {
		estimates = a.session.Estimates()
	}
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if estimates != nil {
		a.events.publish(newEvent(EventEstimates, func(e *Event) {
			e.Estimates = estimates
		}))
	}
	if act != nil {
		a.recordActivation(*act)
	}
	return act, nil
}

func (a *App) recordActivation(act session.Activation) {
	ev := newEvent(EventActivation, func(e *Event) {
		e.GestureID = act.GestureID
		est := act.Estimate
		e.Estimate = &est
	})

	if a.config.Store != nil {
		err := a.config.Store.Activations().Create(&store.Activation{
			ID:          ev.ID,
			GestureID:   act.GestureID,
			Alignment:   act.Estimate.Alignment,
			Probability: act.Estimate.Probability,
			Speed:       act.Estimate.Dynamics.Speed,
			CreatedAt:   ev.Time,
		})
		if err != nil {
			log.Printf("app: failed to record activation of gesture %d: %v", act.GestureID, err)
		}
	}

	a.events.publish(ev)
}

// Clear removes every gesture from the session and the database.
func (a *App) Clear() error {
	a.mu.Lock()
	a.session.Clear()
	state := a.session.State()
	a.mu.Unlock()

	a.publishState(state)
	if a.config.Store != nil {
		if err := a.config.Store.Gestures().DeleteAll(); err != nil {
			return fmt.Errorf("clear gestures: %w", err)
		}
	}
	return nil
}

// RemoveGesture deletes one gesture from the session and the database.
func (a *App) RemoveGesture(id int) error {
	a.mu.Lock()
	err := a.session.RemoveTemplate(id)
	remaining := a.session.Templates()
	a.mu.Unlock()
	if err != nil {
		return err
	}

	if a.config.Store == nil {
		return nil
	}
	repo := a.config.Store.Gestures()
	if err := repo.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete gesture %d: %w", id, err)
	}
	if len(remaining) > 0 {
		// the shared range may have shrunk
		if err := repo.UpdateRanges(remaining[0].Min, remaining[0].Max); err != nil {
			return fmt.Errorf("update ranges: %w", err)
		}
	}
	return nil
}

// Gestures returns every template in the session.
func (a *App) Gestures() []gesture.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Templates()
}

// Gesture returns one template.
func (a *App) Gesture(id int) (gesture.Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Template(id)
}

// Estimates returns the estimates of the last tick.
func (a *App) Estimates() map[int]gesture.Estimate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Estimates()
}

// MostProbable returns the most probable gesture of the last tick.
func (a *App) MostProbable() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.MostProbable()
}

// Activations returns the most recent recorded activations.
func (a *App) Activations(limit int) ([]*store.Activation, error) {
	if a.config.Store == nil {
		return nil, nil
	}
	return a.config.Store.Activations().List(limit)
}

// Subscribe registers fn for every published event. The returned function
// removes the subscription.
func (a *App) Subscribe(fn func(Event)) (cancel func()) {
	return a.events.subscribe(fn)
}

func (a *App) publishState(s session.State) {
	a.events.publish(newEvent(EventState, func(e *Event) {
		e.State = s.String()
	}))
}
