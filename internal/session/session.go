// Package session drives gesture recording and recognition.
//
// A Session is a small state machine: Idle, Recording and Listening. While
// recording, incoming points extend a new template; while listening, every
// point runs one particle filter tick against the stored templates and may
// produce an Activation. A Session is not safe for concurrent use.
package session

import (
	"errors"
	"fmt"
	"log"

	"github.com/ayusman/gvf/internal/filter"
	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/gesture"
	"github.com/ayusman/gvf/internal/random"
)

// State is the current mode of a Session.
type State int

const (
	Idle State = iota
	Recording
	Listening
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Listening:
		return "listening"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Errors returned for rejected commands. The session state is unchanged
// unless documented otherwise.
var (
	ErrInvalidState  = errors.New("invalid state transition")
	ErrDuplicateID   = errors.New("gesture id already in use")
	ErrUnknownID     = errors.New("unknown gesture id")
	ErrEmptyStore    = errors.New("no gestures recorded")
	ErrEmptyTemplate = errors.New("gesture has no samples")
)

// Activation reports a gesture recognized to completion.
type Activation struct {
	GestureID int              `json:"gesture_id"`
	Estimate  gesture.Estimate `json:"estimate"`
}

// Session owns the template store and the filter engine.
type Session struct {
	// OnActivation, if set, is called for every activation before AddSample
	// returns.
	OnActivation func(Activation)

	state   State
	store   *gesture.TemplateStore
	engine  *filter.Engine
	current *gesture.Template

	mostProbable    int
	hasMostProbable bool
}

// New creates an idle Session with an empty template store.
func New(params filter.Params, rng random.Sampler) *Session {
	store := gesture.NewTemplateStore()
	return &Session{
		state:  Idle,
		store:  store,
		engine: filter.New(store, rng, params),
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Engine exposes the filter engine for parameter tuning.
func (s *Session) Engine() *filter.Engine {
	return s.engine
}

// StartRecording begins recording a new template under id.
func (s *Session) StartRecording(id int) error {
	return s.StartRecordingNamed(id, "")
}

// StartRecordingNamed begins recording a new template under id with a
// display name.
func (s *Session) StartRecordingNamed(id int, name string) error {
	if s.state != Idle {
		return s.reject("start recording", ErrInvalidState)
	}
	if !s.store.IsValidID(id) {
		return s.reject("start recording", fmt.Errorf("%w: %d", ErrDuplicateID, id))
	}

	s.current = gesture.NewTemplate(id)
	s.current.Name = name
	s.state = Recording
	log.Printf("session: recording gesture %d", id)
	return nil
}

// StopRecording commits the recorded template to the store, merges the
// observation ranges of every template and retrains the filter. The
// session returns to Idle even when the template is rejected.
func (s *Session) StopRecording() (gesture.Record, error) {
	if s.state != Recording {
		return gesture.Record{}, s.reject("stop recording", ErrInvalidState)
	}

	t := s.current
	var err error
	switch {
	case t.Len() == 0:
		err = s.reject("stop recording", fmt.Errorf("%w: %d", ErrEmptyTemplate, t.ID))
	case !s.store.Add(t):
		err = s.reject("stop recording", fmt.Errorf("%w: %d", ErrDuplicateID, t.ID))
	}
	s.current = nil
	s.state = Idle
	if err != nil {
		return gesture.Record{}, err
	}

	s.store.UpdateRange()
	s.engine.Train()
	log.Printf("session: recorded gesture %d with %d samples", t.ID, t.Len())
	return t.Record(), nil
}

// StartListening starts recognition over ids, or over every stored
// template when ids is empty. Unknown ids are ignored as long as one of
// them is known.
func (s *Session) StartListening(ids ...int) error {
	if s.state != Idle {
		return s.reject("start listening", ErrInvalidState)
	}
	if s.store.Len() == 0 {
		return s.reject("start listening", ErrEmptyStore)
	}

	if len(ids) > 0 {
		known := 0
		for _, id := range ids {
			if _, ok := s.store.Get(id); ok {
				known++
			} else {
				log.Printf("session: ignoring unknown gesture %d", id)
			}
		}
		if known == 0 {
			return s.reject("start listening", fmt.Errorf("%w: %v", ErrUnknownID, ids))
		}
	}

	active := s.store.Select(ids)
	s.current = gesture.NewTemplate(0)
	s.mostProbable, s.hasMostProbable = 0, false
	s.engine.Train()
	s.state = Listening
	log.Printf("session: listening on gestures %v", active)
	return nil
}

// StopListening ends recognition and drops the live buffer.
func (s *Session) StopListening() error {
	if s.state != Listening {
		return s.reject("stop listening", ErrInvalidState)
	}
	s.stopListening()
	return nil
}

func (s *Session) stopListening() {
	s.current = nil
	s.store.Select(nil)
	s.state = Idle
	log.Println("session: stopped listening")
}

// AddSample feeds one observed point. While recording it extends the
// template; while listening it runs one filter tick and returns the
// activation it produced, if any.
func (s *Session) AddSample(p geometry.Point3D) (*Activation, error) {
	switch s.state {
	case Recording:
		s.current.Add(p)
		return nil, nil
	case Listening:
		return s.follow(p), nil
	default:
		return nil, fmt.Errorf("add sample: %w", ErrInvalidState)
	}
}

func (s *Session) follow(p geometry.Point3D) *Activation {
	s.current.Add(p)
	obs, _ := s.current.Last()

	out := s.engine.Step(obs)
	s.mostProbable, s.hasMostProbable = out.MostProbable, out.HasMostProbable
	if !out.Activated {
		return nil
	}

	t, _ := s.store.Get(out.MostProbable)
	act := &Activation{GestureID: out.MostProbable, Estimate: t.Estimate}

	// the gesture is complete: segment the stream and start over
	s.current.Clear()
	s.engine.InitPrior()

	log.Printf("session: gesture %d activated (alignment %.3f, probability %.3f)",
		act.GestureID, act.Estimate.Alignment, act.Estimate.Probability)
	if s.OnActivation != nil {
		s.OnActivation(*act)
	}
	return act
}

// Clear removes every template. A listening session goes back to Idle; a
// recording in progress continues.
func (s *Session) Clear() {
	if s.state == Listening {
		s.stopListening()
	}
	s.store.Clear()
	s.mostProbable, s.hasMostProbable = 0, false
	log.Println("session: cleared all gestures")
}

// AddTemplate loads a previously recorded template, typically from
// persistent storage.
func (s *Session) AddTemplate(r gesture.Record) error {
	if s.state == Listening {
		return s.reject("add template", ErrInvalidState)
	}
	if len(r.Samples) == 0 {
		return s.reject("add template", fmt.Errorf("%w: %d", ErrEmptyTemplate, r.ID))
	}
	if !s.store.Add(gesture.FromRecord(r)) {
		return s.reject("add template", fmt.Errorf("%w: %d", ErrDuplicateID, r.ID))
	}

	s.store.UpdateRange()
	s.engine.Train()
	return nil
}

// RemoveTemplate deletes one template.
func (s *Session) RemoveTemplate(id int) error {
	if s.state == Listening {
		return s.reject("remove template", ErrInvalidState)
	}
	if !s.store.Remove(id) {
		return s.reject("remove template", fmt.Errorf("%w: %d", ErrUnknownID, id))
	}

	if s.store.Len() > 0 {
		s.store.UpdateRange()
		s.engine.Train()
	}
	return nil
}

// Template returns the record of one stored template.
func (s *Session) Template(id int) (gesture.Record, bool) {
	t, ok := s.store.Get(id)
	if !ok {
		return gesture.Record{}, false
	}
	return t.Record(), true
}

// Templates returns the records of every stored template, ordered by id.
func (s *Session) Templates() []gesture.Record {
	ids := s.store.AllIDs()
	out := make([]gesture.Record, 0, len(ids))
	for _, id := range ids {
		t, _ := s.store.Get(id)
		out = append(out, t.Record())
	}
	return out
}

// Estimates returns the estimates of the last tick, keyed by gesture id.
func (s *Session) Estimates() map[int]gesture.Estimate {
	return s.engine.Estimates()
}

// MostProbable returns the gesture with the highest probability at the
// last tick.
func (s *Session) MostProbable() (int, bool) {
	return s.mostProbable, s.hasMostProbable
}

// Buffered returns the number of points in the recording or live buffer.
func (s *Session) Buffered() int {
	if s.current == nil {
		return 0
	}
	return s.current.Len()
}

func (s *Session) reject(op string, err error) error {
	log.Printf("session: %s rejected while %s: %v", op, s.state, err)
	return fmt.Errorf("%s: %w", op, err)
}
