package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Kind identifies which job a worker performs.
type Kind string

const (
	KindEvaluation Kind = "evaluation"
	KindBenchmark  Kind = "benchmark"
)

// Request is the immutable input of one run.
type Request struct {
	ModelPath string `validate:"required"`
	DataPath  string `validate:"required"`
}

var validate = validator.New()

func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, ", "))
}

// EventType classifies what a worker reports.
type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	// EventFinished is sent exactly once per run, always last.
	EventFinished EventType = "finished"
)

type Event struct {
	Kind Kind
	Type EventType
	Text string
}

// Worker performs one long-running job. Run blocks until the job is done,
// sends its events in order on events and never closes the channel.
// A worker is single-use.
type Worker interface {
	Kind() Kind
	Run(ctx context.Context, events chan<- Event)
}

type emitter struct {
	kind   Kind
	events chan<- Event
}

func (e emitter) progress(text string) {
	e.events <- Event{Kind: e.kind, Type: EventProgress, Text: text}
}

func (e emitter) result(text string) {
	e.events <- Event{Kind: e.kind, Type: EventResult, Text: text}
}

func (e emitter) finished() {
	e.events <- Event{Kind: e.kind, Type: EventFinished}
}

// guard turns a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// State is the lifecycle position of a worker instance.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

var ErrInvalidTransition = errors.New("invalid state transition")

var validTransitions = map[State][]State{
	StateIdle:    {StateRunning},
	StateRunning: {StateFinished},
}

func ValidateTransition(current, next State) error {
	for _, s := range validTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current, next)
}

type lifecycle struct {
	mu    sync.Mutex
	state State
}

func (l *lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == "" {
		return StateIdle
	}
	return l.state
}

func (l *lifecycle) moveTo(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.state
	if current == "" {
		current = StateIdle
	}
	if err := ValidateTransition(current, next); err != nil {
		return err
	}
	l.state = next
	return nil
}
