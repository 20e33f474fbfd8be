package notice

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/pkg/sequence"
)

// EventRaised is published on the bus for every new notice. The event data
// is a Notice.
const EventRaised = "notice.raised"

// DefaultLifetime is how long a notice stays visible.
const DefaultLifetime = 3 * time.Second

type Severity uint8

const (
	Info Severity = iota
	Warning
	Error
)

var severityNames = [...]string{Info: "info", Warning: "warning", Error: "error"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(text []byte) error {
	for i, name := range severityNames {
		if name == string(text) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("notice: unknown severity %q", text)
}

// Notice is an advisory, auto-dismissing message.
type Notice struct {
	ID       string    `json:"id"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Raised   time.Time `json:"raised"`
	Expires  time.Time `json:"expires"`
}

// Board tracks the notices that are currently visible.
type Board struct {
	mu       sync.Mutex
	lifetime time.Duration
	now      func() time.Time
	active   *sequence.PriorityQueue[Notice]
	events   bus.EventBus
	logger   log.Log
}

type Option func(*Board)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// WithBus publishes every notice on events.
func WithBus(events bus.EventBus) Option {
	return func(b *Board) { b.events = events }
}

func NewBoard(lifetime time.Duration, logger log.Log, opts ...Option) *Board {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	b := &Board{
		lifetime: lifetime,
		now:      time.Now,
		logger:   logger.With(log.String("component", "notice")),
		active: sequence.NewPriorityQueue(func(a, b Notice) bool {
			return a.Expires.Before(b.Expires)
		}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Notify raises a new notice.
func (b *Board) Notify(message string, severity Severity) Notice {
	now := b.now()
	n := Notice{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: severity,
		Raised:   now,
		Expires:  now.Add(b.lifetime),
	}

	b.mu.Lock()
	b.prune(now)
	b.active.Enqueue(n)
	b.mu.Unlock()

	level := log.LevelInfo
	switch severity {
	case Warning:
		level = log.LevelWarn
	case Error:
		level = log.LevelError
	}
	b.logger.Log(level, "notice", log.String("message", message), log.String("severity", severity.String()))

	if b.events != nil {
		if err := b.events.Publish(bus.NewEvent(EventRaised, "notice", n)); err != nil {
			b.logger.Warn("notice subscriber failed", log.Error(err))
		}
	}
	return n
}

// Active returns the visible notices, oldest first.
func (b *Board) Active() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.now())
	items := b.active.Items()
	sort.Slice(items, func(i, j int) bool { return items[i].Raised.Before(items[j].Raised) })
	return items
}

// Clear dismisses every notice.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for !b.active.IsEmpty() {
		b.active.Dequeue()
	}
}

func (b *Board) prune(now time.Time) {
	for {
		n, ok := b.active.Peek()
		if !ok || n.Expires.After(now) {
			return
		}
		b.active.Dequeue()
	}
}
