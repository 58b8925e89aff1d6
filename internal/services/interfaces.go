package services

import (
	"context"
	"time"

	"github.com/ajramos/resched/internal/hostdom"
)

// SavedCancelledTime is the persisted record of the last cancelled scheduled
// send. RawText is the host's original display string, kept as a display and
// parse fallback; ISOTime, when present, is a valid RFC 3339 instant and the
// preferred source of truth.
type SavedCancelledTime struct {
	RawText string
	ISOTime string
}

// CancelTimeRepository persists the SavedCancelledTime record. Load followed
// by Clear is not atomic with respect to a concurrent Save; consumers must
// re-validate after every resume.
type CancelTimeRepository interface {
	Load(ctx context.Context) (SavedCancelledTime, bool, error)
	Save(ctx context.Context, rec SavedCancelledTime) error
	Clear(ctx context.Context) error
}

// CaptureService handles cancellation capture
type CaptureService interface {
	// HandleCancel persists the scheduled-time text captured at the moment
	// of a user cancel. An empty capture is skipped silently.
	HandleCancel(ctx context.Context, displayed string) error
}

// InjectionService injects the synthetic options into picker menu instances
type InjectionService interface {
	// InjectMenu runs one injection pass over the given live menu instance.
	// Idempotent per instance: repeated and concurrent invocations insert
	// each option at most once.
	InjectMenu(ctx context.Context, menu hostdom.NodeID) error

	// Injected reports whether the instance needs no further passes
	Injected(menu hostdom.NodeID) bool

	// Verify re-checks that every option this instance injected is still in
	// the document (the host re-render may have wiped children)
	Verify(ctx context.Context, menu hostdom.NodeID) bool

	// Forget drops all state for a dead menu instance
	Forget(menu hostdom.NodeID)

	// Reset drops all per-instance state (navigation happened)
	Reset()

	// HandleOptionClick reacts to a user click on an injected option
	HandleOptionClick(ctx context.Context, node hostdom.NodeID, marker string) error

	// HandleRefreshClick recomputes the randomized option's target and
	// label in place
	HandleRefreshClick(ctx context.Context, node hostdom.NodeID) error

	// Wait blocks until in-flight scheduling runs spawned by option clicks
	// have finished
	Wait()
}

// ScheduleService drives the host's manual date/time picker
type ScheduleService interface {
	// ScheduleAt opens the picker, fills the date and time fields for the
	// target instant, and activates the confirm control. All failures are
	// recoverable: the user can still schedule by hand.
	ScheduleAt(ctx context.Context, target time.Time) error
}

// MenuPresence is the watcher's view of the picker menu
type MenuPresence int

const (
	MenuAbsent MenuPresence = iota
	MenuPresentUninjected
	MenuPresentInjected
)

func (p MenuPresence) String() string {
	switch p {
	case MenuAbsent:
		return "absent"
	case MenuPresentUninjected:
		return "present (uninjected)"
	case MenuPresentInjected:
		return "present (injected)"
	}
	return "unknown"
}

// WatchService observes the host page and drives injection
type WatchService interface {
	// Run consumes the page event stream until ctx is done or the stream
	// closes. Mutation bursts are debounced; menu detection is purely
	// mutation-driven plus one initial eager check.
	Run(ctx context.Context) error

	// State returns the current menu presence
	State() MenuPresence
}
