package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ajramos/resched/internal/hostdom"
)

// WatchServiceImpl implements WatchService: a single event-loop goroutine
// consuming the page's notification stream. Menu detection is mutation-driven
// only: one eager check at startup, then re-evaluation whenever a debounced
// mutation burst settles. Navigation resets everything.
type WatchServiceImpl struct {
	page     hostdom.Page
	locator  hostdom.Locator
	injector InjectionService
	capture  CaptureService
	logger   *log.Logger
	debounce time.Duration

	mu       sync.Mutex
	presence MenuPresence
	menu     hostdom.NodeID
}

// NewWatchService creates a new menu watch service
func NewWatchService(page hostdom.Page, locator hostdom.Locator, injector InjectionService, capture CaptureService, debounce time.Duration, logger *log.Logger) *WatchServiceImpl {
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	return &WatchServiceImpl{
		page:     page,
		locator:  locator,
		injector: injector,
		capture:  capture,
		logger:   logger,
		debounce: debounce,
	}
}

func (s *WatchServiceImpl) State() MenuPresence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence
}

func (s *WatchServiceImpl) setState(p MenuPresence, menu hostdom.NodeID) {
	s.mu.Lock()
	s.presence = p
	s.menu = menu
	s.mu.Unlock()
}

func (s *WatchServiceImpl) snapshot() (MenuPresence, hostdom.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence, s.menu
}

// Run consumes page events until ctx is done or the stream closes. It owns
// all state transitions; handlers never run concurrently with each other.
func (s *WatchServiceImpl) Run(ctx context.Context) error {
	// Initial eager check: the menu may already be on screen
	s.evaluate(ctx)

	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	events := s.page.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case hostdom.KindMutation:
				// Coalesce the burst: (re)arm the debounce window
				if timer == nil {
					timer = time.NewTimer(s.debounce)
					timerC = timer.C
				} else {
					stopTimer()
					timer = time.NewTimer(s.debounce)
					timerC = timer.C
				}

			case hostdom.KindNavigation:
				stopTimer()
				s.setState(MenuAbsent, hostdom.None)
				s.injector.Reset()
				if s.logger != nil {
					s.logger.Printf("watch: navigation to %s, state reset", ev.Text)
				}

			case hostdom.KindCancelClick:
				if err := s.capture.HandleCancel(ctx, ev.Text); err != nil && s.logger != nil {
					s.logger.Printf("watch: cancel capture: %v", err)
				}

			case hostdom.KindOptionClick:
				if err := s.injector.HandleOptionClick(ctx, ev.Node, ev.Marker); err != nil && s.logger != nil {
					s.logger.Printf("watch: option click: %v", err)
				}

			case hostdom.KindRefreshClick:
				if err := s.injector.HandleRefreshClick(ctx, ev.Node); err != nil && s.logger != nil {
					s.logger.Printf("watch: refresh click: %v", err)
				}
			}

		case <-timerC:
			timer = nil
			timerC = nil
			s.evaluate(ctx)
		}
	}
}

// evaluate re-derives menu presence and drives injection. Transitions:
// absent → present(uninjected) on first observation; present(uninjected) →
// present(injected) once both options are confirmed; present(injected) with
// missing options (host re-render wiped children) → back to uninjected and
// re-run.
func (s *WatchServiceImpl) evaluate(ctx context.Context) {
	menu, found, err := s.locator.FindMenu(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("watch: find menu: %v", err)
		}
		return
	}

	presence, known := s.snapshot()

	if !found {
		if presence != MenuAbsent {
			s.setState(MenuAbsent, hostdom.None)
			if known != hostdom.None {
				s.injector.Forget(known)
			}
		}
		return
	}

	if menu != known {
		// Fresh instance: never reuse state across instances
		if known != hostdom.None {
			s.injector.Forget(known)
		}
		presence = MenuPresentUninjected
		s.setState(presence, menu)
	}

	if presence == MenuPresentInjected && !s.injector.Verify(ctx, menu) {
		// Host re-render wiped our children out of the same menu node
		s.injector.Forget(menu)
		presence = MenuPresentUninjected
		s.setState(presence, menu)
		if s.logger != nil {
			s.logger.Printf("watch: options wiped from menu %d, re-injecting", menu)
		}
	}

	if presence == MenuPresentUninjected {
		if err := s.injector.InjectMenu(ctx, menu); err != nil && !IsRecoverable(err) {
			if s.logger != nil {
				s.logger.Printf("watch: inject: %v", err)
			}
			return
		}
		if s.injector.Injected(menu) {
			s.setState(MenuPresentInjected, menu)
		}
	}
}
