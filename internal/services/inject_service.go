package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/ajramos/resched/internal/hostdom"
	"github.com/ajramos/resched/internal/when"
)

// Option labels shown in the injected menu entries
const (
	randomOptionTitle    = "Tomorrow morning (random)"
	cancelledOptionTitle = "Last cancelled time"
)

// menuState is the per-menu-instance injection record. State is scoped to
// exactly one live menu node: when the host tears the menu down and builds a
// new one, the new NodeID gets a fresh zero-valued record and this one is
// forgotten.
type menuState struct {
	randomClaimed  bool
	randomInjected bool
	randomTarget   time.Time
	randomNode     hostdom.NodeID
	refreshNode    hostdom.NodeID

	cancelClaimed  bool
	cancelInjected bool
	// cancelResolved marks "nothing to offer" outcomes (no record, stale,
	// unparseable) so the instance is not re-probed on every mutation burst
	cancelResolved bool
	cancelTarget   time.Time
	cancelNode     hostdom.NodeID
}

// InjectionServiceImpl implements InjectionService. Claims are the only
// concurrency discipline: a flag taken under the mutex before any suspension
// point (the store read, every page round-trip) and re-checked after it. A
// losing path releases its claim and aborts with no side effects.
type InjectionServiceImpl struct {
	page      hostdom.Page
	locator   hostdom.Locator
	repo      CancelTimeRepository
	scheduler ScheduleService
	logger    *log.Logger

	now func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand // guarded by mu
	current hostdom.NodeID
	states  map[hostdom.NodeID]*menuState
	wg      sync.WaitGroup
}

// NewInjectionService creates a new option injection service
func NewInjectionService(page hostdom.Page, locator hostdom.Locator, repo CancelTimeRepository, scheduler ScheduleService, logger *log.Logger) *InjectionServiceImpl {
	return &InjectionServiceImpl{
		page:      page,
		locator:   locator,
		repo:      repo,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		states:    make(map[hostdom.NodeID]*menuState),
	}
}

// InjectMenu runs one pass over the given menu instance. The randomized
// option always goes in first so the cancelled-time option can anchor itself
// directly after it.
func (s *InjectionServiceImpl) InjectMenu(ctx context.Context, menu hostdom.NodeID) error {
	if menu == hostdom.None {
		return nil
	}

	s.mu.Lock()
	s.current = menu
	st := s.states[menu]
	if st == nil {
		st = &menuState{}
		s.states[menu] = st
	}
	s.mu.Unlock()

	if !s.page.Alive(ctx, menu) {
		s.Forget(menu)
		return ErrMenuGone
	}

	if err := s.injectRandom(ctx, menu, st); err != nil && !IsRecoverable(err) {
		return err
	}
	if err := s.injectCancelled(ctx, menu, st); err != nil && !IsRecoverable(err) {
		return err
	}
	return nil
}

func (s *InjectionServiceImpl) injectRandom(ctx context.Context, menu hostdom.NodeID, st *menuState) error {
	s.mu.Lock()
	if st.randomInjected || st.randomClaimed {
		s.mu.Unlock()
		return ErrAlreadyInjected
	}
	st.randomClaimed = true
	target := when.RandomMorning(s.now(), s.rng)
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		st.randomClaimed = false
		s.mu.Unlock()
	}

	// A prior pass may have inserted the option even though this instance's
	// flags never saw it (claim released on a transport error, say)
	if id, ok, err := s.locator.FindOption(ctx, menu, hostdom.MarkerRandomMorning); err != nil {
		release()
		return fmt.Errorf("probe random option: %w", err)
	} else if ok {
		s.mu.Lock()
		st.randomInjected = true
		st.randomClaimed = false
		st.randomNode = id
		if st.randomTarget.IsZero() {
			st.randomTarget = target
		}
		s.mu.Unlock()
		return nil
	}

	tpl, ok, err := s.locator.FindMenuItemTemplate(ctx, menu)
	if err != nil {
		release()
		return fmt.Errorf("find template item: %w", err)
	}
	if !ok {
		release()
		return ErrTemplateNotFound
	}

	nodes, err := s.page.InsertOption(ctx, hostdom.OptionInsert{
		Menu:     menu,
		Template: tpl,
		After:    hostdom.None, // first child: anchors the cancelled option
		Marker:   hostdom.MarkerRandomMorning,
		Title:    randomOptionTitle,
		Display:  when.FormatMenuLabel(target),
		Refresh:  true,
	})
	if err != nil {
		release()
		return fmt.Errorf("insert random option: %w", err)
	}

	s.mu.Lock()
	st.randomInjected = true
	st.randomClaimed = false
	st.randomTarget = target
	st.randomNode = nodes.Option
	st.refreshNode = nodes.Refresh
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Printf("inject: random option %s on menu %d", when.FormatMenuLabel(target), menu)
	}
	return nil
}

func (s *InjectionServiceImpl) injectCancelled(ctx context.Context, menu hostdom.NodeID, st *menuState) error {
	s.mu.Lock()
	if st.cancelInjected || st.cancelResolved || st.cancelClaimed {
		s.mu.Unlock()
		return ErrAlreadyInjected
	}
	// Claim before the asynchronous store read: a second concurrent
	// invocation for the same instance bails out above
	st.cancelClaimed = true
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		st.cancelClaimed = false
		s.mu.Unlock()
	}
	resolve := func() {
		s.mu.Lock()
		st.cancelClaimed = false
		st.cancelResolved = true
		s.mu.Unlock()
	}

	rec, found, err := s.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			// No store, nothing to offer; stop probing this instance
			resolve()
			return nil
		}
		release()
		return fmt.Errorf("load cancelled time: %w", err)
	}

	// Resumed from the read: the claimed instance must still be the live
	// one, untouched by any other path
	s.mu.Lock()
	if s.current != menu || st.cancelInjected {
		st.cancelClaimed = false
		s.mu.Unlock()
		return ErrClaimLost
	}
	s.mu.Unlock()
	if !s.page.Alive(ctx, menu) {
		release()
		return ErrMenuGone
	}

	if !found {
		resolve()
		return nil
	}

	target, err := s.parseSaved(rec)
	if err != nil {
		if cerr := s.repo.Clear(ctx); cerr != nil && s.logger != nil {
			s.logger.Printf("inject: clear unparseable record: %v", cerr)
		}
		resolve()
		return ErrUnparseableTime
	}
	if !target.After(s.now()) {
		if cerr := s.repo.Clear(ctx); cerr != nil && s.logger != nil {
			s.logger.Printf("inject: clear stale record: %v", cerr)
		}
		resolve()
		return ErrStaleTimestamp
	}

	if id, ok, err := s.locator.FindOption(ctx, menu, hostdom.MarkerLastCancelled); err != nil {
		release()
		return fmt.Errorf("probe cancelled option: %w", err)
	} else if ok {
		s.mu.Lock()
		st.cancelInjected = true
		st.cancelClaimed = false
		st.cancelNode = id
		st.cancelTarget = target
		s.mu.Unlock()
		return nil
	}

	tpl, ok, err := s.locator.FindMenuItemTemplate(ctx, menu)
	if err != nil {
		release()
		return fmt.Errorf("find template item: %w", err)
	}
	if !ok {
		release()
		return ErrTemplateNotFound
	}

	// Directly after the randomized option when it made it in, else first
	// child; deterministic either way
	s.mu.Lock()
	after := hostdom.None
	if st.randomInjected {
		after = st.randomNode
	}
	s.mu.Unlock()

	nodes, err := s.page.InsertOption(ctx, hostdom.OptionInsert{
		Menu:     menu,
		Template: tpl,
		After:    after,
		Marker:   hostdom.MarkerLastCancelled,
		Title:    cancelledOptionTitle,
		Display:  when.FormatMenuLabel(target),
	})
	if err != nil {
		release()
		return fmt.Errorf("insert cancelled option: %w", err)
	}

	s.mu.Lock()
	st.cancelInjected = true
	st.cancelClaimed = false
	st.cancelTarget = target
	st.cancelNode = nodes.Option
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Printf("inject: cancelled-time option %s on menu %d", when.FormatMenuLabel(target), menu)
	}
	return nil
}

// parseSaved converts a persisted record to an instant, preferring the
// canonical form and falling back to the locale-fragile display heuristic
func (s *InjectionServiceImpl) parseSaved(rec SavedCancelledTime) (time.Time, error) {
	if rec.ISOTime != "" {
		if t, err := when.ParseCanonical(rec.ISOTime); err == nil {
			return t, nil
		}
	}
	if rec.RawText != "" {
		if t, err := when.ParseDisplay(rec.RawText, s.now()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnparseableTime
}

func (s *InjectionServiceImpl) Injected(menu hostdom.NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[menu]
	if st == nil {
		return false
	}
	return st.randomInjected && (st.cancelInjected || st.cancelResolved)
}

func (s *InjectionServiceImpl) Verify(ctx context.Context, menu hostdom.NodeID) bool {
	s.mu.Lock()
	st := s.states[menu]
	if st == nil {
		s.mu.Unlock()
		return false
	}
	checkRandom := st.randomInjected
	checkCancel := st.cancelInjected
	s.mu.Unlock()

	if checkRandom {
		if _, ok, err := s.locator.FindOption(ctx, menu, hostdom.MarkerRandomMorning); err != nil || !ok {
			return false
		}
	}
	if checkCancel {
		if _, ok, err := s.locator.FindOption(ctx, menu, hostdom.MarkerLastCancelled); err != nil || !ok {
			return false
		}
	}
	return true
}

func (s *InjectionServiceImpl) Forget(menu hostdom.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, menu)
	if s.current == menu {
		s.current = hostdom.None
	}
}

func (s *InjectionServiceImpl) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[hostdom.NodeID]*menuState)
	s.current = hostdom.None
}

// HandleOptionClick schedules at the clicked option's current target. The
// driver run happens off the event loop; Wait blocks until such runs finish.
func (s *InjectionServiceImpl) HandleOptionClick(ctx context.Context, node hostdom.NodeID, marker string) error {
	var target time.Time

	s.mu.Lock()
	for _, st := range s.states {
		switch {
		case marker == hostdom.MarkerRandomMorning && st.randomNode == node:
			target = st.randomTarget
		case marker == hostdom.MarkerLastCancelled && st.cancelNode == node:
			target = st.cancelTarget
		}
	}
	s.mu.Unlock()

	if target.IsZero() {
		if s.logger != nil {
			s.logger.Printf("inject: click on unknown option node %d (%s)", node, marker)
		}
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.scheduler.ScheduleAt(ctx, target); err != nil {
			if s.logger != nil {
				s.logger.Printf("schedule: %v", err)
			}
		}
	}()
	return nil
}

// HandleRefreshClick recomputes the randomized target and rewrites only the
// option's displayed text. Injection flags and sibling options are untouched,
// and the menu stays open.
func (s *InjectionServiceImpl) HandleRefreshClick(ctx context.Context, node hostdom.NodeID) error {
	var optNode hostdom.NodeID
	var target time.Time

	s.mu.Lock()
	for _, st := range s.states {
		if st.refreshNode == node && st.randomInjected {
			target = when.RandomMorning(s.now(), s.rng)
			st.randomTarget = target
			optNode = st.randomNode
		}
	}
	s.mu.Unlock()

	if optNode == hostdom.None {
		return nil
	}
	if err := s.page.SetOptionDisplay(ctx, optNode, when.FormatMenuLabel(target)); err != nil {
		return fmt.Errorf("refresh random option: %w", err)
	}
	return nil
}

func (s *InjectionServiceImpl) Wait() {
	s.wg.Wait()
}
