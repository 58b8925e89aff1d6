package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ajramos/resched/internal/hostdom"
	"github.com/ajramos/resched/internal/when"
)

// ScheduleServiceImpl implements ScheduleService as a bounded retry task:
// open the picker, poll for its input fields with linearly increasing delay,
// write date and time through synthetic events, confirm. Gmail renders the
// dialog asynchronously, so the writes are staggered with short fixed pauses.
type ScheduleServiceImpl struct {
	page    hostdom.Page
	locator hostdom.Locator
	logger  *log.Logger

	baseDelay   time.Duration
	maxAttempts int
	stagger     time.Duration

	mu        sync.Mutex
	completed int
}

// NewScheduleService creates a new scheduling driver
func NewScheduleService(page hostdom.Page, locator hostdom.Locator, baseDelay time.Duration, maxAttempts int, stagger time.Duration, logger *log.Logger) *ScheduleServiceImpl {
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	if maxAttempts <= 0 {
		maxAttempts = 15
	}
	return &ScheduleServiceImpl{
		page:        page,
		locator:     locator,
		logger:      logger,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		stagger:     stagger,
	}
}

func (s *ScheduleServiceImpl) ScheduleAt(ctx context.Context, target time.Time) error {
	// OPENING_PICKER: activate the host's manual date/time entry while the
	// menu is still up. If the menu is already gone the dialog may be open
	// regardless, so absence here is not a failure.
	if menu, ok, err := s.locator.FindMenu(ctx); err == nil && ok {
		if tpl, ok, err := s.locator.FindMenuItemTemplate(ctx, menu); err == nil && ok {
			if err := s.page.Click(ctx, tpl); err != nil {
				return fmt.Errorf("open picker: %w", err)
			}
		}
	}

	// WAITING_FOR_FIELDS
	dateInput, timeInput, err := s.waitForFields(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("schedule: gave up waiting for picker fields after %d attempts", s.maxAttempts)
		}
		return err
	}

	// WRITING_DATE
	if err := s.page.WriteInput(ctx, dateInput, when.FormatDateField(target)); err != nil {
		return fmt.Errorf("write date: %w", err)
	}
	if err := sleep(ctx, s.stagger); err != nil {
		return err
	}

	// WRITING_TIME
	if err := s.page.WriteInput(ctx, timeInput, when.FormatTimeField(target)); err != nil {
		return fmt.Errorf("write time: %w", err)
	}
	if err := sleep(ctx, s.stagger); err != nil {
		return err
	}

	// CONFIRMING: best-effort text match over rendered controls
	confirm, ok, err := s.locator.FindConfirmControl(ctx)
	if err != nil {
		return fmt.Errorf("find confirm control: %w", err)
	}
	if !ok {
		if s.logger != nil {
			s.logger.Printf("schedule: confirm control not found; fields are filled, confirm by hand")
		}
		return ErrConfirmNotFound
	}
	if err := s.page.Click(ctx, confirm); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	s.mu.Lock()
	s.completed++
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Printf("schedule: confirmed %s", when.FormatMenuLabel(target))
	}
	return nil
}

// Completed returns how many schedules were driven to confirmation
func (s *ScheduleServiceImpl) Completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// waitForFields polls for both picker inputs. Attempt n sleeps baseDelay × n
// before re-checking; the loop stops at the attempt cap or when ctx is done.
// No rollback on exhaustion: the picker stays in whatever state it reached.
func (s *ScheduleServiceImpl) waitForFields(ctx context.Context) (hostdom.NodeID, hostdom.NodeID, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		dateInput, dateOK, err := s.locator.FindDateInput(ctx)
		if err != nil {
			return hostdom.None, hostdom.None, fmt.Errorf("find date input: %w", err)
		}
		timeInput, timeOK, err := s.locator.FindTimeInput(ctx)
		if err != nil {
			return hostdom.None, hostdom.None, fmt.Errorf("find time input: %w", err)
		}
		if dateOK && timeOK {
			return dateInput, timeInput, nil
		}
		if err := sleep(ctx, time.Duration(attempt)*s.baseDelay); err != nil {
			return hostdom.None, hostdom.None, err
		}
	}
	return hostdom.None, hostdom.None, ErrFieldsNotFound
}

// sleep waits for d or until ctx is done, whichever comes first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
