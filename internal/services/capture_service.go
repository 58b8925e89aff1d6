package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ajramos/resched/internal/when"
)

// CaptureServiceImpl implements CaptureService. Passive-listener form: the
// page reports the cancel click together with the display text it captured
// synchronously, and we only persist. The host's own cancel handling is
// never intercepted or replayed.
type CaptureServiceImpl struct {
	repo   CancelTimeRepository
	logger *log.Logger
	now    func() time.Time
}

// NewCaptureService creates a new cancellation capture service
func NewCaptureService(repo CancelTimeRepository, logger *log.Logger) *CaptureServiceImpl {
	return &CaptureServiceImpl{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *CaptureServiceImpl) HandleCancel(ctx context.Context, displayed string) error {
	displayed = strings.TrimSpace(displayed)
	if displayed == "" {
		// No scheduled-time element was present at capture time
		return nil
	}
	if s.repo == nil {
		return ErrStoreUnavailable
	}

	rec := SavedCancelledTime{RawText: displayed}
	if t, err := when.ParseDisplay(displayed, s.now()); err == nil {
		rec.ISOTime = when.FormatCanonical(t)
	} else if s.logger != nil {
		// Raw text alone is still worth keeping; the injector retries the
		// heuristic parse at read time
		s.logger.Printf("capture: could not parse %q: %v", displayed, err)
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist cancelled time: %w", err)
	}
	if s.logger != nil {
		s.logger.Printf("capture: saved cancelled time %q (iso=%q)", rec.RawText, rec.ISOTime)
	}
	return nil
}
