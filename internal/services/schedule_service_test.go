package services

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajramos/resched/test/helpers"
)

func newTestScheduler(t *testing.T, page *helpers.FakePage, maxAttempts int) *ScheduleServiceImpl {
	t.Helper()
	return NewScheduleService(page, page, time.Millisecond, maxAttempts, 0, log.New(io.Discard, "", 0))
}

func TestScheduleAt_DrivesThePickerEndToEnd(t *testing.T) {
	page := newFakePage(t)
	page.OpenScheduleMenu()
	svc := newTestScheduler(t, page, 5)

	target := time.Date(2025, 1, 2, 8, 34, 0, 0, time.Local)
	require.NoError(t, svc.ScheduleAt(context.Background(), target))

	assert.Equal(t, []string{"01/02/2025|8:34 AM"}, page.Scheduled())
	assert.False(t, page.PickerOpen(), "confirm closes the dialog")
	assert.Equal(t, 1, svc.Completed())

	// Date first, time second, each through the full synthetic sequence
	assert.Equal(t, []string{
		"Date:focus", "Date:input", "Date:change", "Date:blur",
		"Time:focus", "Time:input", "Time:change", "Time:blur",
	}, page.InputEventLog())
}

func TestScheduleAt_PMTime(t *testing.T) {
	page := newFakePage(t)
	page.OpenScheduleMenu()
	svc := newTestScheduler(t, page, 5)

	target := time.Date(2025, 11, 21, 16, 5, 0, 0, time.Local)
	require.NoError(t, svc.ScheduleAt(context.Background(), target))

	assert.Equal(t, []string{"11/21/2025|4:05 PM"}, page.Scheduled())
}

func TestScheduleAt_WaitsForSlowDialog(t *testing.T) {
	page := newFakePage(t)
	page.OpenScheduleMenu()
	page.SetPickerFieldDelay(3)
	svc := newTestScheduler(t, page, 10)

	target := time.Date(2025, 1, 2, 8, 34, 0, 0, time.Local)
	require.NoError(t, svc.ScheduleAt(context.Background(), target))

	assert.Len(t, page.Scheduled(), 1)
}

func TestScheduleAt_GivesUpAfterAttemptCap(t *testing.T) {
	page := newFakePage(t)
	page.OpenScheduleMenu()
	page.SetPickerNeverRenders()
	svc := newTestScheduler(t, page, 3)

	target := time.Date(2025, 1, 2, 8, 34, 0, 0, time.Local)
	err := svc.ScheduleAt(context.Background(), target)
	assert.ErrorIs(t, err, ErrFieldsNotFound)

	// No partial writes, no confirm, nothing scheduled
	assert.Empty(t, page.Scheduled())
	assert.Empty(t, page.InputEventLog())
	assert.Equal(t, 0, svc.Completed())
}

func TestScheduleAt_NoMenuNoDialog(t *testing.T) {
	page := newFakePage(t)
	svc := newTestScheduler(t, page, 2)

	err := svc.ScheduleAt(context.Background(), time.Date(2025, 1, 2, 8, 34, 0, 0, time.Local))
	assert.ErrorIs(t, err, ErrFieldsNotFound)
}

func TestScheduleAt_ContextCancelled(t *testing.T) {
	page := newFakePage(t)
	page.OpenScheduleMenu()
	page.SetPickerNeverRenders()
	svc := newTestScheduler(t, page, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.ScheduleAt(ctx, time.Date(2025, 1, 2, 8, 34, 0, 0, time.Local))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduleAt_CompletedAccumulates(t *testing.T) {
	page := newFakePage(t)
	svc := newTestScheduler(t, page, 5)

	for i := 1; i <= 3; i++ {
		page.OpenScheduleMenu()
		target := time.Date(2025, 1, i, 9, 0, 0, 0, time.Local)
		require.NoError(t, svc.ScheduleAt(context.Background(), target))
	}
	assert.Equal(t, 3, svc.Completed())
	assert.Len(t, page.Scheduled(), 3)
}
