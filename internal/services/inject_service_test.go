package services

import (
	"context"
	"io"
	"log"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ajramos/resched/internal/hostdom"
	"github.com/ajramos/resched/internal/when"
	"github.com/ajramos/resched/test/helpers"
)

var injectNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)

// futureRecord is a saved cancelled time safely ahead of injectNow
func futureRecord() (SavedCancelledTime, time.Time) {
	target := time.Date(2025, 6, 11, 8, 34, 0, 0, time.Local)
	return SavedCancelledTime{
		RawText: "Tomorrow, 8:34 AM",
		ISOTime: when.FormatCanonical(target),
	}, target
}

func newTestInjector(t *testing.T, page *helpers.FakePage, repo CancelTimeRepository, scheduler ScheduleService) *InjectionServiceImpl {
	t.Helper()
	svc := NewInjectionService(page, page, repo, scheduler, log.New(io.Discard, "", 0))
	svc.now = func() time.Time { return injectNow }
	svc.rng = rand.New(rand.NewSource(7))
	return svc
}

func newFakePage(t *testing.T) *helpers.FakePage {
	t.Helper()
	page, err := helpers.NewFakePage(helpers.DefaultFixture)
	require.NoError(t, err)
	return page
}

// nextEvent drains the page stream until an event of the wanted kind shows up
func nextEvent(t *testing.T, page *helpers.FakePage, kind hostdom.EventKind) hostdom.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-page.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %v event within deadline", kind)
		}
	}
}

func TestInjectMenu_InsertsBothOptionsOnce(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	rec, _ := futureRecord()
	repo.On("Load", mock.Anything).Return(rec, true, nil)

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()

	// Repeated passes over the same instance insert each option exactly once
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.InjectMenu(context.Background(), menu))
	}

	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerRandomMorning))
	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerLastCancelled))
	assert.True(t, svc.Injected(menu))

	markers := page.MenuMarkers()
	require.GreaterOrEqual(t, len(markers), 2)
	assert.Equal(t, hostdom.MarkerRandomMorning, markers[0], "randomized option leads")
	assert.Equal(t, hostdom.MarkerLastCancelled, markers[1], "cancelled option sits directly after it")

	labels := page.MenuOptionLabels()
	assert.Contains(t, labels[0], "Tomorrow morning (random)")
	assert.Contains(t, labels[1], "Last cancelled time")
}

func TestInjectMenu_ConcurrentPassesStayIdempotent(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	rec, _ := futureRecord()
	repo.On("Load", mock.Anything).Return(rec, true, nil)

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.InjectMenu(context.Background(), menu)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerRandomMorning))
	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerLastCancelled))
}

func TestInjectMenu_NoSavedRecord(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	repo.On("Load", mock.Anything).Return(SavedCancelledTime{}, false, nil)

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()

	require.NoError(t, svc.InjectMenu(context.Background(), menu))

	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerRandomMorning))
	assert.Equal(t, 0, page.OptionCount(hostdom.MarkerLastCancelled))
	// The instance is settled regardless: no further passes needed
	assert.True(t, svc.Injected(menu))
	repo.AssertNotCalled(t, "Clear", mock.Anything)
}

func TestInjectMenu_StaleRecordCleared(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	past := time.Date(2025, 6, 9, 8, 34, 0, 0, time.Local)
	repo.On("Load", mock.Anything).Return(SavedCancelledTime{
		RawText: "Jun 9, 8:34 AM",
		ISOTime: when.FormatCanonical(past),
	}, true, nil)
	repo.On("Clear", mock.Anything).Return(nil).Once()

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()

	require.NoError(t, svc.InjectMenu(context.Background(), menu))

	assert.Equal(t, 0, page.OptionCount(hostdom.MarkerLastCancelled))
	assert.True(t, svc.Injected(menu))
	repo.AssertExpectations(t)

	// A second pass must not hit the store again
	require.NoError(t, svc.InjectMenu(context.Background(), menu))
	repo.AssertNumberOfCalls(t, "Load", 1)
}

func TestInjectMenu_UnparseableRecordCleared(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	repo.On("Load", mock.Anything).Return(SavedCancelledTime{
		RawText: "see you later",
	}, true, nil)
	repo.On("Clear", mock.Anything).Return(nil).Once()

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()

	require.NoError(t, svc.InjectMenu(context.Background(), menu))

	assert.Equal(t, 0, page.OptionCount(hostdom.MarkerLastCancelled))
	assert.True(t, svc.Injected(menu))
	repo.AssertExpectations(t)
}

func TestInjectMenu_RawTextFallbackParse(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	// No canonical instant persisted; the display heuristic carries it
	repo.On("Load", mock.Anything).Return(SavedCancelledTime{
		RawText: "Tomorrow, 9:15 AM",
	}, true, nil)

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()

	require.NoError(t, svc.InjectMenu(context.Background(), menu))

	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerLastCancelled))
	assert.Equal(t, "Jun 11, 9:15 AM", page.OptionDisplay(hostdom.MarkerLastCancelled))
}

func TestInjectMenu_StoreUnavailable(t *testing.T) {
	page := newFakePage(t)
	svc := newTestInjector(t, page, NewCancelTimeRepository(nil), &MockScheduleService{})
	menu := page.OpenScheduleMenu()

	require.NoError(t, svc.InjectMenu(context.Background(), menu))

	// Random option still goes in; the cancelled option resolves to nothing
	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerRandomMorning))
	assert.Equal(t, 0, page.OptionCount(hostdom.MarkerLastCancelled))
	assert.True(t, svc.Injected(menu))
}

func TestInjectMenu_FreshInstanceNeedsNewPass(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	rec, _ := futureRecord()
	repo.On("Load", mock.Anything).Return(rec, true, nil)

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	first := page.OpenScheduleMenu()
	require.NoError(t, svc.InjectMenu(context.Background(), first))
	require.True(t, svc.Injected(first))

	// The host tears the menu down and builds a new one: a fresh NodeID,
	// nothing carried over
	second := page.OpenScheduleMenu()
	require.NotEqual(t, first, second)
	assert.False(t, svc.Injected(second))

	svc.Forget(first)
	require.NoError(t, svc.InjectMenu(context.Background(), second))
	assert.True(t, svc.Injected(second))
	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerRandomMorning))
	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerLastCancelled))
}

func TestInjectMenu_DeadMenu(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	svc := newTestInjector(t, page, repo, &MockScheduleService{})

	menu := page.OpenScheduleMenu()
	page.CloseScheduleMenu()

	err := svc.InjectMenu(context.Background(), menu)
	assert.ErrorIs(t, err, ErrMenuGone)
	assert.False(t, svc.Injected(menu))
	repo.AssertNotCalled(t, "Load", mock.Anything)
}

func TestVerify_DetectsWipedOptions(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	rec, _ := futureRecord()
	repo.On("Load", mock.Anything).Return(rec, true, nil)

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()
	require.NoError(t, svc.InjectMenu(context.Background(), menu))
	require.True(t, svc.Verify(context.Background(), menu))

	// Same menu node, children replaced by the host
	page.WipeMenuChildren()
	assert.False(t, svc.Verify(context.Background(), menu))
}

func TestHandleRefreshClick_RewritesOnlyTheLabel(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	rec, _ := futureRecord()
	repo.On("Load", mock.Anything).Return(rec, true, nil)

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()
	require.NoError(t, svc.InjectMenu(context.Background(), menu))

	// Same seed, same draw sequence as the service's rng
	r := rand.New(rand.NewSource(7))
	firstTarget := when.RandomMorning(injectNow, r)
	secondTarget := when.RandomMorning(injectNow, r)
	require.Equal(t, when.FormatMenuLabel(firstTarget), page.OptionDisplay(hostdom.MarkerRandomMorning))

	require.True(t, page.UserClicksRefresh())
	ev := nextEvent(t, page, hostdom.KindRefreshClick)
	require.NoError(t, svc.HandleRefreshClick(context.Background(), ev.Node))

	assert.Equal(t, when.FormatMenuLabel(secondTarget), page.OptionDisplay(hostdom.MarkerRandomMorning))
	// Injection state and siblings untouched, menu still up
	assert.True(t, svc.Injected(menu))
	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerRandomMorning))
	assert.Equal(t, 1, page.OptionCount(hostdom.MarkerLastCancelled))
}

func TestHandleOptionClick_SchedulesAtRandomTarget(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	repo.On("Load", mock.Anything).Return(SavedCancelledTime{}, false, nil)
	scheduler := &MockScheduleService{}

	svc := newTestInjector(t, page, repo, scheduler)
	require.NoError(t, svc.InjectMenu(context.Background(), page.OpenScheduleMenu()))

	r := rand.New(rand.NewSource(7))
	target := when.RandomMorning(injectNow, r)
	scheduler.On("ScheduleAt", mock.Anything, target).Return(nil).Once()

	require.True(t, page.UserClicksOption(hostdom.MarkerRandomMorning))
	ev := nextEvent(t, page, hostdom.KindOptionClick)
	require.NoError(t, svc.HandleOptionClick(context.Background(), ev.Node, ev.Marker))
	svc.Wait()

	scheduler.AssertExpectations(t)
}

func TestHandleOptionClick_SchedulesAtCancelledTarget(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	rec, target := futureRecord()
	repo.On("Load", mock.Anything).Return(rec, true, nil)
	scheduler := &MockScheduleService{}

	svc := newTestInjector(t, page, repo, scheduler)
	require.NoError(t, svc.InjectMenu(context.Background(), page.OpenScheduleMenu()))

	scheduler.On("ScheduleAt", mock.Anything, mock.MatchedBy(func(got time.Time) bool {
		return got.Equal(target)
	})).Return(nil).Once()

	require.True(t, page.UserClicksOption(hostdom.MarkerLastCancelled))
	ev := nextEvent(t, page, hostdom.KindOptionClick)
	require.NoError(t, svc.HandleOptionClick(context.Background(), ev.Node, ev.Marker))
	svc.Wait()

	scheduler.AssertExpectations(t)
}

func TestHandleOptionClick_UnknownNodeIgnored(t *testing.T) {
	page := newFakePage(t)
	scheduler := &MockScheduleService{}
	svc := newTestInjector(t, page, &MockCancelTimeRepository{}, scheduler)

	err := svc.HandleOptionClick(context.Background(), hostdom.NodeID(9999), hostdom.MarkerRandomMorning)
	assert.NoError(t, err)
	svc.Wait()
	scheduler.AssertNotCalled(t, "ScheduleAt", mock.Anything, mock.Anything)
}

func TestReset_DropsAllInstances(t *testing.T) {
	page := newFakePage(t)
	repo := &MockCancelTimeRepository{}
	repo.On("Load", mock.Anything).Return(SavedCancelledTime{}, false, nil)

	svc := newTestInjector(t, page, repo, &MockScheduleService{})
	menu := page.OpenScheduleMenu()
	require.NoError(t, svc.InjectMenu(context.Background(), menu))
	require.True(t, svc.Injected(menu))

	svc.Reset()
	assert.False(t, svc.Injected(menu))
}
