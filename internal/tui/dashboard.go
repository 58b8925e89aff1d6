// Package tui renders the optional operator dashboard: live watcher state,
// the saved cancelled time, and recent activity. Headless mode skips all of
// this; the engine never depends on the dashboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/ajramos/resched/internal/version"
)

// Status is one snapshot of engine state for display
type Status struct {
	Watcher   string
	SavedRaw  string
	SavedISO  string
	Scheduled int
}

// StatusFunc produces the current Status; called on every refresh tick
type StatusFunc func() Status

// Dashboard is the tview application wrapper
type Dashboard struct {
	app     *tview.Application
	table   *tview.Table
	logView *tview.TextView
	status  StatusFunc
	ring    *LogRing
	refresh time.Duration
}

// NewDashboard creates a dashboard over the given status source and log ring
func NewDashboard(status StatusFunc, ring *LogRing) *Dashboard {
	d := &Dashboard{
		app:     tview.NewApplication(),
		table:   tview.NewTable(),
		logView: tview.NewTextView(),
		status:  status,
		ring:    ring,
		refresh: 500 * time.Millisecond,
	}

	d.table.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", version.GetVersionString()))
	d.logView.SetBorder(true).SetTitle(" Activity ")
	d.logView.SetScrollable(true)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.table, 7, 0, false).
		AddItem(d.logView, 0, 1, true)

	d.app.SetRoot(flex, true)
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyEscape {
			d.app.Stop()
			return nil
		}
		return event
	})

	return d
}

// Run blocks until the user quits or ctx is done
func (d *Dashboard) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(d.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				d.app.QueueUpdateDraw(func() {})
				d.app.Stop()
				return
			case <-ticker.C:
				d.app.QueueUpdateDraw(d.redraw)
			}
		}
	}()

	err := d.app.Run()
	<-done
	return err
}

func (d *Dashboard) redraw() {
	st := d.status()

	rows := [][2]string{
		{"Watcher", st.Watcher},
		{"Last cancelled (raw)", valueOrDash(st.SavedRaw)},
		{"Last cancelled (iso)", valueOrDash(st.SavedISO)},
		{"Schedules driven", fmt.Sprintf("%d", st.Scheduled)},
		{"", "press q to quit"},
	}
	for i, row := range rows {
		d.table.SetCell(i, 0, tview.NewTableCell(row[0]).SetTextColor(tcell.ColorYellow))
		d.table.SetCell(i, 1, tview.NewTableCell(row[1]))
	}

	if d.ring != nil {
		d.logView.SetText(strings.Join(d.ring.Lines(), "\n"))
		d.logView.ScrollToEnd()
	}
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
