package hostdom

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Locator implementation for CDPPage. Simple lookups go straight through the
// page script; the text-matched controls (cancel, confirm) are resolved over
// a tagged DOM snapshot instead, where goquery gives us real structural
// matching rather than a second ad hoc JS walker.

func (p *CDPPage) findKind(ctx context.Context, kind string) (NodeID, bool, error) {
	var id int64
	if err := p.eval(ctx, fmt.Sprintf("__resched.find(%s)", jsString(kind)), &id); err != nil {
		return None, false, err
	}
	return NodeID(id), id != 0, nil
}

func (p *CDPPage) FindScheduledTimeDisplay(ctx context.Context) (NodeID, bool, error) {
	return p.findKind(ctx, "scheduledTime")
}

func (p *CDPPage) FindMenu(ctx context.Context) (NodeID, bool, error) {
	return p.findKind(ctx, "menu")
}

func (p *CDPPage) FindDateInput(ctx context.Context) (NodeID, bool, error) {
	return p.findKind(ctx, "dateInput")
}

func (p *CDPPage) FindTimeInput(ctx context.Context) (NodeID, bool, error) {
	return p.findKind(ctx, "timeInput")
}

func (p *CDPPage) FindMenuItemTemplate(ctx context.Context, menu NodeID) (NodeID, bool, error) {
	var id int64
	if err := p.eval(ctx, fmt.Sprintf("__resched.findInMenu(%d, '')", menu), &id); err != nil {
		return None, false, err
	}
	return NodeID(id), id != 0, nil
}

func (p *CDPPage) FindOption(ctx context.Context, menu NodeID, marker string) (NodeID, bool, error) {
	var id int64
	if err := p.eval(ctx, fmt.Sprintf("__resched.findInMenu(%d, %s)", menu, jsString(marker)), &id); err != nil {
		return None, false, err
	}
	return NodeID(id), id != 0, nil
}

func (p *CDPPage) FindCancelControl(ctx context.Context) (NodeID, bool, error) {
	return p.findByTextSnapshot(ctx, "span[role=link], button", p.sig.CancelText)
}

func (p *CDPPage) FindConfirmControl(ctx context.Context) (NodeID, bool, error) {
	return p.findByTextSnapshot(ctx, "button", p.sig.ConfirmText)
}

// findByTextSnapshot tags all candidates matching the selector with their
// registry IDs, pulls one HTML snapshot, and picks the first candidate whose
// rendered text contains want.
func (p *CDPPage) findByTextSnapshot(ctx context.Context, selector, want string) (NodeID, bool, error) {
	var snapshot string
	expr := fmt.Sprintf("__resched.tagCandidates(%s)", jsString(selector))
	if err := p.eval(ctx, expr, &snapshot); err != nil {
		return None, false, err
	}
	if snapshot == "" {
		return None, false, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return None, false, fmt.Errorf("parse snapshot: %w", err)
	}

	var found NodeID
	doc.Find("[data-resched-cand]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(strings.TrimSpace(sel.Text()), want) {
			return true
		}
		raw, ok := sel.Attr("data-resched-cand")
		if !ok {
			return true
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id == 0 {
			return true
		}
		found = NodeID(id)
		return false
	})

	return found, found != None, nil
}
