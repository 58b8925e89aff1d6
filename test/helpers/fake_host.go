package helpers

import (
	"strings"

	"github.com/ajramos/resched/internal/hostdom"
)

// Host-side simulation: everything in this file plays Gmail, not the engine.
// Tree changes emit mutation events exactly like the real page would.

var nativeItems = []string{"Tomorrow morning", "Tomorrow afternoon", TemplateText}

// OpenScheduleMenu renders a fresh picker menu instance and returns its node.
// Each call produces a new NodeID, matching the host's destroy-and-recreate
// behavior.
func (p *FakePage) OpenScheduleMenu() hostdom.NodeID {
	p.mu.Lock()
	p.detachMenuLocked()
	menu := p.newNode("div", p.root)
	menu.attrs["role"] = "menu"
	for _, label := range nativeItems {
		item := p.newNode("div", menu)
		item.attrs["role"] = "menuitem"
		item.text = label
		menu.children = append(menu.children, item)
	}
	p.root.children = append(p.root.children, menu)
	p.menu = menu
	id := menu.id
	p.mu.Unlock()

	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
	return id
}

// CloseScheduleMenu tears the menu down
func (p *FakePage) CloseScheduleMenu() {
	p.mu.Lock()
	p.detachMenuLocked()
	p.menu = nil
	p.mu.Unlock()
	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
}

// WipeMenuChildren simulates a host re-render that replaces the menu's
// children in place: same menu node, injected options gone, fresh native
// items.
func (p *FakePage) WipeMenuChildren() {
	p.mu.Lock()
	if p.menu != nil {
		for _, c := range p.menu.children {
			c.parent = nil
		}
		p.menu.children = nil
		for _, label := range nativeItems {
			item := p.newNode("div", p.menu)
			item.attrs["role"] = "menuitem"
			item.text = label
			p.menu.children = append(p.menu.children, item)
		}
	}
	p.mu.Unlock()
	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
}

// SetPickerFieldDelay makes the picker's input fields appear only after n
// lookup attempts, simulating the host's slow dialog render
func (p *FakePage) SetPickerFieldDelay(n int) {
	p.mu.Lock()
	p.fieldDelay = n
	p.mu.Unlock()
}

// SetPickerNeverRenders makes the input fields never appear, exhausting the
// driver's retry budget
func (p *FakePage) SetPickerNeverRenders() {
	p.mu.Lock()
	p.pickerNever = true
	p.mu.Unlock()
}

// SetScheduledTimeDisplay rewrites the compose window's scheduled-time banner
func (p *FakePage) SetScheduledTimeDisplay(text string) {
	p.mu.Lock()
	n := p.find(p.root, func(n *fakeNode) bool {
		return strings.Contains(n.attrs["title"], "Send scheduled")
	})
	if n != nil {
		n.text = text
		n.attrs["title"] = "Send scheduled for " + text
	}
	p.mu.Unlock()
	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
}

// UserCancelsSchedule plays the user clicking "Cancel send". The event
// carries the banner text captured synchronously, before the host re-renders.
func (p *FakePage) UserCancelsSchedule() {
	p.mu.Lock()
	text := ""
	n := p.find(p.root, func(n *fakeNode) bool {
		return strings.Contains(n.attrs["title"], "Send scheduled")
	})
	if n != nil {
		text = n.deepText()
		// the host drops the banner as part of its own cancel handling
		n.text = ""
		delete(n.attrs, "title")
	}
	p.mu.Unlock()

	p.emit(hostdom.Event{Kind: hostdom.KindCancelClick, Text: text})
	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
}

// UserClicksOption plays the user clicking an injected option
func (p *FakePage) UserClicksOption(marker string) bool {
	p.mu.Lock()
	var opt *fakeNode
	if p.menu != nil {
		opt = p.find(p.menu, func(n *fakeNode) bool { return n.hasClass(marker) })
	}
	p.mu.Unlock()
	if opt == nil {
		return false
	}
	p.emit(hostdom.Event{Kind: hostdom.KindOptionClick, Node: opt.id, Marker: marker})
	return true
}

// UserClicksRefresh plays the user clicking the randomized option's refresh
// control. Propagation to the option's own click handler is suppressed, so no
// option-click event accompanies it.
func (p *FakePage) UserClicksRefresh() bool {
	p.mu.Lock()
	var refresh *fakeNode
	if p.menu != nil {
		refresh = p.find(p.menu, func(n *fakeNode) bool { return n.hasClass("resched-refresh") })
	}
	p.mu.Unlock()
	if refresh == nil {
		return false
	}
	p.emit(hostdom.Event{Kind: hostdom.KindRefreshClick, Node: refresh.id})
	return true
}

// Navigate plays a single-page-app route change
func (p *FakePage) Navigate(url string) {
	p.mu.Lock()
	p.detachMenuLocked()
	p.menu = nil
	p.closePickerLocked()
	p.mu.Unlock()
	p.emit(hostdom.Event{Kind: hostdom.KindNavigation, Text: url})
}

// EmitMutation injects raw document churn
func (p *FakePage) EmitMutation() {
	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
}

// --- assertion accessors ---

// MenuOptionLabels returns the menu children's texts in document order
func (p *FakePage) MenuOptionLabels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.menu == nil {
		return nil
	}
	out := make([]string, 0, len(p.menu.children))
	for _, c := range p.menu.children {
		out = append(out, c.deepText())
	}
	return out
}

// MenuMarkers returns the marker classes of the menu children in order,
// empty string for native items
func (p *FakePage) MenuMarkers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.menu == nil {
		return nil
	}
	out := make([]string, 0, len(p.menu.children))
	for _, c := range p.menu.children {
		out = append(out, c.class())
	}
	return out
}

// OptionDisplay returns the displayed time text of the marked option
func (p *FakePage) OptionDisplay(marker string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.menu == nil {
		return ""
	}
	opt := p.find(p.menu, func(n *fakeNode) bool { return n.hasClass(marker) })
	if opt == nil {
		return ""
	}
	d := p.find(opt, func(n *fakeNode) bool { return n.hasClass("resched-display") })
	if d == nil {
		return ""
	}
	return d.text
}

// OptionCount returns how many options carry the marker; at most one, if
// the injector keeps its promise
func (p *FakePage) OptionCount(marker string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.menu == nil {
		return 0
	}
	count := 0
	p.walk(p.menu, func(n *fakeNode) bool {
		if n.hasClass(marker) {
			count++
		}
		return false
	})
	return count
}

// Scheduled returns the recorded "date|time" value pairs, one per confirm
func (p *FakePage) Scheduled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scheduled...)
}

// InputEventLog returns the synthetic event sequence written to the picker
// inputs
func (p *FakePage) InputEventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inputLog...)
}

// PickerOpen reports whether the manual picker dialog is up
func (p *FakePage) PickerOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pickerOpen
}
