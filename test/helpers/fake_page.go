// Package helpers provides the in-memory host page used to test the engine
// without a browser. FakePage implements hostdom.Page and hostdom.Locator
// over a small mutable tree and lets tests play the host: opening and
// rebuilding menus, wiping children, delaying the picker dialog, clicking as
// the user.
package helpers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/ajramos/resched/internal/hostdom"
)

// Visible texts the fake host renders, matching the default selector config
const (
	CancelText   = "Cancel send"
	TemplateText = "Pick date & time"
	ConfirmText  = "Schedule send"
)

// DefaultFixture is the initial document: a compose window with a scheduled
// send banner and its cancel control.
const DefaultFixture = `
<html><body>
  <div class="compose">
    <span class="scheduled-time" title="Send scheduled for Jan 2, 8:34 AM">Jan 2, 8:34 AM</span>
    <button class="cancel-send">Cancel send</button>
  </div>
</body></html>`

type fakeNode struct {
	id       hostdom.NodeID
	tag      string
	attrs    map[string]string
	text     string
	children []*fakeNode
	parent   *fakeNode
}

func (n *fakeNode) class() string { return n.attrs["class"] }

func (n *fakeNode) hasClass(c string) bool {
	for _, f := range strings.Fields(n.class()) {
		if f == c {
			return true
		}
	}
	return false
}

// FakePage is a concurrency-safe fake host document
type FakePage struct {
	mu     sync.Mutex
	nextID hostdom.NodeID
	root   *fakeNode
	nodes  map[hostdom.NodeID]*fakeNode
	events chan hostdom.Event

	menu *fakeNode

	pickerOpen  bool
	pickerNever bool
	fieldDelay  int // FindDateInput calls swallowed before the fields "render"
	fieldCalls  int
	dialog      *fakeNode

	inputLog  []string
	scheduled []string // "date value|time value" per confirm
}

// NewFakePage builds a fake page from an HTML fixture
func NewFakePage(fixture string) (*FakePage, error) {
	doc, err := html.Parse(strings.NewReader(fixture))
	if err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	p := &FakePage{
		nodes:  make(map[hostdom.NodeID]*fakeNode),
		events: make(chan hostdom.Event, 256),
	}
	body := findHTMLNode(doc, "body")
	if body == nil {
		return nil, fmt.Errorf("fixture has no body")
	}
	p.root = p.convert(body, nil)
	return p, nil
}

func findHTMLNode(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findHTMLNode(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func (p *FakePage) convert(n *html.Node, parent *fakeNode) *fakeNode {
	node := p.newNode(n.Data, parent)
	for _, a := range n.Attr {
		node.attrs[a.Key] = a.Val
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			node.text += strings.TrimSpace(c.Data)
		case html.ElementNode:
			node.children = append(node.children, p.convert(c, node))
		}
	}
	return node
}

func (p *FakePage) newNode(tag string, parent *fakeNode) *fakeNode {
	p.nextID++
	node := &fakeNode{
		id:     p.nextID,
		tag:    tag,
		attrs:  make(map[string]string),
		parent: parent,
	}
	p.nodes[node.id] = node
	return node
}

func (p *FakePage) emit(ev hostdom.Event) {
	select {
	case p.events <- ev:
	default:
		// tests that never consume events must not deadlock the page
	}
}

func (p *FakePage) attached(n *fakeNode) bool {
	for ; n != nil; n = n.parent {
		if n == p.root {
			return true
		}
	}
	return false
}

func (n *fakeNode) deepText() string {
	parts := []string{n.text}
	for _, c := range n.children {
		parts = append(parts, c.deepText())
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (p *FakePage) walk(n *fakeNode, visit func(*fakeNode) bool) bool {
	if visit(n) {
		return true
	}
	for _, c := range n.children {
		if p.walk(c, visit) {
			return true
		}
	}
	return false
}

func (p *FakePage) find(root *fakeNode, pred func(*fakeNode) bool) *fakeNode {
	var out *fakeNode
	p.walk(root, func(n *fakeNode) bool {
		if pred(n) {
			out = n
			return true
		}
		return false
	})
	return out
}

// --- hostdom.Page ---

func (p *FakePage) Alive(_ context.Context, id hostdom.NodeID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	return ok && p.attached(n)
}

// Click is the engine driving a host control. Clicking the template item
// opens the manual picker dialog; clicking the confirm button records the
// scheduled values and closes everything, the way Gmail does.
func (p *FakePage) Click(_ context.Context, id hostdom.NodeID) error {
	p.mu.Lock()
	n, ok := p.nodes[id]
	if !ok || !p.attached(n) {
		p.mu.Unlock()
		return fmt.Errorf("node %d not in document", id)
	}

	switch {
	case strings.Contains(n.deepText(), TemplateText) && n.attrs["role"] == "menuitem" && n.class() == "":
		p.pickerOpen = true
		p.detachMenuLocked()
	case n.tag == "button" && strings.Contains(n.deepText(), ConfirmText):
		p.scheduled = append(p.scheduled, p.inputValueLocked("Date")+"|"+p.inputValueLocked("Time"))
		p.closePickerLocked()
	}
	p.mu.Unlock()
	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
	return nil
}

func (p *FakePage) inputValueLocked(label string) string {
	if p.dialog == nil {
		return ""
	}
	in := p.find(p.dialog, func(n *fakeNode) bool {
		return n.tag == "input" && n.attrs["aria-label"] == label
	})
	if in == nil {
		return ""
	}
	return in.attrs["value"]
}

func (p *FakePage) WriteInput(_ context.Context, id hostdom.NodeID, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok || !p.attached(n) || n.tag != "input" {
		return fmt.Errorf("node %d is not a live input", id)
	}
	label := n.attrs["aria-label"]
	n.attrs["value"] = value
	// The host ignores bare assignment; record the full synthetic sequence
	for _, ev := range []string{"focus", "input", "change", "blur"} {
		p.inputLog = append(p.inputLog, label+":"+ev)
	}
	return nil
}

func (p *FakePage) InsertOption(_ context.Context, ins hostdom.OptionInsert) (hostdom.OptionNodes, error) {
	p.mu.Lock()
	menu, ok := p.nodes[ins.Menu]
	if !ok || !p.attached(menu) {
		p.mu.Unlock()
		return hostdom.OptionNodes{}, fmt.Errorf("menu %d not in document", ins.Menu)
	}
	tpl, ok := p.nodes[ins.Template]
	if !ok || !p.attached(tpl) {
		p.mu.Unlock()
		return hostdom.OptionNodes{}, fmt.Errorf("template %d not in document", ins.Template)
	}

	opt := p.newNode(tpl.tag, menu)
	opt.attrs["role"] = tpl.attrs["role"]
	opt.attrs["class"] = ins.Marker

	title := p.newNode("span", opt)
	title.attrs["class"] = "resched-title"
	title.text = ins.Title
	opt.children = append(opt.children, title)

	display := p.newNode("span", opt)
	display.attrs["class"] = "resched-display"
	display.text = ins.Display
	opt.children = append(opt.children, display)

	out := hostdom.OptionNodes{Option: opt.id}
	if ins.Refresh {
		refresh := p.newNode("span", opt)
		refresh.attrs["class"] = "resched-refresh"
		refresh.text = "↻"
		opt.children = append(opt.children, refresh)
		out.Refresh = refresh.id
	}

	pos := 0
	if ins.After != hostdom.None {
		for i, c := range menu.children {
			if c.id == ins.After {
				pos = i + 1
				break
			}
		}
	}
	menu.children = append(menu.children[:pos], append([]*fakeNode{opt}, menu.children[pos:]...)...)
	p.mu.Unlock()

	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
	return out, nil
}

func (p *FakePage) SetOptionDisplay(_ context.Context, id hostdom.NodeID, display string) error {
	p.mu.Lock()
	n, ok := p.nodes[id]
	if !ok || !p.attached(n) {
		p.mu.Unlock()
		return fmt.Errorf("node %d not in document", id)
	}
	d := p.find(n, func(c *fakeNode) bool { return c.hasClass("resched-display") })
	if d == nil {
		p.mu.Unlock()
		return fmt.Errorf("node %d has no display span", id)
	}
	d.text = display
	p.mu.Unlock()

	p.emit(hostdom.Event{Kind: hostdom.KindMutation})
	return nil
}

func (p *FakePage) Events() <-chan hostdom.Event {
	return p.events
}

// --- hostdom.Locator ---

func (p *FakePage) FindCancelControl(_ context.Context) (hostdom.NodeID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.find(p.root, func(n *fakeNode) bool {
		return n.tag == "button" && strings.Contains(n.deepText(), CancelText)
	})
	return idOf(n), n != nil, nil
}

func (p *FakePage) FindScheduledTimeDisplay(_ context.Context) (hostdom.NodeID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.find(p.root, func(n *fakeNode) bool {
		return strings.Contains(n.attrs["title"], "Send scheduled")
	})
	return idOf(n), n != nil, nil
}

func (p *FakePage) FindMenu(_ context.Context) (hostdom.NodeID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.menu == nil || !p.attached(p.menu) {
		return hostdom.None, false, nil
	}
	return p.menu.id, true, nil
}

func (p *FakePage) FindMenuItemTemplate(_ context.Context, menu hostdom.NodeID) (hostdom.NodeID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.nodes[menu]
	if !ok || !p.attached(m) {
		return hostdom.None, false, nil
	}
	n := p.find(m, func(n *fakeNode) bool {
		return n.attrs["role"] == "menuitem" && n.class() == "" && strings.Contains(n.deepText(), TemplateText)
	})
	return idOf(n), n != nil, nil
}

func (p *FakePage) FindOption(_ context.Context, menu hostdom.NodeID, marker string) (hostdom.NodeID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.nodes[menu]
	if !ok || !p.attached(m) {
		return hostdom.None, false, nil
	}
	n := p.find(m, func(n *fakeNode) bool { return n.hasClass(marker) })
	return idOf(n), n != nil, nil
}

func (p *FakePage) FindDateInput(_ context.Context) (hostdom.NodeID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pickerOpen || p.pickerNever {
		return hostdom.None, false, nil
	}
	p.fieldCalls++
	if p.fieldCalls <= p.fieldDelay {
		return hostdom.None, false, nil
	}
	p.ensureDialogLocked()
	n := p.find(p.dialog, func(n *fakeNode) bool {
		return n.tag == "input" && n.attrs["aria-label"] == "Date"
	})
	return idOf(n), n != nil, nil
}

func (p *FakePage) FindTimeInput(_ context.Context) (hostdom.NodeID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dialog == nil || !p.attached(p.dialog) {
		return hostdom.None, false, nil
	}
	n := p.find(p.dialog, func(n *fakeNode) bool {
		return n.tag == "input" && n.attrs["aria-label"] == "Time"
	})
	return idOf(n), n != nil, nil
}

func (p *FakePage) FindConfirmControl(_ context.Context) (hostdom.NodeID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dialog == nil || !p.attached(p.dialog) {
		return hostdom.None, false, nil
	}
	n := p.find(p.dialog, func(n *fakeNode) bool {
		return n.tag == "button" && strings.Contains(n.deepText(), ConfirmText)
	})
	return idOf(n), n != nil, nil
}

func idOf(n *fakeNode) hostdom.NodeID {
	if n == nil {
		return hostdom.None
	}
	return n.id
}

// ensureDialogLocked lazily renders the manual picker dialog
func (p *FakePage) ensureDialogLocked() {
	if p.dialog != nil && p.attached(p.dialog) {
		return
	}
	dialog := p.newNode("div", p.root)
	dialog.attrs["role"] = "dialog"

	date := p.newNode("input", dialog)
	date.attrs["aria-label"] = "Date"
	dialog.children = append(dialog.children, date)

	tm := p.newNode("input", dialog)
	tm.attrs["aria-label"] = "Time"
	dialog.children = append(dialog.children, tm)

	confirm := p.newNode("button", dialog)
	confirm.text = ConfirmText
	dialog.children = append(dialog.children, confirm)

	p.root.children = append(p.root.children, dialog)
	p.dialog = dialog
}

func (p *FakePage) detachMenuLocked() {
	if p.menu == nil {
		return
	}
	for i, c := range p.root.children {
		if c == p.menu {
			p.root.children = append(p.root.children[:i], p.root.children[i+1:]...)
			break
		}
	}
	p.menu.parent = nil
}

func (p *FakePage) closePickerLocked() {
	p.pickerOpen = false
	p.fieldCalls = 0
	if p.dialog != nil {
		for i, c := range p.root.children {
			if c == p.dialog {
				p.root.children = append(p.root.children[:i], p.root.children[i+1:]...)
				break
			}
		}
		p.dialog.parent = nil
		p.dialog = nil
	}
}
