package hostdom

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// bindingName is the Runtime binding the injected page script reports
// through. One binding carries every event kind as a small JSON payload.
const bindingName = "__reschedEmit"

// Signatures are the structural/textual signatures the CDP locator matches
// host elements with. Mirrors the selector config; kept separate so this
// package stays independent of the config layer.
type Signatures struct {
	CancelText    string
	ScheduledTime string
	Menu          string
	MenuItem      string
	TemplateText  string
	DateInput     string
	TimeInput     string
	ConfirmText   string
}

// ConnectOptions controls Chrome attachment
type ConnectOptions struct {
	// CDPURL attaches to a running Chrome's DevTools endpoint. Empty means
	// launch a dedicated instance.
	CDPURL       string
	ProfileDir   string
	Headless     bool
	StartTimeout time.Duration
	Signatures   Signatures
	Logger       *log.Logger
}

// CDPPage implements Page and Locator over the Chrome DevTools Protocol.
// All element handles are IDs minted by the injected page script; CDP node
// IDs are deliberately not exposed, so one registry covers both backends'
// identity semantics.
type CDPPage struct {
	sig    Signatures
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders emit against Close: the target listener can still be
	// mid-callback when Close runs, and a send must never race the close
	// of the channel
	mu        sync.Mutex
	closed    bool
	events    chan Event
	closeOnce sync.Once
}

// Connect attaches to (or launches) Chrome, installs the page script in the
// Gmail tab, and starts the event pump.
func Connect(parent context.Context, opts ConnectOptions) (*CDPPage, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if opts.CDPURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.CDPURL)
	} else {
		execOpts := []chromedp.ExecAllocatorOption{
			chromedp.UserDataDir(opts.ProfileDir),
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			// Keep Chrome from advertising the automation, or Gmail's login
			// flow refuses to cooperate
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("exclude-switches", "enable-automation"),
			chromedp.Flag("disable-infobars", true),
			chromedp.Flag("disable-popup-blocking", true),
			chromedp.Flag("disable-session-crashed-bubble", true),
			chromedp.Flag("hide-crash-restore-bubble", true),
		}
		if opts.Headless {
			execOpts = append(execOpts, chromedp.Headless)
		} else {
			execOpts = append(execOpts, chromedp.Flag("headless", false))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, execOpts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	p := &CDPPage{
		sig:    opts.Signatures,
		logger: opts.Logger,
		ctx:    browserCtx,
		cancel: cancel,
		events: make(chan Event, 256),
	}

	chromedp.ListenTarget(browserCtx, p.handleTargetEvent)

	timeout := opts.StartTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	startCtx, startCancel := context.WithTimeout(browserCtx, timeout)
	defer startCancel()

	script := pageScript(opts.Signatures)
	err := chromedp.Run(startCtx,
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		// Install into the already-loaded document as well; the on-new-doc
		// script only covers future loads
		chromedp.Evaluate(script, nil),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("attach to Chrome: %w", err)
	}

	if opts.CDPURL == "" {
		navCtx, navCancel := context.WithTimeout(browserCtx, timeout)
		defer navCancel()
		if err := chromedp.Run(navCtx, chromedp.Navigate("https://mail.google.com/")); err != nil {
			cancel()
			return nil, fmt.Errorf("open Gmail: %w", err)
		}
	}

	return p, nil
}

// bindingPayload is the JSON the page script reports through the binding
type bindingPayload struct {
	Kind   string `json:"kind"`
	Node   int64  `json:"node"`
	Marker string `json:"marker"`
	Text   string `json:"text"`
}

func (p *CDPPage) handleTargetEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name != bindingName {
			return
		}
		var payload bindingPayload
		if err := json.Unmarshal([]byte(ev.Payload), &payload); err != nil {
			if p.logger != nil {
				p.logger.Printf("cdp: bad binding payload: %v", err)
			}
			return
		}
		p.emit(payload.toEvent())

	case *page.EventFrameNavigated:
		// Top-frame reloads; the SPA's hash routing is reported by the page
		// script instead
		if ev.Frame.ParentID == cdp.FrameID("") {
			p.emit(Event{Kind: KindNavigation, Text: ev.Frame.URL})
		}
	}
}

func (b bindingPayload) toEvent() Event {
	ev := Event{Node: NodeID(b.Node), Marker: b.Marker, Text: b.Text}
	switch b.Kind {
	case "mutation":
		ev.Kind = KindMutation
	case "navigation":
		ev.Kind = KindNavigation
	case "option":
		ev.Kind = KindOptionClick
	case "refresh":
		ev.Kind = KindRefreshClick
	case "cancel":
		ev.Kind = KindCancelClick
	}
	return ev
}

func (p *CDPPage) emit(ev Event) {
	if ev.Kind == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		if p.logger != nil {
			p.logger.Printf("cdp: event queue full, dropping %v", ev.Kind)
		}
	}
}

// Events returns the page notification stream
func (p *CDPPage) Events() <-chan Event {
	return p.events
}

// Close tears down the Chrome session and closes the event stream. Late
// listener callbacks emit into a marked-closed page and are dropped.
func (p *CDPPage) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.events)
	})
}

// eval runs a page-script expression and decodes the result
func (p *CDPPage) eval(ctx context.Context, expr string, out interface{}) error {
	runCtx := p.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
		defer cancel()
	}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// --- Page ---

func (p *CDPPage) Alive(ctx context.Context, id NodeID) bool {
	var alive bool
	if err := p.eval(ctx, fmt.Sprintf("__resched.alive(%d)", id), &alive); err != nil {
		return false
	}
	return alive
}

func (p *CDPPage) Click(ctx context.Context, id NodeID) error {
	var ok bool
	if err := p.eval(ctx, fmt.Sprintf("__resched.click(%d)", id), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("click: node %d not in document", id)
	}
	return nil
}

func (p *CDPPage) WriteInput(ctx context.Context, id NodeID, value string) error {
	var ok bool
	expr := fmt.Sprintf("__resched.writeInput(%d, %s)", id, jsString(value))
	if err := p.eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("writeInput: node %d not a live input", id)
	}
	return nil
}

func (p *CDPPage) InsertOption(ctx context.Context, ins OptionInsert) (OptionNodes, error) {
	spec, err := json.Marshal(map[string]interface{}{
		"menu":     ins.Menu,
		"template": ins.Template,
		"after":    ins.After,
		"marker":   ins.Marker,
		"title":    ins.Title,
		"display":  ins.Display,
		"refresh":  ins.Refresh,
	})
	if err != nil {
		return OptionNodes{}, fmt.Errorf("encode insert spec: %w", err)
	}
	var res struct {
		Option  int64 `json:"option"`
		Refresh int64 `json:"refresh"`
	}
	if err := p.eval(ctx, fmt.Sprintf("__resched.insertOption(%s)", spec), &res); err != nil {
		return OptionNodes{}, err
	}
	if res.Option == 0 {
		return OptionNodes{}, fmt.Errorf("insertOption: menu or template gone")
	}
	return OptionNodes{Option: NodeID(res.Option), Refresh: NodeID(res.Refresh)}, nil
}

func (p *CDPPage) SetOptionDisplay(ctx context.Context, id NodeID, display string) error {
	var ok bool
	expr := fmt.Sprintf("__resched.setDisplay(%d, %s)", id, jsString(display))
	if err := p.eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("setDisplay: node %d gone", id)
	}
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
