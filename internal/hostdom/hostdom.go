// Package hostdom abstracts the Gmail page resched drives. The host offers
// no API: elements are located by structural and textual signature, and the
// contract is unversioned. When Gmail's markup changes, lookups simply stop
// finding things and callers degrade to doing nothing.
package hostdom

// NodeID identifies a live node in the host document. An ID is stable for
// the lifetime of its node and is never reused within a page session, so ID
// equality is how the engine tells one menu instance from the next.
type NodeID int64

// None is the zero NodeID, used when a lookup finds nothing.
const None NodeID = 0

// Marker classes tagged onto injected menu options so later passes recognize
// prior injections.
const (
	MarkerRandomMorning = "resched-random-morning"
	MarkerLastCancelled = "resched-last-cancelled"
)

// EventKind classifies host page events.
type EventKind int

const (
	// KindMutation reports document-wide structural churn. Bursts are
	// expected; consumers debounce.
	KindMutation EventKind = iota + 1

	// KindNavigation reports an in-page navigation (Gmail is a single-page
	// app; view changes rewrite the hash route).
	KindNavigation

	// KindOptionClick reports a user click on an injected menu option.
	KindOptionClick

	// KindRefreshClick reports a user click on the refresh control inside
	// the randomized option. Never accompanied by a KindOptionClick for the
	// same gesture.
	KindRefreshClick

	// KindCancelClick reports the user cancelling a scheduled send. Text
	// carries the scheduled-time display string captured synchronously in
	// the page, before Gmail's own handling re-renders it away.
	KindCancelClick
)

// Event is a single host page notification.
type Event struct {
	Kind   EventKind
	Node   NodeID // clicked node for option/refresh clicks
	Marker string // marker class for option clicks
	Text   string // captured display text (cancel), or URL (navigation)
}

// OptionInsert describes one synthetic menu option to clone into a live menu.
type OptionInsert struct {
	Menu     NodeID
	Template NodeID // existing host item to clone
	After    NodeID // insert directly after this sibling; None → first child
	Marker   string
	Title    string
	Display  string // displayed time text
	Refresh  bool   // include the inline refresh control
}

// OptionNodes holds the node handles of one inserted option.
type OptionNodes struct {
	Option  NodeID
	Refresh NodeID // None unless OptionInsert.Refresh was set
}
