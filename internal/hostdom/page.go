package hostdom

import "context"

// Page drives a live host document. All writes go through the host's own
// event machinery: Gmail ignores bare programmatic value assignment, so
// WriteInput must focus the field, assign the text, and synthesize input,
// change and blur notifications.
type Page interface {
	// Alive reports whether the node is still attached to the document.
	Alive(ctx context.Context, id NodeID) bool

	// Click activates a host control the way a user click would.
	Click(ctx context.Context, id NodeID) error

	// WriteInput writes a value into a host input field via focus, value
	// assignment, and synthetic input/change/blur events.
	WriteInput(ctx context.Context, id NodeID, value string) error

	// InsertOption clones the template item into the menu per the insert
	// spec and returns the handles of the new nodes.
	InsertOption(ctx context.Context, ins OptionInsert) (OptionNodes, error)

	// SetOptionDisplay rewrites the displayed time text of an injected
	// option, leaving everything else in place.
	SetOptionDisplay(ctx context.Context, id NodeID, display string) error

	// Events returns the page's notification stream. The channel is closed
	// when the page goes away.
	Events() <-chan Event
}

// Locator finds host elements by structural and textual signature. Every
// method returns ok=false, not an error, when the element is simply absent;
// errors are reserved for transport failures. Implementations vary per host
// version behind this interface, isolating the markup fragility.
type Locator interface {
	FindCancelControl(ctx context.Context) (NodeID, bool, error)
	FindScheduledTimeDisplay(ctx context.Context) (NodeID, bool, error)
	FindMenu(ctx context.Context) (NodeID, bool, error)
	FindMenuItemTemplate(ctx context.Context, menu NodeID) (NodeID, bool, error)
	FindOption(ctx context.Context, menu NodeID, marker string) (NodeID, bool, error)
	FindDateInput(ctx context.Context) (NodeID, bool, error)
	FindTimeInput(ctx context.Context) (NodeID, bool, error)
	FindConfirmControl(ctx context.Context) (NodeID, bool, error)
}
