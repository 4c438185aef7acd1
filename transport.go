package wsi

import (
	"context"
	"time"

	"github.com/agentstation/wsi/pkg/events"
)

// ConnectionState is the push connection state reported by the transport.
type ConnectionState int

// Connection states.
const (
	Disconnected ConnectionState = iota
	Connected
)

// String returns "connected" or "disconnected".
func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Transport is the push and command side of the WSI server. Reconnect
// pacing belongs to the transport; the client only reacts to the state
// signal.
type Transport interface {
	// Events delivers batches of raw event records.
	Events() <-chan []events.Record

	// ConnectionState delivers Connected/Disconnected transitions.
	ConnectionState() <-chan ConnectionState

	// Subscribe asks the server to push events on the current connection.
	Subscribe(ctx context.Context, includeHidden bool) error

	// Unsubscribe stops the server push for this client.
	Unsubscribe(ctx context.Context) error

	// PostCommand sends one bulk command for events of a single system.
	PostCommand(ctx context.Context, req CommandRequest) error
}

// CommandRequest is a bulk event command.
type CommandRequest struct {
	EventIDs        []string         `json:"EventIds"`
	CommandID       string           `json:"CommandId"`
	TreatmentType   string           `json:"TreatmentType,omitempty"`
	ValidationInput *ValidationInput `json:"ValidationInput,omitempty"`
}

// ValidationInput carries the operator credentials some commands require.
type ValidationInput struct {
	Password   string `json:"Password,omitempty"`
	Comments   string `json:"Comments,omitempty"`
	SessionKey string `json:"SessionKey,omitempty"`
}

// CategoryLookup resolves event categories. It is loaded once at startup.
type CategoryLookup interface {
	Category(id int) (*events.Category, bool)
}

// IconLookup resolves the icon of a discipline or sub-discipline.
type IconLookup interface {
	Icon(disciplineID, subDisciplineID int) (string, bool)
}

// Notification is a desktop or toast alert about one event.
type Notification struct {
	EventID      string    `json:"eventId"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Color        string    `json:"color,omitempty"`
	Sound        string    `json:"sound,omitempty"`
	BackToNormal bool      `json:"backToNormal,omitempty"`
	Time         time.Time `json:"time"`
}

// NotificationSink receives alerts. Failures are logged and otherwise
// ignored.
type NotificationSink interface {
	Notify(ctx context.Context, senderID string, n Notification) error
	Cancel(ctx context.Context, senderID, eventID string) error
	CancelAll(ctx context.Context, senderID string) error
}
