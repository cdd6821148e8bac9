// Package notify delivers sprint lifecycle events to chat platforms
// (Slack, Discord). A Watcher polls the store for changes and a Daemon
// formats and dispatches them through a platform Adapter.
package notify

import "context"

// Adapter is the interface platform implementations satisfy. Adapters are
// outbound-only: the notifier posts, it never reads.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Send delivers a message to the platform.
	Send(ctx context.Context, msg Message) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// Message is one outbound post.
type Message struct {
	ChannelID string           // target channel; empty uses the adapter default
	Text      string           // plain text (platform-native formatting)
	Events    []FormattedEvent // structured event attachments
}

// FormattedEvent is a lifecycle event formatted for display in chat.
type FormattedEvent struct {
	Title    string  // headline (e.g. "Sprint Launch week started")
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint (e.g. "#36a64f" for success)
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}
