package watcher

import "time"

// EventType represents the type of library change.
type EventType int

const (
	// EventAdded is emitted when a database file appears (after settling).
	EventAdded EventType = iota
	// EventModified is emitted when a known database file changes (after settling).
	EventModified
	// EventRemoved is emitted when a database file is deleted.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event reports a settled change to a library database file.
type Event struct {
	ModTime time.Time
	// Path is the database file that changed.
	Path string
	// Library is the directory holding the database.
	Library string
	Size    int64
	Type    EventType
}
