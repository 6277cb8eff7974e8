package downloader

import "time"

// Event is a lifecycle notification or progress sample from a session.
//
// Progress is set for EventProgress only. Err is set for EventError when
// the engine supplied a cause.
type Event struct {
	Type     EventType
	Progress *Progress
	Err      error
	At       time.Time
}

// EventType defines the set of events a session emits.
type EventType string

const (
	EventStarted          EventType = "Started"
	EventPaused           EventType = "Paused"
	EventStopped          EventType = "Stopped"
	EventDownloadComplete EventType = "DownloadComplete"
	EventSeedingComplete  EventType = "SeedingComplete"
	EventError            EventType = "Error"
	EventProgress         EventType = "Progress"
)

// Terminal reports whether the event ends the transfer.
func (t EventType) Terminal() bool {
	return t == EventSeedingComplete || t == EventError
}

// Progress is a point-in-time sample of a transfer.
type Progress struct {
	Completed int64
	Total     int64
	// DownloadRate and UploadRate are bytes/sec; 0 when unknown.
	DownloadRate int64
	UploadRate   int64
}

// Done reports whether all known bytes have been fetched.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Completed >= p.Total
}
