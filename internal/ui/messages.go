package ui

// SessionUpdatedMsg is sent when a session call returns. Refresh asks the
// page view to reload blocks after an insertion.
type SessionUpdatedMsg struct {
	SessionID string
	Action    string
	Err       error
	Skipped   bool
	Refresh   bool
}

type ClipboardMsg struct {
	Text string
	Err  error
}
