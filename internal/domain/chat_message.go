package domain

import "time"

// ChatMessage is a single entry of a room's history. Rows are never hard-deleted.
type ChatMessage struct {
	ID         string
	ChatRoomID string
	SenderID   string
	SenderRole PartyRole
	Content    string
	SentAt     time.Time
	Read       bool
	Edited     bool
	Deleted    bool
	IsPinned   bool
	UpdatedAt  time.Time
}

// WithinWindow reports whether now - SentAt <= window.
func (m *ChatMessage) WithinWindow(now time.Time, window time.Duration) bool {
	return !now.After(m.SentAt.Add(window))
}

// WindowCutoff returns the earliest SentAt still editable at now.
func WindowCutoff(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}
