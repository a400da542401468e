package qrsession

import (
	"fmt"
	"time"
)

type State string

const (
	StateActive State = "active"
	StateEnded  State = "ended"
)

type Attendee struct {
	StudentID int       `json:"student_id"`
	Name      string    `json:"name"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Session is a snapshot of an attendance session.
type Session struct {
	ID              string     `json:"id"`
	ClassID         string     `json:"class_id"`
	FacultyID       string     `json:"faculty_id"`
	State           State      `json:"state"`
	StartedAt       time.Time  `json:"started_at"`
	Deadline        time.Time  `json:"deadline"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	RotationSeconds int        `json:"rotation_seconds"` // 0: static code
	TimedOut        bool       `json:"timed_out"`
	Attendees       []Attendee `json:"attendees"`
}

func (s Session) Active() bool {
	return s.State == StateActive
}

// Elapsed returns how long the session ran, or has been running at `now`.
func (s Session) Elapsed(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// Remaining returns the time left before the session times out.
func (s Session) Remaining(now time.Time) time.Duration {
	if !s.Active() || !now.Before(s.Deadline) {
		return 0
	}
	return s.Deadline.Sub(now)
}

func (s Session) Summary() Summary {
	var elapsed time.Duration
	if s.EndedAt != nil {
		elapsed = s.Elapsed(*s.EndedAt)
	}
	secs := int(elapsed / time.Second)
	return Summary{
		SessionID:     s.ID,
		ClassID:       s.ClassID,
		Duration:      secs,
		AttendedCount: len(s.Attendees),
		TimedOut:      s.TimedOut,
		Message:       "Duration: " + FormatDuration(secs),
	}
}

// Summary is what a session amounts to once ended.
type Summary struct {
	SessionID     string `json:"session_id"`
	ClassID       string `json:"class_id"`
	Duration      int    `json:"duration"` // seconds
	AttendedCount int    `json:"attended_count"`
	TimedOut      bool   `json:"timed_out"`
	Message       string `json:"message"`
}

// Code is the QR code payload currently shown by a session.
type Code struct {
	SessionID string `json:"session_id"`
	Payload   string `json:"payload"`
	Window    int64  `json:"window"`
	// ExpiresAt is when the code rotates, nil for a static code.
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"` // before the session times out
}

type EventType string

const (
	EventScan   EventType = "scan"
	EventRotate EventType = "rotate"
	EventEnd    EventType = "end"
)

// Event is published to the subscribers of a session.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Attendee  *Attendee `json:"attendee,omitempty"`
	Code      *Code     `json:"code,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
}

type StartRequest struct {
	ClassID   string
	FacultyID string
	// Duration defaults to the manager's duration when zero.
	Duration time.Duration
	// Rotation defaults to the manager's rotation when nil; 0 means a static code.
	Rotation *time.Duration
	// Roster lists the students allowed to scan. An empty roster lets any student in.
	Roster []int
}

// FormatDuration formats seconds as "m:ss".
func FormatDuration(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
