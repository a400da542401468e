package attendance

import (
	"strings"

	"github.com/trezcool/classcue/core/student"
)

// DateLayout is the layout of class dates.
const DateLayout = "2006-01-02"

// Status filters the marks of a class.
type Status string

const (
	StatusAll     Status = "all"
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// ParseStatus returns the Status named by `s`. Anything unknown means StatusAll.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPresent:
		return StatusPresent
	case StatusAbsent:
		return StatusAbsent
	default:
		return StatusAll
	}
}

func (st Status) Match(m Mark) bool {
	switch st {
	case StatusPresent:
		return m.Present
	case StatusAbsent:
		return !m.Present
	default:
		return true
	}
}

// Mark is the attendance of one student in one class.
type Mark struct {
	StudentID int    `json:"id"`
	Name      string `json:"name"`
	Present   bool   `json:"present"`
	ArrivedAt string `json:"time,omitempty"` // "HH:MM", empty when absent

	// roster details, filled when the mark is enriched
	Enrollment string `json:"student_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// Class is one class held on a given day, with the marks of its roster.
type Class struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Time    string `json:"time"` // "HH:MM - HH:MM"
	Room    string `json:"room"`
	Date    string `json:"date"` // YYYY-MM-DD
	Marks   []Mark `json:"students"`
}

type Stats struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

func (c Class) Stats() Stats {
	var st Stats
	for _, m := range c.Marks {
		if m.Present {
			st.Present++
		} else {
			st.Absent++
		}
	}
	st.Total = len(c.Marks)
	st.Percentage = RoundPercent(st.Present, st.Total)
	return st
}

// Roster returns the IDs of the students expected in the class.
func (c Class) Roster() []int {
	ids := make([]int, 0, len(c.Marks))
	for _, m := range c.Marks {
		ids = append(ids, m.StudentID)
	}
	return ids
}

// Filter returns a copy of the class keeping only the marks matching `status`.
func (c Class) Filter(status Status) Class {
	marks := make([]Mark, 0, len(c.Marks))
	for _, m := range c.Marks {
		if status.Match(m) {
			marks = append(marks, m)
		}
	}
	c.Marks = marks
	return c
}

// Enrich copies the roster details (enrollment number, email) into the marks. Unknown students keep empty details.
func (c Class) Enrich(roster map[int]student.Student) Class {
	marks := make([]Mark, len(c.Marks))
	for i, m := range c.Marks {
		if s, ok := roster[m.StudentID]; ok {
			m.Enrollment = s.StudentID
			m.Email = s.Email
		}
		marks[i] = m
	}
	c.Marks = marks
	return c
}

// ClassSummary is a class without its marks.
type ClassSummary struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Time    string `json:"time"`
	Room    string `json:"room"`
	Date    string `json:"date"`
	Stats
}

func (c Class) Summary() ClassSummary {
	return ClassSummary{
		ID:      c.ID,
		Subject: c.Subject,
		Teacher: c.Teacher,
		Time:    c.Time,
		Room:    c.Room,
		Date:    c.Date,
		Stats:   c.Stats(),
	}
}

// ClassDetail is a class as shown on the attendance view: enriched and filtered marks plus the stats of the whole class.
type ClassDetail struct {
	Class
	Stats  Stats  `json:"stats"`
	Filter Status `json:"filter"`
}

// Day is the attendance of every class held on Date.
type Day struct {
	Date    string         `json:"date"`
	Classes []ClassSummary `json:"classes"`
}

// StudentDay is the attendance of one student over the classes of a day.
type StudentDay struct {
	Date       string `json:"date"`
	Attended   int    `json:"attended"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// Overview sums up the attendance of a day for the faculty dashboard.
type Overview struct {
	Date              string             `json:"date"`
	TotalStudents     int                `json:"total_students"`
	PresentToday      int                `json:"present_today"`
	AbsentToday       int                `json:"absent_today"`
	AverageAttendance int                `json:"average_attendance"`
	Classes           []ClassSummary     `json:"classes"`
	WeeklySummary     map[string]float64 `json:"weekly_summary,omitempty"`
}

// Arrival is a student recorded present by an attendance session.
type Arrival struct {
	StudentID int
	Name      string
	Time      string // "HH:MM"
}

// RoundPercent returns round(part/total*100), 0 when total is 0.
func RoundPercent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (part*200 + total) / (total * 2)
}
