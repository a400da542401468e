// Package export renders attendance data as downloadable files: Excel compatible HTML tables, CSV and PDF.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/student"
)

type Format string

const (
	HTML Format = "html"
	CSV  Format = "csv"
	PDF  Format = "pdf"
)

const (
	ColorHeader  = "#3b82f6"
	ColorPresent = "#10b981"
	ColorAbsent  = "#ef4444"

	dateLayout        = "2006-01-02"
	displayDateLayout = "January 2, 2006"
	notAvailable      = "N/A"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w .-]+`)

// ParseFormat returns the Format named by `s`, HTML when `s` is empty.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return HTML, nil
	case HTML, CSV, PDF:
		return f, nil
	default:
		return "", core.NewValidationError(nil, core.FieldError{Field: "format", Error: "format must be one of [html csv pdf]"})
	}
}

func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case PDF:
		return "application/pdf"
	default:
		return "text/html; charset=utf-8"
	}
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

type cell struct {
	Text  string
	Align string
	Fill  string // background colour, white bold text when set
	Empty bool   // written as "" in CSV
}

type column struct {
	Header string
	Width  float64 // share of the PDF table width
}

// table is the format independent shape of an export.
type table struct {
	Title        string
	Lines        []string
	SummaryTitle string
	Summary      []string
	HeaderColor  string
	Columns      []column
	Rows         [][]cell
}

func (t table) Headers() []string {
	hs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		hs[i] = c.Header
	}
	return hs
}

func (t table) render(f Format) ([]byte, error) {
	switch f {
	case CSV:
		return t.csv()
	case PDF:
		return t.pdf()
	default:
		return t.html()
	}
}

func filename(base string, f Format, now time.Time) string {
	base = strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(base, "_"))
	return fmt.Sprintf("%s_%s.%s", base, now.Format(dateLayout), f)
}

func displayDate(date string, now time.Time) string {
	if t, err := time.Parse(dateLayout, date); err == nil {
		return t.Format(displayDateLayout)
	}
	return now.Format(displayDateLayout)
}

// ClassAttendance exports the marks of a class matching `status`. The class is expected to be whole and enriched
// with the roster details: the summary always covers the entire class.
func ClassAttendance(cls attendance.Class, status attendance.Status, f Format, now time.Time) (File, error) {
	st := cls.Stats()
	cls = cls.Filter(status)
	pct := 0.0
	if st.Total > 0 {
		pct = float64(st.Present) / float64(st.Total) * 100
	}

	t := table{
		Title: cls.Subject + " - Class Attendance",
		Lines: []string{
			"Teacher: " + cls.Teacher,
			"Time: " + cls.Time,
			"Room: " + cls.Room,
			"Date: " + displayDate(cls.Date, now),
		},
		SummaryTitle: "Attendance Summary",
		Summary: []string{
			fmt.Sprintf("Present: %d/%d (%.1f%%)", st.Present, st.Total, pct),
			fmt.Sprintf("Absent: %d", st.Absent),
		},
		HeaderColor: ColorHeader,
		Columns: []column{
			{Header: "Student ID", Width: 0.2},
			{Header: "Name", Width: 0.22},
			{Header: "Email", Width: 0.32},
			{Header: "Status", Width: 0.13},
			{Header: "Time", Width: 0.13},
		},
		Rows: make([][]cell, 0, len(cls.Marks)),
	}

	for _, m := range cls.Marks {
		id := m.Enrollment
		if id == "" {
			id = strconv.Itoa(m.StudentID)
		}
		status := cell{Text: "Absent", Align: "center", Fill: ColorAbsent}
		if m.Present {
			status = cell{Text: "Present", Align: "center", Fill: ColorPresent}
		}
		arrival := cell{Text: m.ArrivedAt, Align: "center"}
		if arrival.Text == "" {
			arrival.Text, arrival.Empty = notAvailable, true
		}
		t.Rows = append(t.Rows, []cell{
			{Text: id, Align: "left"},
			{Text: m.Name, Align: "left"},
			{Text: m.Email, Align: "left"},
			status,
			arrival,
		})
	}

	content, err := t.render(f)
	if err != nil {
		return File{}, errors.Wrap(err, "rendering class attendance")
	}
	return File{
		Name:        filename(cls.Subject+"_attendance", f, now),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

// StudentsReport exports the running attendance of every student along with the day's overview.
func StudentsReport(students []student.Student, ov attendance.Overview, f Format, now time.Time) (File, error) {
	t := table{
		Title:        "ClassCue Attendance Report",
		Lines:        []string{"Generated on: " + now.Format(displayDateLayout)},
		SummaryTitle: "Summary Statistics",
		Summary: []string{
			fmt.Sprintf("Total Students: %d", ov.TotalStudents),
			fmt.Sprintf("Present Today: %d", ov.PresentToday),
			fmt.Sprintf("Absent Today: %d", ov.AbsentToday),
			fmt.Sprintf("Average Attendance: %d%%", ov.AverageAttendance),
		},
		HeaderColor: ColorHeader,
		Columns: []column{
			{Header: "Student ID", Width: 0.17},
			{Header: "Name", Width: 0.17},
			{Header: "Email", Width: 0.26},
			{Header: "Total Classes", Width: 0.11},
			{Header: "Present", Width: 0.09},
			{Header: "Absent", Width: 0.09},
			{Header: "Percentage", Width: 0.11},
		},
		Rows: make([][]cell, 0, len(students)),
	}

	for _, s := range students {
		t.Rows = append(t.Rows, []cell{
			{Text: s.StudentID, Align: "left"},
			{Text: s.Name, Align: "left"},
			{Text: s.Email, Align: "left"},
			{Text: strconv.Itoa(s.Attendance.TotalClasses), Align: "center"},
			{Text: strconv.Itoa(s.Attendance.Present), Align: "center", Fill: ColorPresent},
			{Text: strconv.Itoa(s.Attendance.Absent), Align: "center", Fill: ColorAbsent},
			{Text: strconv.FormatFloat(s.Attendance.Percentage, 'f', -1, 64) + "%", Align: "center"},
		})
	}

	content, err := t.render(f)
	if err != nil {
		return File{}, errors.Wrap(err, "rendering students report")
	}
	return File{
		Name:        filename("attendance_report", f, now),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}
