package export

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/student"
)

var now = time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC)

func testClass() attendance.Class {
	return attendance.Class{
		ID:      "2025-01-15-ds",
		Subject: "Data Structures",
		Teacher: "Dr. Meera Rao",
		Time:    "09:00 - 10:00",
		Room:    "A-101",
		Date:    "2025-01-15",
		Marks: []attendance.Mark{
			{StudentID: 1, Name: "Aarav Sharma", Present: true, ArrivedAt: "09:02", Enrollment: "202301000001", Email: "aarav.sharma@classcue.edu"},
			{StudentID: 2, Name: "Diya, Patel", Present: true, ArrivedAt: "09:05", Enrollment: "202301000002"},
			{StudentID: 7, Name: "Kabir Singh"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": HTML, "html": HTML, " CSV ": CSV, "pdf": PDF} {
		f, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, f)
	}

	_, err := ParseFormat("xlsx")
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClassAttendance_csv(t *testing.T) {
	f, err := ClassAttendance(testClass(), attendance.StatusAll, CSV, now)
	require.NoError(t, err)
	assert.Equal(t, "Data Structures_attendance_2025-01-16.csv", f.Name)
	assert.Equal(t, "text/csv; charset=utf-8", f.ContentType)

	recs, err := csv.NewReader(bytes.NewReader(f.Content)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Student ID", "Name", "Email", "Status", "Time"},
		{"202301000001", "Aarav Sharma", "aarav.sharma@classcue.edu", "Present", "09:02"},
		{"202301000002", "Diya, Patel", "", "Present", "09:05"},
		{"7", "Kabir Singh", "", "Absent", ""},
	}, recs)
}

func TestClassAttendance_html(t *testing.T) {
	f, err := ClassAttendance(testClass(), attendance.StatusAll, HTML, now)
	require.NoError(t, err)
	assert.Equal(t, "Data Structures_attendance_2025-01-16.html", f.Name)

	html := string(f.Content)
	assert.Contains(t, html, "<h1>Data Structures - Class Attendance</h1>")
	assert.Contains(t, html, "<p>Date: January 15, 2025</p>")
	assert.Contains(t, html, "<p>Present: 2/3 (66.7%)</p>")
	assert.Contains(t, html, "<p>Absent: 1</p>")
	assert.Contains(t, html, "background-color: #3b82f6")
	assert.Contains(t, html, "background-color: #10b981; color: white; font-weight: bold;\">Present</td>")
	assert.Contains(t, html, "background-color: #ef4444; color: white; font-weight: bold;\">Absent</td>")
	assert.Contains(t, html, ">N/A</td>")
}

func TestClassAttendance_filtered(t *testing.T) {
	f, err := ClassAttendance(testClass(), attendance.StatusPresent, HTML, now)
	require.NoError(t, err)

	html := string(f.Content)
	assert.Contains(t, html, "<p>Present: 2/3 (66.7%)</p>")
	assert.Contains(t, html, "<p>Absent: 1</p>")
	assert.Contains(t, html, "Aarav Sharma")
	assert.NotContains(t, html, "Kabir Singh")

	f, err = ClassAttendance(testClass(), attendance.StatusAbsent, CSV, now)
	require.NoError(t, err)
	recs, err := csv.NewReader(bytes.NewReader(f.Content)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Student ID", "Name", "Email", "Status", "Time"},
		{"7", "Kabir Singh", "", "Absent", ""},
	}, recs)
}

func TestClassAttendance_pdf(t *testing.T) {
	f, err := ClassAttendance(testClass(), attendance.StatusAll, PDF, now)
	require.NoError(t, err)
	assert.Equal(t, "Data Structures_attendance_2025-01-16.pdf", f.Name)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.True(t, bytes.HasPrefix(f.Content, []byte("%PDF-")))

	empty := testClass()
	empty.Marks = nil
	_, err = ClassAttendance(empty, attendance.StatusAll, PDF, now)
	assert.NoError(t, err, "a class without marks still exports")
}

func TestStudentsReport(t *testing.T) {
	students := []student.Student{
		{ID: 1, StudentID: "202301000001", Name: "Aarav Sharma", Email: "aarav.sharma@classcue.edu",
			Attendance: student.Attendance{TotalClasses: 40, Present: 36, Absent: 4, Percentage: 90}},
		{ID: 6, StudentID: "202301000006", Name: "Ishaan Gupta", Email: "ishaan.gupta@classcue.edu",
			Attendance: student.Attendance{TotalClasses: 40, Present: 33, Absent: 7, Percentage: 82.5}},
	}
	ov := attendance.Overview{TotalStudents: 2, PresentToday: 2, AverageAttendance: 86}

	f, err := StudentsReport(students, ov, CSV, now)
	require.NoError(t, err)
	assert.Equal(t, "attendance_report_2025-01-16.csv", f.Name)
	recs, err := csv.NewReader(bytes.NewReader(f.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"Student ID", "Name", "Email", "Total Classes", "Present", "Absent", "Percentage"}, recs[0])
	assert.Equal(t, []string{"202301000006", "Ishaan Gupta", "ishaan.gupta@classcue.edu", "40", "33", "7", "82.5%"}, recs[2])

	f, err = StudentsReport(students, ov, HTML, now)
	require.NoError(t, err)
	assert.Contains(t, string(f.Content), "<p>Generated on: January 16, 2025</p>")
	assert.Contains(t, string(f.Content), "<p>Average Attendance: 86%</p>")

	f, err = StudentsReport(nil, attendance.Overview{}, PDF, now)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(f.Content, []byte("%PDF-")))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "C_C_ _Intro__attendance_2025-01-16.csv", filename(`C/C++ "Intro"_attendance`, CSV, now))
}

func TestHexRGB(t *testing.T) {
	r, g, b := hexRGB("#10b981")
	assert.Equal(t, []int{16, 185, 129}, []int{r, g, b})
	r, g, b = hexRGB("nope")
	assert.Equal(t, []int{0, 0, 0}, []int{r, g, b})
}

func TestQRCodePNG(t *testing.T) {
	content, err := QRCodePNG("classcue://attend?s=abc&t=def", 10)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, minQRSize, img.Bounds().Dx(), "the size is clamped")

	_, err = QRCodePNG(strings.Repeat("x", 5000), 256)
	assert.Error(t, err, "payload too long for a QR code")
}
