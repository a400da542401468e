package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/classcue/apps/api/echo"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/timetable"
	"github.com/trezcool/classcue/core/user"
	"github.com/trezcool/classcue/services/email"
	"github.com/trezcool/classcue/testutil"
)

func Test_studentApi_dashboard(t *testing.T) {
	env := setup(t)

	runHTTPTests(t, env, []httpTest{
		{name: "auth required", path: "/v1/students/me/dashboard", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "students only", path: "/v1/students/me/dashboard", token: getToken(t, env.conf, env.faculty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/students/me/dashboard", getToken(t, env.conf, env.student))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dash echoapi.StudentDashboard
	unmarshal(t, rec, &dash)
	assert.Equal(t, "Good Morning", dash.Greeting)
	assert.Equal(t, "Aarav", dash.Name)
	assert.Equal(t, 1, dash.Student.ID)
	assert.Equal(t, 90.0, dash.Student.Attendance.Percentage)
	assert.False(t, dash.ProfileComplete)
	assert.Equal(t, attendance.StudentDay{Date: "2025-01-15", Attended: 2, Total: 3, Percentage: 67}, dash.Attendance)

	today := dash.Today
	assert.Equal(t, "wednesday", today.Day)
	assert.Len(t, today.Schedule, 3)
	require.NotNil(t, today.CurrentClass)
	assert.Equal(t, "Data Structures", today.CurrentClass.Subject)
	require.NotNil(t, today.NextClass)
	assert.Equal(t, "Database Systems", today.NextClass.Subject)
	assert.Equal(t, timetable.NextToday, today.NextClassDay)
	assert.Equal(t, []timetable.FreePeriod{{Start: "11:15", End: "13:00", Duration: 105}}, today.FreePeriods)
}

func Test_studentApi_dashboardWithoutRecord(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "New Student", "202301000099", "", pwd, []string{user.RoleStudent}, true)

	runHTTPTests(t, env, []httpTest{
		{
			name: "no student record", path: "/v1/students/me/dashboard", token: getToken(t, env.conf, usr),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
		{name: "deleted account", path: "/v1/students/me", token: getToken(t, env.conf, user.User{
			ID: "0b6a2b8e-1111-4444-8888-000000000000", Roles: []string{user.RoleStudent},
		}), wantCode: http.StatusUnauthorized},
	})
}

func Test_studentApi_profile(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.student)

	runHTTPTests(t, env, []httpTest{
		{
			name: "missing answers", method: http.MethodPut, path: "/v1/students/me/profile", token: token,
			body: []byte(`{"interests": ["ai"]}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"skills": "this field is required", "goals": "this field is required"}),
		},
		{
			name: "unknown answer", method: http.MethodPut, path: "/v1/students/me/profile", token: token,
			body:     []byte(`{"interests": ["ai"], "skills": ["cobol"], "goals": ["internship"]}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"skills[0]": "unknown skill"}),
		},
		{
			name: "students only", method: http.MethodPut, path: "/v1/students/me/profile", token: getToken(t, env.conf, env.faculty),
			body: []byte(`{}`), wantCode: http.StatusForbidden,
		},
	})

	req, rec := newAuthRequest(http.MethodPut, "/v1/students/me/profile", token,
		[]byte(`{"interests": ["AI", "ml", "ai"], "skills": ["go", "python"], "goals": ["internship"]}`))
	env.do(req, rec)
	// "go" is not in the catalogue
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req, rec = newAuthRequest(http.MethodPut, "/v1/students/me/profile", token,
		[]byte(`{"interests": ["AI", "ml", "ai"], "skills": ["python"], "goals": ["internship"]}`))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.StudentResponse
	unmarshal(t, rec, &resp)
	assert.True(t, resp.ProfileComplete)
	assert.Equal(t, []string{"ai", "ml"}, resp.Profile.Interests)

	req, rec = newAuthRequest(http.MethodGet, "/v1/students/me", token)
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &resp)
	assert.True(t, resp.ProfileComplete)
	assert.Equal(t, []string{"python"}, resp.Profile.Skills)
}

func Test_studentApi_roster(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.faculty)

	runHTTPTests(t, env, []httpTest{
		{name: "faculty only", path: "/v1/students", token: getToken(t, env.conf, env.student), wantCode: http.StatusForbidden},
		{name: "unknown", path: "/v1/students/99", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"})},
		{name: "not a number", path: "/v1/students/kabir", token: token, wantCode: http.StatusNotFound},
	})

	query := func(t *testing.T, path string) []student.Student {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		env.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []student.Student
		unmarshal(t, rec, &students)
		return students
	}

	assert.Len(t, query(t, "/v1/students"), 6)

	found := query(t, "/v1/students?search=KABIR")
	require.Len(t, found, 1)
	assert.Equal(t, "202301000003", found[0].StudentID)

	assert.Empty(t, query(t, "/v1/students?search=nobody"))

	req, rec := newAuthRequest(http.MethodGet, "/v1/students/3", getToken(t, env.conf, env.admin))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var st student.Student
	unmarshal(t, rec, &st)
	assert.Equal(t, "Kabir Singh", st.Name)
	assert.Equal(t, student.Attendance{TotalClasses: 40, Present: 28, Absent: 12, Percentage: 70}, st.Attendance)
}

func Test_facultyApi_dashboard(t *testing.T) {
	env := setup(t)

	runHTTPTests(t, env, []httpTest{
		{name: "faculty only", path: "/v1/faculty/dashboard", token: getToken(t, env.conf, env.student), wantCode: http.StatusForbidden},
		{
			name: "invalid date", path: "/v1/faculty/dashboard?date=15/01/2025", token: getToken(t, env.conf, env.faculty),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"date": "date must be a YYYY-MM-DD date"}),
		},
	})

	for _, usr := range []struct {
		name, token, greet string
	}{
		{"faculty", getToken(t, env.conf, env.faculty), "Meera"},
		{"admin", getToken(t, env.conf, env.admin), "Admin"},
	} {
		t.Run(usr.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/faculty/dashboard", usr.token)
			env.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var dash echoapi.FacultyDashboard
			unmarshal(t, rec, &dash)
			assert.Equal(t, "Good Morning", dash.Greeting)
			assert.Equal(t, usr.greet, dash.Name)
			assert.Equal(t, "2025-01-15", dash.Date)
			assert.Equal(t, 6, dash.TotalStudents)
			assert.Equal(t, 6, dash.PresentToday)
			assert.Equal(t, 4, dash.AbsentToday)
			assert.Equal(t, 83, dash.AverageAttendance)
			assert.Equal(t, 88.0, dash.WeeklySummary["monday"])

			require.Len(t, dash.Classes, 3)
			pcts := map[string]int{}
			for _, c := range dash.Classes {
				pcts[c.ID] = c.Percentage
			}
			assert.Equal(t, map[string]int{"ds": 67, "dbms": 83, "os": 67}, pcts)
		})
	}

	// no classes on that day
	req, rec := newAuthRequest(http.MethodGet, "/v1/faculty/dashboard?date=2025-01-16", getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash echoapi.FacultyDashboard
	unmarshal(t, rec, &dash)
	assert.Empty(t, dash.Classes)
	assert.Equal(t, 0, dash.PresentToday)
	assert.Equal(t, 6, dash.TotalStudents)
}

func Test_facultyApi_classes(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.faculty)

	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/classes", token)
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var day attendance.Day
	unmarshal(t, rec, &day)
	assert.Equal(t, "2025-01-15", day.Date)
	require.Len(t, day.Classes, 3)
	assert.Equal(t, "ds", day.Classes[0].ID)
	assert.Equal(t, attendance.Stats{Present: 4, Absent: 2, Total: 6, Percentage: 67}, day.Classes[0].Stats)

	runHTTPTests(t, env, []httpTest{
		{name: "students cannot see classes", path: "/v1/attendance/classes", token: getToken(t, env.conf, env.student), wantCode: http.StatusForbidden},
		{name: "unknown class", path: "/v1/attendance/classes/maths", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "class not found"})},
	})
}

func Test_facultyApi_class(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.faculty)

	class := func(t *testing.T, query string) attendance.ClassDetail {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/classes/ds"+query, token)
		env.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var detail attendance.ClassDetail
		unmarshal(t, rec, &detail)
		return detail
	}
	ids := func(marks []attendance.Mark) []int {
		res := make([]int, 0, len(marks))
		for _, m := range marks {
			res = append(res, m.StudentID)
		}
		return res
	}

	all := class(t, "")
	assert.Equal(t, attendance.StatusAll, all.Filter)
	assert.Equal(t, "Data Structures", all.Subject)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, ids(all.Marks))
	assert.Equal(t, "202301000001", all.Marks[0].Enrollment)
	assert.Equal(t, "aarav.sharma@classcue.edu", all.Marks[0].Email)
	assert.Equal(t, "09:02", all.Marks[0].ArrivedAt)

	absent := class(t, "?status=absent")
	assert.Equal(t, attendance.StatusAbsent, absent.Filter)
	assert.Equal(t, []int{3, 5}, ids(absent.Marks))
	// the stats always cover the whole class
	assert.Equal(t, attendance.Stats{Present: 4, Absent: 2, Total: 6, Percentage: 67}, absent.Stats)

	present := class(t, "?status=PRESENT")
	assert.Equal(t, []int{1, 2, 4, 6}, ids(present.Marks))

	assert.Equal(t, attendance.StatusAll, class(t, "?status=late").Filter)
}

func Test_facultyApi_exportClass(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.faculty)

	tests := []struct {
		query, contentType, filename string
	}{
		{"", "text/html; charset=utf-8", "Data Structures_attendance_2025-01-15.html"},
		{"?format=csv", "text/csv; charset=utf-8", "Data Structures_attendance_2025-01-15.csv"},
		{"?format=PDF", "application/pdf", "Data Structures_attendance_2025-01-15.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/classes/ds/export"+tt.query, token)
			env.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, `attachment; filename="`+tt.filename+`"`, rec.Header().Get("Content-Disposition"))
			assert.NotZero(t, rec.Body.Len())
		})
	}

	t.Run("csv honours the status filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/classes/ds/export?format=csv&status=absent", token)
		env.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Kabir Singh")
		assert.Contains(t, body, "Rohan Mehta")
		assert.NotContains(t, body, "Aarav Sharma")
	})

	t.Run("filtered export keeps the whole class summary", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/classes/ds/export?status=present", token)
		env.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "<p>Present: 4/6 (66.7%)</p>")
		assert.Contains(t, body, "<p>Absent: 2</p>")
		assert.Contains(t, body, "Aarav Sharma")
		assert.NotContains(t, body, "Kabir Singh")
	})

	runHTTPTests(t, env, []httpTest{
		{
			name: "invalid format", path: "/v1/attendance/classes/ds/export?format=xlsx", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"format": "format must be one of [html csv pdf]"}),
		},
		{name: "unknown class", path: "/v1/attendance/classes/maths/export", token: token, wantCode: http.StatusNotFound},
	})
}

func Test_facultyApi_emailClass(t *testing.T) {
	env := setup(t)

	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/classes/dbms/export/email", getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	msg, sent := emailsvc.LastSentMessage(env.faculty.Email)
	require.True(t, sent)
	assert.Equal(t, "Database Systems attendance (2025-01-15)", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "Database Systems_attendance_2025-01-15.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)

	noEmail := testutil.CreateUser(t, env.usrRepo, "Root", "root_admin", "", pwd, []string{user.RoleAdmin}, true)
	req, rec = newAuthRequest(http.MethodPost, "/v1/attendance/classes/dbms/export/email", getToken(t, env.conf, noEmail))
	env.do(req, rec)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"email": "your account has no email address"}),
	}, rec)
}

func Test_facultyApi_exportReport(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.faculty)

	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/report?format=csv", token)
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="attendance_report_2025-01-15.csv"`, rec.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	var rows int
	for _, l := range lines {
		if strings.Contains(l, "20230100000") {
			rows++
		}
	}
	assert.Equal(t, 6, rows)

	runHTTPTests(t, env, []httpTest{
		{name: "students cannot export", path: "/v1/attendance/report", token: getToken(t, env.conf, env.student), wantCode: http.StatusForbidden},
		{name: "html by default", path: "/v1/attendance/report", token: token, wantCode: http.StatusOK},
	})
}
