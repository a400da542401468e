package tests

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/classcue/apps/api/echo"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/qrsession"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/user"
	"github.com/trezcool/classcue/storage/database/sqlxrepos"
	"github.com/trezcool/classcue/testutil"
)

// startSession starts a session for `classID` as the faculty member.
func startSession(t *testing.T, env *testEnv, classID string) echoapi.SessionResponse {
	t.Helper()
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sessions", getToken(t, env.conf, env.faculty),
		marchallObj(t, map[string]interface{}{"class_id": classID}))
	env.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp echoapi.SessionResponse
	unmarshal(t, rec, &resp)
	require.NotNil(t, resp.Code)
	return resp
}

func scan(t *testing.T, env *testEnv, usr user.User, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", getToken(t, env.conf, usr),
		marchallObj(t, echoapi.ScanRequest{Payload: payload}))
	return env.do(req, rec)
}

func Test_sessionApi_start(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.faculty)

	sess := startSession(t, env, " ds ")
	assert.Equal(t, "ds", sess.ClassID)
	assert.Equal(t, env.faculty.ID, sess.FacultyID)
	assert.Equal(t, qrsession.StateActive, sess.State)
	assert.True(t, env.clock.Now().Add(10*time.Minute).Equal(sess.Deadline))
	assert.Equal(t, 30, sess.RotationSeconds)
	assert.Empty(t, sess.Attendees)
	assert.Equal(t, int64(0), sess.Code.Window)
	assert.Equal(t, 600, sess.Code.RemainingSeconds)

	runHTTPTests(t, env, []httpTest{
		{
			name: "students cannot start sessions", method: http.MethodPost, path: "/v1/attendance/sessions",
			token: getToken(t, env.conf, env.student), body: []byte(`{"class_id": "dbms"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "class required", method: http.MethodPost, path: "/v1/attendance/sessions", token: token,
			body: []byte(`{"class_id": "  "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"class_id": "this field is required"}),
		},
		{
			name: "unknown class", method: http.MethodPost, path: "/v1/attendance/sessions", token: token,
			body: []byte(`{"class_id": "maths"}`), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "class not found"}),
		},
		{
			name: "one session per class", method: http.MethodPost, path: "/v1/attendance/sessions", token: token,
			body: []byte(`{"class_id": "ds"}`), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "an attendance session is already running for this class"}),
		},
		{
			name: "too long", method: http.MethodPost, path: "/v1/attendance/sessions", token: token,
			body: []byte(`{"class_id": "dbms", "duration": 7200}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"duration": "duration must be positive and at most 1h0m0s"}),
		},
		{
			name: "negative rotation", method: http.MethodPost, path: "/v1/attendance/sessions", token: token,
			body: []byte(`{"class_id": "dbms", "rotation": -5}`), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("static code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sessions", token, []byte(`{"class_id": "os", "duration": 120, "rotation": 0}`))
		env.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp echoapi.SessionResponse
		unmarshal(t, rec, &resp)
		assert.Equal(t, 0, resp.RotationSeconds)
		assert.Nil(t, resp.Code.ExpiresAt)
		assert.Equal(t, 120, resp.Code.RemainingSeconds)
	})
}

func Test_sessionApi_visibility(t *testing.T) {
	env := setup(t)
	sess := startSession(t, env, "ds")
	other := testutil.CreateUser(t, env.usrRepo, "Arjun Nair", "", "arjun.nair@classcue.edu", pwd, []string{user.RoleFaculty}, true)
	otherToken := getToken(t, env.conf, other)

	runHTTPTests(t, env, []httpTest{
		{name: "owner", path: "/v1/attendance/sessions/" + sess.ID, token: getToken(t, env.conf, env.faculty), wantCode: http.StatusOK},
		{name: "admin", path: "/v1/attendance/sessions/" + sess.ID, token: getToken(t, env.conf, env.admin), wantCode: http.StatusOK},
		{
			name: "other faculty", path: "/v1/attendance/sessions/" + sess.ID, token: otherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "attendance session not found"}),
		},
		{name: "other faculty cannot stop", method: http.MethodPost, path: "/v1/attendance/sessions/" + sess.ID + "/stop", token: otherToken, wantCode: http.StatusNotFound},
		{name: "unknown", path: "/v1/attendance/sessions/nope", token: getToken(t, env.conf, env.admin), wantCode: http.StatusNotFound},
	})

	active := func(t *testing.T, token string) []qrsession.Session {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/sessions", token)
		env.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var sessions []qrsession.Session
		unmarshal(t, rec, &sessions)
		return sessions
	}
	assert.Len(t, active(t, getToken(t, env.conf, env.faculty)), 1)
	assert.Len(t, active(t, getToken(t, env.conf, env.admin)), 1)
	assert.Empty(t, active(t, otherToken))
}

func Test_sessionApi_scanAndStop(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	kabir := testutil.CreateUser(t, env.usrRepo, "Kabir Singh", "202301000003", "", pwd, []string{user.RoleStudent}, true)

	// a student who does not belong to the class
	require.NoError(t, env.studentRepo.SaveStudents(ctx, []student.Student{{
		ID: 7, StudentID: "202301000007", Name: "Neel Kapoor", Email: "neel.kapoor@classcue.edu",
	}}))
	neel := testutil.CreateUser(t, env.usrRepo, "Neel Kapoor", "202301000007", "", pwd, []string{user.RoleStudent}, true)

	sess := startSession(t, env, "ds")
	payload := sess.Code.Payload

	env.clock.Advance(45 * time.Second)

	// code of the previous window is still accepted
	rec := scan(t, env, kabir, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var att qrsession.Attendee
	unmarshal(t, rec, &att)
	assert.Equal(t, 3, att.StudentID)
	assert.Equal(t, "Kabir Singh", att.Name)

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "attendance already recorded for this session"}),
	}, scan(t, env, kabir, payload))

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"student": "student is not enrolled in this class"}),
	}, scan(t, env, neel, payload))

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"payload": "invalid QR code"}),
	}, scan(t, env, env.student, "hello"))

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
	}, scan(t, env, env.faculty, payload))

	// the code is 2 windows old now
	env.clock.Advance(20 * time.Second)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"payload": "QR code expired, scan the new one"}),
	}, scan(t, env, env.student, payload))

	// the current code works
	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/sessions/"+sess.ID+"/code", getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var code qrsession.Code
	unmarshal(t, rec, &code)
	assert.Equal(t, int64(2), code.Window)
	assert.NotEqual(t, payload, code.Payload)
	require.Equal(t, http.StatusCreated, scan(t, env, env.student, code.Payload).Code)

	// stop
	req, rec = newAuthRequest(http.MethodPost, "/v1/attendance/sessions/"+sess.ID+"/stop", getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum qrsession.Summary
	unmarshal(t, rec, &sum)
	assert.Equal(t, qrsession.Summary{
		SessionID: sess.ID, ClassID: "ds", Duration: 65, AttendedCount: 2, Message: "Duration: 1:05",
	}, sum)

	// Kabir was absent: moved over to present
	ds, err := env.attRepo.GetClass(ctx, "ds")
	require.NoError(t, err)
	for _, m := range ds.Marks {
		switch m.StudentID {
		case 3:
			assert.True(t, m.Present)
			assert.Equal(t, "09:30", m.ArrivedAt)
		case 1:
			assert.Equal(t, "09:02", m.ArrivedAt) // already present
		}
	}
	st, err := env.studentRepo.GetStudent(ctx, student.GetFilter{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, student.Attendance{TotalClasses: 40, Present: 29, Absent: 11, Percentage: 72.5}, st.Attendance)

	runHTTPTests(t, env, []httpTest{
		{
			name: "scan after stop", method: http.MethodPost, path: "/v1/attendance/scan", token: getToken(t, env.conf, env.student),
			body: marchallObj(t, echoapi.ScanRequest{Payload: code.Payload}), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "attendance session has ended"}),
		},
		{
			name: "stop twice", method: http.MethodPost, path: "/v1/attendance/sessions/" + sess.ID + "/stop",
			token: getToken(t, env.conf, env.faculty), wantCode: http.StatusConflict,
		},
		{
			name: "no code once ended", path: "/v1/attendance/sessions/" + sess.ID + "/code",
			token: getToken(t, env.conf, env.faculty), wantCode: http.StatusConflict,
		},
	})

	// history
	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/classes/ds/sessions", getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []qrsession.Record
	unmarshal(t, rec, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, sess.ID, recs[0].ID)
	assert.Equal(t, 2, recs[0].AttendedCount)
	assert.Equal(t, 65, recs[0].DurationSeconds)
	assert.False(t, recs[0].TimedOut)

	// the class view shows the new mark
	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/classes/ds?status=absent", getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var cls attendance.ClassDetail
	unmarshal(t, rec, &cls)
	require.Len(t, cls.Marks, 1)
	assert.Equal(t, 5, cls.Marks[0].StudentID)
	assert.Equal(t, 83, cls.Stats.Percentage)
}

func Test_sessionApi_timeout(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	sess := startSession(t, env, "os")
	require.Equal(t, http.StatusCreated, scan(t, env, env.student, sess.Code.Payload).Code)

	env.clock.Advance(10*time.Minute + time.Second)
	env.sessions.Tick(ctx)

	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/sessions/"+sess.ID, getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp echoapi.SessionResponse
	unmarshal(t, rec, &resp)
	assert.Equal(t, qrsession.StateEnded, resp.State)
	assert.True(t, resp.TimedOut)
	assert.Nil(t, resp.Code)
	require.NotNil(t, resp.EndedAt)
	assert.True(t, sess.Deadline.Equal(*resp.EndedAt))

	recs, err := sqlxrepos.NewSessionRepository(env.db).QuerySessions(ctx, "os")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].TimedOut)
	assert.Equal(t, 600, recs[0].DurationSeconds)

	// Aarav was absent from os
	st, err := env.studentRepo.GetStudent(ctx, student.GetFilter{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, 37, st.Attendance.Present)
	assert.Equal(t, 3, st.Attendance.Absent)

	// a new session can be started
	startSession(t, env, "os")
}

func Test_sessionApi_qrImage(t *testing.T) {
	env := setup(t)
	sess := startSession(t, env, "dbms")

	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/sessions/"+sess.ID+"/qr.png", getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func Test_sessionApi_live(t *testing.T) {
	env := setup(t)
	srv := httptest.NewServer(env.app)
	defer srv.Close()

	sess := startSession(t, env, "ds")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/attendance/sessions/" + sess.ID + "/live"

	t.Run("token required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("students cannot watch", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+getToken(t, env.conf, env.student), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+getToken(t, env.conf, env.faculty), nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot echoapi.LiveSnapshot
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "snapshot", snapshot.Type)
	assert.Equal(t, sess.ID, snapshot.Session.ID)
	require.NotNil(t, snapshot.Code)
	assert.Equal(t, sess.Code.Payload, snapshot.Code.Payload)

	require.Equal(t, http.StatusCreated, scan(t, env, env.student, sess.Code.Payload).Code)

	var evt qrsession.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, qrsession.EventScan, evt.Type)
	require.NotNil(t, evt.Attendee)
	assert.Equal(t, 1, evt.Attendee.StudentID)

	env.clock.Advance(31 * time.Second)
	env.sessions.Tick(context.Background())
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, qrsession.EventRotate, evt.Type)
	require.NotNil(t, evt.Code)
	assert.Equal(t, int64(1), evt.Code.Window)

	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sessions/"+sess.ID+"/stop", getToken(t, env.conf, env.faculty))
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, qrsession.EventEnd, evt.Type)
	require.NotNil(t, evt.Summary)
	assert.Equal(t, 1, evt.Summary.AttendedCount)

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())

	// ended sessions cannot be watched
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+getToken(t, env.conf, env.faculty), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
