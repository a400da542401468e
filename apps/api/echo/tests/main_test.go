package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/classcue/apps/api/echo"
	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/qrsession"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/user"
	"github.com/trezcool/classcue/services/email"
	"github.com/trezcool/classcue/services/logger"
	"github.com/trezcool/classcue/storage/database/sqlxrepos"
	"github.com/trezcool/classcue/storage/fixtures"
	"github.com/trezcool/classcue/testutil"
)

const pwd = "Attend4nce!"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	conf        *core.Config
	db          *sqlx.DB
	app         *Server
	clock       *fakeClock
	data        *fixtures.Data
	usrRepo     user.Repository
	studentRepo student.Repository
	attRepo     attendance.Repository
	sessions    *qrsession.Manager

	admin   user.User
	faculty user.User
	student user.User // Aarav Sharma, student 1
}

// setup serves the embedded fixtures on a fresh database, on Wednesday 2025-01-15 at 09:30 UTC.
func setup(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	conf := core.NewTestConfig()
	lgr := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(lgr, true /* strict */)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	env := &testEnv{
		conf:        conf,
		db:          db,
		clock:       &fakeClock{now: time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)},
		usrRepo:     sqlxrepos.NewUserRepository(db),
		studentRepo: sqlxrepos.NewStudentRepository(db),
		attRepo:     sqlxrepos.NewAttendanceRepository(db),
	}

	fsys, err := fixtures.Source("")
	require.NoError(t, err)
	env.data, err = fixtures.Load(ctx, fsys, lgr)
	require.NoError(t, err)
	_, err = fixtures.Import(ctx, db, env.studentRepo, env.attRepo, env.data)
	require.NoError(t, err)
	store := fixtures.NewStaticStore(env.data)

	// set up validator
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, lgr)
	emailsvc.ResetSentMessages()
	usrSvc := user.NewServiceMock(db, env.usrRepo, mailSvc, conf)
	studentSvc := student.NewService(env.studentRepo)
	attSvc := attendance.NewService(db, env.attRepo, env.studentRepo, store.Weekly)
	recorder := qrsession.NewRecorder(db, attSvc, sqlxrepos.NewSessionRepository(db), lgr)
	env.sessions = qrsession.NewManager(qrsession.Options{
		Duration:    conf.Attendance.SessionDuration,
		MaxDuration: conf.Attendance.MaxSessionDuration,
		Rotation:    conf.Attendance.QRRotationInterval,
		Secret:      conf.SecretKey,
		Clock:       env.clock,
		Logger:      lgr,
		RetainFor:   conf.Attendance.SessionRetention,
		OnEnd:       recorder.OnEnd,
	})

	// set up server
	env.app = NewServer(conf, lgr, &Deps{
		Validate:      validate,
		Translator:    translator,
		MailSvc:       mailSvc,
		UserSvc:       usrSvc,
		StudentSvc:    studentSvc,
		AttendanceSvc: attSvc,
		Sessions:      env.sessions,
		Recorder:      recorder,
		Fixtures:      store,
		Clock:         env.clock,
	})
	t.Cleanup(func() { env.sessions.StopAll(context.Background()) })

	env.admin = testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@classcue.edu", pwd, []string{user.RoleAdmin}, true)
	env.faculty = testutil.CreateUser(t, env.usrRepo, "Meera Rao", "", "meera.rao@classcue.edu", pwd, []string{user.RoleFaculty}, true)
	env.student = testutil.CreateUser(t, env.usrRepo, "Aarav Sharma", "202301000001", "aarav.sharma@classcue.edu", pwd, []string{user.RoleStudent}, true)
	return env
}

func (env *testEnv) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr, false /* remember */))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, env.do(req, rec))
		})
	}
}
