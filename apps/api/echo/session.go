package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/export"
	"github.com/trezcool/classcue/core/qrsession"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/user"
)

const (
	liveWriteWait    = 10 * time.Second
	livePingInterval = 30 * time.Second
)

type sessionApi struct {
	conf       *core.Config
	logger     core.Logger
	usrSvc     user.ServiceInterface
	students   student.ServiceInterface
	attendance attendance.ServiceInterface
	manager    *qrsession.Manager
	validate   *validator.Validate
	upgrader   websocket.Upgrader
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps, conf *core.Config, logger core.Logger) {
	api := sessionApi{
		conf:       conf,
		logger:     logger,
		usrSvc:     auth.svc,
		students:   deps.StudentSvc,
		attendance: deps.AttendanceSvc,
		manager:    deps.Sessions,
		validate:   deps.Validate,
	}
	api.upgrader = websocket.Upgrader{CheckOrigin: api.checkOrigin}

	g.POST("/attendance/scan", api.scan, jwt, studentMiddleware())

	sg := g.Group("/attendance/sessions", jwt, facultyMiddleware())
	sg.POST("", api.start)
	sg.GET("", api.active)
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/code", api.code)
	sg.GET("/:id/qr.png", api.qrImage)
	sg.POST("/:id/stop", api.stop)

	// browsers cannot set headers on websockets: the token comes in the query string
	g.GET("/attendance/sessions/:id/live", api.live, auth.queryMiddleware(), facultyMiddleware())
}

// ownSession returns the session `:id` when the context user started it or is an admin.
func (api *sessionApi) ownSession(ctx echo.Context) (qrsession.Session, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return qrsession.Session{}, errors.Wrap(err, "getting context claims")
	}
	sess, err := api.manager.Get(ctx.Param("id"))
	if err != nil {
		return qrsession.Session{}, err
	}
	if sess.FacultyID != claims.Subject && !claims.IsAdmin {
		return qrsession.Session{}, qrsession.ErrSessionNotFound
	}
	return sess, nil
}

func (api *sessionApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data StartSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartSessionRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.attendance.Class(ctx.Request().Context(), data.ClassID, attendance.StatusAll)
	if err != nil {
		return errors.Wrap(err, "finding class")
	}

	req := qrsession.StartRequest{
		ClassID:   cls.ID,
		FacultyID: claims.Subject,
		Duration:  time.Duration(data.Duration) * time.Second,
		Roster:    cls.Roster(),
	}
	if data.Rotation != nil {
		rotation := time.Duration(*data.Rotation) * time.Second
		req.Rotation = &rotation
	}

	sess, err := api.manager.Start(req)
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	code, err := api.manager.CurrentCode(sess.ID)
	if err != nil {
		return errors.Wrap(err, "getting current code")
	}
	return ctx.JSON(http.StatusCreated, SessionResponse{Session: sess, Code: &code})
}

// active lists the running sessions of the context user, of everyone for admins.
func (api *sessionApi) active(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sessions := make([]qrsession.Session, 0)
	for _, sess := range api.manager.Active() {
		if claims.IsAdmin || sess.FacultyID == claims.Subject {
			sessions = append(sessions, sess)
		}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.ownSession(ctx)
	if err != nil {
		return err
	}
	resp := SessionResponse{Session: sess}
	if sess.Active() {
		if code, err := api.manager.CurrentCode(sess.ID); err == nil {
			resp.Code = &code
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *sessionApi) code(ctx echo.Context) error {
	sess, err := api.ownSession(ctx)
	if err != nil {
		return err
	}
	code, err := api.manager.CurrentCode(sess.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, code)
}

func (api *sessionApi) qrImage(ctx echo.Context) error {
	sess, err := api.ownSession(ctx)
	if err != nil {
		return err
	}
	code, err := api.manager.CurrentCode(sess.ID)
	if err != nil {
		return err
	}
	png, err := export.QRCodePNG(code.Payload, api.conf.Attendance.QRSize)
	if err != nil {
		return errors.Wrap(err, "rendering qr code")
	}
	ctx.Response().Header().Set("Cache-Control", "no-store")
	return ctx.Blob(http.StatusOK, "image/png", png)
}

func (api *sessionApi) stop(ctx echo.Context) error {
	sess, err := api.ownSession(ctx)
	if err != nil {
		return err
	}
	sum, err := api.manager.Stop(ctx.Request().Context(), sess.ID)
	if err != nil {
		return errors.Wrap(err, "stopping session")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *sessionApi) scan(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	st, err := api.students.GetByEnrollment(ctx.Request().Context(), usr.Username)
	if err != nil {
		return errors.Wrap(err, "finding student by enrollment number")
	}
	att, err := api.manager.Scan(ctx.Request().Context(), data.Payload, st.ID, st.Name)
	if err != nil {
		return errors.Wrap(err, "scanning code")
	}
	return ctx.JSON(http.StatusCreated, att)
}

// live streams the events of a session over a websocket until the session ends or the client leaves.
func (api *sessionApi) live(ctx echo.Context) error {
	sess, err := api.ownSession(ctx)
	if err != nil {
		return err
	}
	events, cancel, err := api.manager.Subscribe(sess.ID)
	if err != nil {
		return err
	}
	defer cancel()

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		api.logger.Warn("upgrading live session connection", err)
		return nil // the upgrader already replied
	}
	defer conn.Close()

	// drain the client, which only ever closes the connection
	left := make(chan struct{})
	go func() {
		defer close(left)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v interface{}) error {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteJSON(v)
	}

	snapshot := LiveSnapshot{Type: "snapshot", Session: sess}
	if code, err := api.manager.CurrentCode(sess.ID); err == nil {
		snapshot.Code = &code
	}
	if err := write(snapshot); err != nil {
		return nil
	}

	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()
	for {
		select {
		case <-left:
			return nil
		case evt, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(liveWriteWait))
				return nil
			}
			if err := write(evt); err != nil {
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return nil
			}
		}
	}
}

func (api *sessionApi) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get(echo.HeaderOrigin)
	if origin == "" {
		return true
	}
	for _, allowed := range api.conf.Server.AllowOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

type (
	StartSessionRequest struct {
		ClassID  string `json:"class_id" validate:"required"`
		Duration int    `json:"duration" validate:"min=0"` // seconds, 0: default
		Rotation *int   `json:"rotation" validate:"omitempty,min=0"`
	}

	SessionResponse struct {
		qrsession.Session
		Code *qrsession.Code `json:"code,omitempty"`
	}

	ScanRequest struct {
		Payload string `json:"payload" validate:"required"`
	}

	// LiveSnapshot is the first message of the live feed.
	LiveSnapshot struct {
		Type    string            `json:"type"`
		Session qrsession.Session `json:"session"`
		Code    *qrsession.Code   `json:"code,omitempty"`
	}
)

func (sr *StartSessionRequest) Validate(validate *validator.Validate) error {
	sr.ClassID = core.CleanString(sr.ClassID)
	return validate.Struct(sr)
}
