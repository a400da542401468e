// Package qrsession runs timed QR code attendance sessions: faculty start a session for a class, students scan the
// code it shows, and the attendees are handed over when the session is stopped or times out.
package qrsession

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
)

var (
	// errors
	ErrSessionNotFound = core.NewNotFoundError(errors.New("attendance session not found"))
	ErrSessionActive   = core.NewConflictError(errors.New("an attendance session is already running for this class"))
	ErrSessionEnded    = core.NewConflictError(errors.New("attendance session has ended"))
	ErrAlreadyScanned  = core.NewConflictError(errors.New("attendance already recorded for this session"))
	ErrInvalidCode     = core.NewValidationError(nil, core.FieldError{Field: "payload", Error: "invalid QR code"})
	ErrCodeExpired     = core.NewValidationError(nil, core.FieldError{Field: "payload", Error: "QR code expired, scan the new one"})
	ErrNotOnRoster     = core.NewValidationError(nil, core.FieldError{Field: "student", Error: "student is not enrolled in this class"})
	errClassRequired   = core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class_id is a required field"})
)

const (
	defaultDuration     = 10 * time.Minute
	defaultMaxDuration  = time.Hour
	defaultTickInterval = time.Second
	defaultRetainFor    = time.Hour
	subscriberBuffer    = 16
)

type Options struct {
	Duration    time.Duration // default session duration
	MaxDuration time.Duration
	Rotation    time.Duration // default rotation interval, 0: static codes
	Secret      string
	Clock       core.Clock
	Logger      core.Logger
	// RetainFor is how long ended sessions stay readable.
	RetainFor    time.Duration
	TickInterval time.Duration
	// OnEnd receives every session once it ended. It is called without any lock held.
	OnEnd func(ctx context.Context, sess Session)
}

type session struct {
	Session
	rotation   time.Duration
	roster     map[int]struct{}
	scanned    map[int]struct{}
	lastWindow int64
	subs       map[*subscriber]struct{}
}

type subscriber struct {
	ch chan Event
}

// Manager keeps the attendance sessions in memory. It is safe for concurrent use.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*session // by session ID
	active   map[string]string   // class ID -> session ID
}

func NewManager(opts Options) *Manager {
	if opts.Duration <= 0 {
		opts.Duration = defaultDuration
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = defaultMaxDuration
	}
	if opts.Duration > opts.MaxDuration {
		opts.Duration = opts.MaxDuration
	}
	if opts.Rotation < 0 {
		opts.Rotation = 0
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock()
	}
	if opts.RetainFor <= 0 {
		opts.RetainFor = defaultRetainFor
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*session),
		active:   make(map[string]string),
	}
}

// Start opens a session for a class. Only one session per class can be active at once.
func (m *Manager) Start(req StartRequest) (Session, error) {
	req.ClassID = strings.TrimSpace(req.ClassID)
	if req.ClassID == "" {
		return Session{}, errClassRequired
	}

	duration := req.Duration
	if duration == 0 {
		duration = m.opts.Duration
	}
	if duration < 0 || duration > m.opts.MaxDuration {
		return Session{}, core.NewValidationError(nil, core.FieldError{
			Field: "duration",
			Error: "duration must be positive and at most " + m.opts.MaxDuration.String(),
		})
	}

	rotation := m.opts.Rotation
	if req.Rotation != nil {
		rotation = *req.Rotation
	}
	if rotation < 0 {
		return Session{}, core.NewValidationError(nil, core.FieldError{Field: "rotation", Error: "rotation must not be negative"})
	}

	var roster map[int]struct{}
	if len(req.Roster) > 0 {
		roster = make(map[int]struct{}, len(req.Roster))
		for _, id := range req.Roster {
			roster[id] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[req.ClassID]; ok {
		return Session{}, ErrSessionActive
	}

	now := m.opts.Clock.Now()
	s := &session{
		Session: Session{
			ID:              uuid.New().String(),
			ClassID:         req.ClassID,
			FacultyID:       req.FacultyID,
			State:           StateActive,
			StartedAt:       now,
			Deadline:        now.Add(duration),
			RotationSeconds: int(rotation / time.Second),
			Attendees:       []Attendee{},
		},
		rotation: rotation,
		roster:   roster,
		scanned:  make(map[int]struct{}),
		subs:     make(map[*subscriber]struct{}),
	}
	m.sessions[s.ID] = s
	m.active[s.ClassID] = s.ID

	m.logInfo("attendance session started", map[string]interface{}{
		"session": s.ID, "class": s.ClassID, "faculty": s.FacultyID, "duration": duration.String(),
	})
	return s.snapshot(), nil
}

func (m *Manager) Get(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// ActiveFor returns the active session of a class.
func (m *Manager) ActiveFor(classID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.active[classID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return m.sessions[id].snapshot(), nil
}

// Active returns the active sessions, oldest first.
func (m *Manager) Active() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]Session, 0, len(m.active))
	for _, id := range m.active {
		res = append(res, m.sessions[id].snapshot())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartedAt.Before(res[j].StartedAt) })
	return res
}

// CurrentCode returns the code an active session shows right now.
func (m *Manager) CurrentCode(id string) (Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Code{}, ErrSessionNotFound
	}
	if !s.Active() {
		return Code{}, ErrSessionEnded
	}
	return m.code(s, m.opts.Clock.Now()), nil
}

// Scan records the attendance of a student who scanned `payload`.
// A code is accepted during its rotation window and the one after it.
func (m *Manager) Scan(ctx context.Context, payload string, studentID int, name string) (Attendee, error) {
	sessionID, token, err := decodePayload(strings.TrimSpace(payload))
	if err != nil {
		return Attendee{}, ErrInvalidCode
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return Attendee{}, ErrSessionNotFound
	}
	if !s.Active() {
		m.mu.Unlock()
		return Attendee{}, ErrSessionEnded
	}

	now := m.opts.Clock.Now()
	if !now.Before(s.Deadline) {
		ended := m.end(s, s.Deadline, true)
		m.mu.Unlock()
		m.onEnd(ctx, ended)
		return Attendee{}, ErrSessionEnded
	}
	defer m.mu.Unlock()

	w := s.window(now)
	if !checkToken(m.opts.Secret, s.ID, w, token) && !checkToken(m.opts.Secret, s.ID, w-1, token) {
		if w > 1 && m.tokenOfPastWindow(s, w-2, token) {
			return Attendee{}, ErrCodeExpired
		}
		return Attendee{}, ErrInvalidCode
	}
	if s.roster != nil {
		if _, ok := s.roster[studentID]; !ok {
			return Attendee{}, ErrNotOnRoster
		}
	}
	if _, ok := s.scanned[studentID]; ok {
		return Attendee{}, ErrAlreadyScanned
	}

	att := Attendee{StudentID: studentID, Name: name, ScannedAt: now}
	s.scanned[studentID] = struct{}{}
	s.Attendees = append(s.Attendees, att)
	s.publish(Event{Type: EventScan, SessionID: s.ID, At: now, Attendee: &att})
	return att, nil
}

// tokenOfPastWindow tells whether `token` was issued by the session in a window up to `upTo`.
func (m *Manager) tokenOfPastWindow(s *session, upTo int64, token string) bool {
	for w := upTo; w >= 0; w-- {
		if checkToken(m.opts.Secret, s.ID, w, token) {
			return true
		}
	}
	return false
}

// Stop ends an active session and returns its summary.
func (m *Manager) Stop(ctx context.Context, id string) (Summary, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Summary{}, ErrSessionNotFound
	}
	if !s.Active() {
		m.mu.Unlock()
		return Summary{}, ErrSessionEnded
	}

	now := m.opts.Clock.Now()
	timedOut := !now.Before(s.Deadline)
	if timedOut {
		now = s.Deadline
	}
	ended := m.end(s, now, timedOut)
	m.mu.Unlock()

	m.onEnd(ctx, ended)
	return ended.Summary(), nil
}

// StopAll ends every active session.
func (m *Manager) StopAll(ctx context.Context) []Summary {
	m.mu.Lock()
	now := m.opts.Clock.Now()
	ended := make([]Session, 0, len(m.active))
	for _, id := range m.active {
		ended = append(ended, m.end(m.sessions[id], now, false))
	}
	m.mu.Unlock()

	sums := make([]Summary, 0, len(ended))
	for _, sess := range ended {
		m.onEnd(ctx, sess)
		sums = append(sums, sess.Summary())
	}
	return sums
}

// Subscribe returns the events of an active session. The channel is closed once the session ended
// or `cancel` is called. Slow subscribers miss events.
func (m *Manager) Subscribe(id string) (events <-chan Event, cancel func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if !s.Active() {
		return nil, nil, ErrSessionEnded
	}

	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	s.subs[sub] = struct{}{}
	cancel = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			close(sub.ch)
		}
	}
	return sub.ch, cancel, nil
}

// Tick times out the sessions past their deadline, announces code rotations
// and forgets the sessions ended for longer than the retention.
func (m *Manager) Tick(ctx context.Context) {
	m.mu.Lock()
	now := m.opts.Clock.Now()
	var ended []Session
	for id, s := range m.sessions {
		if !s.Active() {
			if s.EndedAt != nil && now.Sub(*s.EndedAt) > m.opts.RetainFor {
				delete(m.sessions, id)
			}
			continue
		}
		if !now.Before(s.Deadline) {
			ended = append(ended, m.end(s, s.Deadline, true))
			continue
		}
		if w := s.window(now); w != s.lastWindow {
			s.lastWindow = w
			code := m.code(s, now)
			s.publish(Event{Type: EventRotate, SessionID: s.ID, At: now, Code: &code})
		}
	}
	m.mu.Unlock()

	for _, sess := range ended {
		m.onEnd(ctx, sess)
	}
}

// Run ticks until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// end must be called with the lock held.
func (m *Manager) end(s *session, at time.Time, timedOut bool) Session {
	s.State = StateEnded
	s.EndedAt = &at
	s.TimedOut = timedOut
	delete(m.active, s.ClassID)

	sess := s.snapshot()
	sum := sess.Summary()
	s.publish(Event{Type: EventEnd, SessionID: s.ID, At: at, Summary: &sum})
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.ch)
	}

	m.logInfo("attendance session ended", map[string]interface{}{
		"session": s.ID, "class": s.ClassID, "attended": sum.AttendedCount, "timed_out": timedOut,
	})
	return sess
}

func (m *Manager) onEnd(ctx context.Context, sess Session) {
	if m.opts.OnEnd != nil {
		m.opts.OnEnd(ctx, sess)
	}
}

func (m *Manager) code(s *session, now time.Time) Code {
	w := s.window(now)
	code := Code{
		SessionID:        s.ID,
		Payload:          encodePayload(s.ID, codeToken(m.opts.Secret, s.ID, w)),
		Window:           w,
		RemainingSeconds: int(s.Remaining(now) / time.Second),
	}
	if s.rotation > 0 {
		exp := s.StartedAt.Add(time.Duration(w+1) * s.rotation)
		code.ExpiresAt = &exp
	}
	return code
}

func (m *Manager) logInfo(msg string, extras map[string]interface{}) {
	if m.opts.Logger != nil {
		m.opts.Logger.Info(msg, extras)
	}
}

// window returns the rotation window of the session at `now`, always 0 for a static code.
func (s *session) window(now time.Time) int64 {
	if s.rotation <= 0 || now.Before(s.StartedAt) {
		return 0
	}
	return int64(now.Sub(s.StartedAt) / s.rotation)
}

func (s *session) publish(evt Event) {
	for sub := range s.subs {
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

func (s *session) snapshot() Session {
	sess := s.Session
	sess.Attendees = make([]Attendee, len(s.Attendees))
	copy(sess.Attendees, s.Attendees)
	if s.EndedAt != nil {
		at := *s.EndedAt
		sess.EndedAt = &at
	}
	return sess
}
