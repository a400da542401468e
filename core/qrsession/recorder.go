package qrsession

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
)

// Record is an ended session as kept in the session history.
type Record struct {
	ID              string    `json:"id"`
	ClassID         string    `json:"class_id"`
	FacultyID       string    `json:"faculty_id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int       `json:"duration"`
	AttendedCount   int       `json:"attended_count"`
	TimedOut        bool      `json:"timed_out"`
}

func NewRecord(sess Session) Record {
	sum := sess.Summary()
	rec := Record{
		ID:              sess.ID,
		ClassID:         sess.ClassID,
		FacultyID:       sess.FacultyID,
		StartedAt:       sess.StartedAt,
		DurationSeconds: sum.Duration,
		AttendedCount:   sum.AttendedCount,
		TimedOut:        sess.TimedOut,
	}
	if sess.EndedAt != nil {
		rec.EndedAt = *sess.EndedAt
	}
	return rec
}

type (
	Repository interface {
		SaveSession(ctx context.Context, rec Record, exec ...core.DBExecutor) error
		// QuerySessions returns the history of a class, latest first. An empty classID returns every session.
		QuerySessions(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Record, error)
	}

	// ArrivalCommitter is the part of the attendance service the recorder needs.
	ArrivalCommitter interface {
		CommitArrivals(ctx context.Context, classID string, arrivals []attendance.Arrival, exec ...core.DBExecutor) (int, error)
	}
)

// Recorder persists ended sessions: attendees go to the class marks, the summary to the session history.
type Recorder struct {
	db         core.DB
	attendance ArrivalCommitter
	repo       Repository
	logger     core.Logger
}

func NewRecorder(db core.DB, att ArrivalCommitter, repo Repository, logger core.Logger) *Recorder {
	return &Recorder{db: db, attendance: att, repo: repo, logger: logger}
}

// Record commits the attendees of an ended session and saves its summary in one transaction.
// A class gone from the database still gets its session saved.
func (r *Recorder) Record(ctx context.Context, sess Session) error {
	arrivals := make([]attendance.Arrival, 0, len(sess.Attendees))
	for _, att := range sess.Attendees {
		arrivals = append(arrivals, attendance.Arrival{
			StudentID: att.StudentID,
			Name:      att.Name,
			Time:      att.ScannedAt.Format("15:04"),
		})
	}

	var changed int
	err := core.RunInTx(ctx, r.db, func(tx core.DBExecutor) error {
		var err error
		changed, err = r.attendance.CommitArrivals(ctx, sess.ClassID, arrivals, tx)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "committing arrivals")
		}
		if err = r.repo.SaveSession(ctx, NewRecord(sess), tx); err != nil {
			return errors.Wrap(err, "saving session")
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("attendance session recorded", map[string]interface{}{
		"session": sess.ID, "class": sess.ClassID, "attended": len(arrivals), "marked": changed,
	})
	return nil
}

// OnEnd is meant for Options.OnEnd: failures are logged.
func (r *Recorder) OnEnd(ctx context.Context, sess Session) {
	if err := r.Record(ctx, sess); err != nil {
		r.logger.Error("recording attendance session", err, map[string]interface{}{"session": sess.ID})
	}
}

func (r *Recorder) History(ctx context.Context, classID string) ([]Record, error) {
	recs, err := r.repo.QuerySessions(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}
