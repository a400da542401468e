package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/qrsession"
)

const sessionColumns = "id, class_id, faculty_id, started_at, ended_at, duration_seconds, attended_count, timed_out"

type sessionRow struct {
	ID              string    `db:"id"`
	ClassID         string    `db:"class_id"`
	FacultyID       string    `db:"faculty_id"`
	StartedAt       time.Time `db:"started_at"`
	EndedAt         time.Time `db:"ended_at"`
	DurationSeconds int       `db:"duration_seconds"`
	AttendedCount   int       `db:"attended_count"`
	TimedOut        bool      `db:"timed_out"`
}

type sessionRepository struct {
	baseRepository
}

var _ qrsession.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{baseRepository{exec: exec}}
}

func (repo sessionRepository) SaveSession(ctx context.Context, rec qrsession.Record, exec ...core.DBExecutor) error {
	_, err := execAffected(ctx, repo.getExec(exec),
		"INSERT INTO qr_sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.ClassID, rec.FacultyID, rec.StartedAt.UTC(), rec.EndedAt.UTC(),
		rec.DurationSeconds, rec.AttendedCount, rec.TimedOut,
	)
	if err != nil {
		return errors.Wrap(err, "inserting session")
	}
	return nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, classID string, exec ...core.DBExecutor) ([]qrsession.Record, error) {
	var w where
	if classID != "" {
		w.add("class_id = ?", classID)
	}

	var rows []sessionRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, "SELECT "+sessionColumns+" FROM qr_sessions"+w.String()+" ORDER BY started_at DESC", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	recs := make([]qrsession.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, qrsession.Record{
			ID:              r.ID,
			ClassID:         r.ClassID,
			FacultyID:       r.FacultyID,
			StartedAt:       r.StartedAt.UTC(),
			EndedAt:         r.EndedAt.UTC(),
			DurationSeconds: r.DurationSeconds,
			AttendedCount:   r.AttendedCount,
			TimedOut:        r.TimedOut,
		})
	}
	return recs, nil
}
