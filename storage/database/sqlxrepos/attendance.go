package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
)

const (
	classColumns = "id, subject, teacher, time_slot, room, held_on"
	markColumns  = "class_id, student_id, name, present, arrived_at"
)

type classRow struct {
	ID      string `db:"id"`
	Subject string `db:"subject"`
	Teacher string `db:"teacher"`
	Time    string `db:"time_slot"`
	Room    string `db:"room"`
	Date    string `db:"held_on"`
}

type markRow struct {
	ClassID   string `db:"class_id"`
	StudentID int    `db:"student_id"`
	Name      string `db:"name"`
	Present   bool   `db:"present"`
	ArrivedAt string `db:"arrived_at"`
}

type attendanceRepository struct {
	baseRepository
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{baseRepository{exec: exec}}
}

func (repo attendanceRepository) unboil(row classRow, marks []markRow) attendance.Class {
	cls := attendance.Class{
		ID:      row.ID,
		Subject: row.Subject,
		Teacher: row.Teacher,
		Time:    row.Time,
		Room:    row.Room,
		Date:    row.Date,
		Marks:   make([]attendance.Mark, 0, len(marks)),
	}
	for _, m := range marks {
		cls.Marks = append(cls.Marks, attendance.Mark{
			StudentID: m.StudentID,
			Name:      m.Name,
			Present:   m.Present,
			ArrivedAt: m.ArrivedAt,
		})
	}
	return cls
}

func (repo attendanceRepository) LatestClassDate(ctx context.Context, exec ...core.DBExecutor) (string, error) {
	var date null.String
	if err := getOne(ctx, repo.getExec(exec), &date, "SELECT MAX(held_on) FROM classes"); err != nil {
		return "", errors.Wrap(err, "finding latest class date")
	}
	return date.String, nil
}

func (repo attendanceRepository) marksOf(ctx context.Context, exe core.DBExecutor, classIDs []string) (map[string][]markRow, error) {
	byClass := make(map[string][]markRow, len(classIDs))
	if len(classIDs) == 0 {
		return byClass, nil
	}
	var marks []markRow
	err := selectAll(ctx, exe, &marks,
		"SELECT "+markColumns+" FROM class_marks WHERE class_id IN (?) ORDER BY class_id, student_id", classIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying class marks")
	}
	for _, m := range marks {
		byClass[m.ClassID] = append(byClass[m.ClassID], m)
	}
	return byClass, nil
}

func (repo attendanceRepository) QueryClasses(ctx context.Context, date string, exec ...core.DBExecutor) ([]attendance.Class, error) {
	exe := repo.getExec(exec)

	var rows []classRow
	if err := selectAll(ctx, exe, &rows, "SELECT "+classColumns+" FROM classes WHERE held_on = ? ORDER BY time_slot, id", date); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	marks, err := repo.marksOf(ctx, exe, ids)
	if err != nil {
		return nil, err
	}

	classes := make([]attendance.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, repo.unboil(r, marks[r.ID]))
	}
	return classes, nil
}

func (repo attendanceRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Class, error) {
	exe := repo.getExec(exec)

	var row classRow
	if err := getOne(ctx, exe, &row, "SELECT "+classColumns+" FROM classes WHERE id = ?", id); err != nil {
		return attendance.Class{}, trapNoRowsErr(err, attendance.ErrClassNotFound, "finding class")
	}
	marks, err := repo.marksOf(ctx, exe, []string{id})
	if err != nil {
		return attendance.Class{}, err
	}
	return repo.unboil(row, marks[id]), nil
}

func (repo attendanceRepository) SaveClasses(ctx context.Context, classes []attendance.Class, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	for _, cls := range classes {
		n, err := execAffected(ctx, exe,
			"UPDATE classes SET subject = ?, teacher = ?, time_slot = ?, room = ?, held_on = ? WHERE id = ?",
			cls.Subject, cls.Teacher, cls.Time, cls.Room, cls.Date, cls.ID)
		if err != nil {
			return errors.Wrapf(err, "updating class %s", cls.ID)
		}
		if n == 0 {
			_, err = execAffected(ctx, exe,
				"INSERT INTO classes ("+classColumns+") VALUES (?, ?, ?, ?, ?, ?)",
				cls.ID, cls.Subject, cls.Teacher, cls.Time, cls.Room, cls.Date)
			if err != nil {
				return errors.Wrapf(err, "inserting class %s", cls.ID)
			}
		}

		// marks are replaced as a whole
		if _, err = execAffected(ctx, exe, "DELETE FROM class_marks WHERE class_id = ?", cls.ID); err != nil {
			return errors.Wrapf(err, "clearing marks of class %s", cls.ID)
		}
		for _, m := range cls.Marks {
			arrivedAt := m.ArrivedAt
			if !m.Present {
				arrivedAt = ""
			}
			_, err = execAffected(ctx, exe,
				"INSERT INTO class_marks ("+markColumns+") VALUES (?, ?, ?, ?, ?)",
				cls.ID, m.StudentID, m.Name, m.Present, arrivedAt)
			if err != nil {
				return errors.Wrapf(err, "inserting mark of student %d in class %s", m.StudentID, cls.ID)
			}
		}
	}
	return nil
}

func (repo attendanceRepository) MarkPresent(ctx context.Context, classID string, arrivals []attendance.Arrival, exec ...core.DBExecutor) (map[int]bool, error) {
	exe := repo.getExec(exec)

	var found bool
	if err := getOne(ctx, exe, &found, "SELECT COUNT(*) > 0 FROM classes WHERE id = ?", classID); err != nil {
		return nil, errors.Wrap(err, "finding class")
	}
	if !found {
		return nil, attendance.ErrClassNotFound
	}

	marks, err := repo.marksOf(ctx, exe, []string{classID})
	if err != nil {
		return nil, err
	}
	current := make(map[int]markRow, len(marks[classID]))
	for _, m := range marks[classID] {
		current[m.StudentID] = m
	}

	changed := make(map[int]bool, len(arrivals))
	for _, a := range arrivals {
		m, onRoster := current[a.StudentID]
		switch {
		case onRoster && m.Present:
			continue
		case onRoster:
			_, err = execAffected(ctx, exe,
				"UPDATE class_marks SET present = ?, arrived_at = ? WHERE class_id = ? AND student_id = ?",
				true, a.Time, classID, a.StudentID)
		default:
			_, err = execAffected(ctx, exe,
				"INSERT INTO class_marks ("+markColumns+") VALUES (?, ?, ?, ?, ?)",
				classID, a.StudentID, a.Name, true, a.Time)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "marking student %d present", a.StudentID)
		}
		changed[a.StudentID] = onRoster
		current[a.StudentID] = markRow{ClassID: classID, StudentID: a.StudentID, Name: a.Name, Present: true, ArrivedAt: a.Time}
	}
	return changed, nil
}
