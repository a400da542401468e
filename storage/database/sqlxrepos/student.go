package sqlxrepos

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/student"
)

const studentColumns = "id, student_id, name, email, total_classes, present, absent, percentage, interests, skills, goals"

type studentRow struct {
	ID        int    `db:"id"`
	StudentID string `db:"student_id"`
	Name      string `db:"name"`
	Email     string `db:"email"`
	student.Attendance
	Interests string `db:"interests"`
	Skills    string `db:"skills"`
	Goals     string `db:"goals"`
}

type studentRepository struct {
	baseRepository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{baseRepository{exec: exec}}
}

func (repo studentRepository) unboil(row studentRow) student.Student {
	return student.Student{
		ID:         row.ID,
		StudentID:  row.StudentID,
		Name:       row.Name,
		Email:      row.Email,
		Attendance: row.Attendance,
		Profile: student.Profile{
			Interests: splitList(row.Interests),
			Skills:    splitList(row.Skills),
			Goals:     splitList(row.Goals),
		},
	}
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, exec ...core.DBExecutor) ([]student.Student, error) {
	var w where
	if filter != nil && filter.Search != "" {
		val := likeValue(filter.Search)
		w.add("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(student_id) LIKE ?)", val, val, val)
	}

	var rows []studentRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, "SELECT "+studentColumns+" FROM students"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, repo.unboil(r))
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, filter student.GetFilter, exec ...core.DBExecutor) (student.Student, error) {
	var w where
	switch {
	case filter.ID != 0:
		w.add("id = ?", filter.ID)
	case filter.StudentID != "":
		w.add("student_id = ?", filter.StudentID)
	case filter.Email != "":
		w.add("LOWER(email) = ?", strings.ToLower(filter.Email))
	default:
		return student.Student{}, student.ErrNotFound
	}

	var row studentRow
	if err := getOne(ctx, repo.getExec(exec), &row, "SELECT "+studentColumns+" FROM students"+w.String()+" LIMIT 1", w.args...); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return repo.unboil(row), nil
}

func (repo studentRepository) SaveStudents(ctx context.Context, students []student.Student, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	for _, s := range students {
		n, err := execAffected(ctx, exe,
			`UPDATE students SET student_id = ?, name = ?, email = ?,
				total_classes = ?, present = ?, absent = ?, percentage = ?
			WHERE id = ?`,
			s.StudentID, s.Name, s.Email,
			s.Attendance.TotalClasses, s.Attendance.Present, s.Attendance.Absent, s.Attendance.Percentage,
			s.ID,
		)
		if err != nil {
			return errors.Wrapf(err, "updating student %d", s.ID)
		}
		if n > 0 {
			continue
		}
		_, err = execAffected(ctx, exe,
			"INSERT INTO students ("+studentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			s.ID, s.StudentID, s.Name, s.Email,
			s.Attendance.TotalClasses, s.Attendance.Present, s.Attendance.Absent, s.Attendance.Percentage,
			joinList(s.Profile.Interests), joinList(s.Profile.Skills), joinList(s.Profile.Goals),
		)
		if err != nil {
			return errors.Wrapf(err, "inserting student %d", s.ID)
		}
	}
	return nil
}

func (repo studentRepository) UpdateProfile(ctx context.Context, id int, profile student.Profile, exec ...core.DBExecutor) (student.Student, error) {
	exe := repo.getExec(exec)
	n, err := execAffected(ctx, exe,
		"UPDATE students SET interests = ?, skills = ?, goals = ? WHERE id = ?",
		joinList(profile.Interests), joinList(profile.Skills), joinList(profile.Goals), id,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student profile")
	}
	if n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, student.GetFilter{ID: id}, exe)
}

func (repo studentRepository) UpdateAttendance(ctx context.Context, id int, att student.Attendance, exec ...core.DBExecutor) error {
	n, err := execAffected(ctx, repo.getExec(exec),
		"UPDATE students SET total_classes = ?, present = ?, absent = ?, percentage = ? WHERE id = ?",
		att.TotalClasses, att.Present, att.Absent, att.Percentage, id,
	)
	if err != nil {
		return errors.Wrap(err, "updating student attendance")
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}
