package student

import (
	"context"
	"errors"

	"github.com/trezcool/classcue/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError(errors.New("student not found"))
)

type (
	Repository interface {
		QueryStudents(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Student, error)
		// SaveStudents inserts the students or overwrites their identity and attendance, keeping their profile.
		SaveStudents(ctx context.Context, students []Student, exec ...core.DBExecutor) error
		UpdateProfile(ctx context.Context, id int, profile Profile, exec ...core.DBExecutor) (Student, error)
		UpdateAttendance(ctx context.Context, id int, att Attendance, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Query(ctx context.Context, filter *QueryFilter) ([]Student, error)
		GetByID(ctx context.Context, id int) (Student, error)
		GetByEnrollment(ctx context.Context, studentID string) (Student, error)
		UpdateProfile(ctx context.Context, id int, up UpdateProfile) (Student, error)
		// Roster maps student IDs to their record.
		Roster(ctx context.Context) (map[int]Student, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEnrollment(ctx context.Context, studentID string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{StudentID: core.CleanString(studentID)})
}

func (svc *service) UpdateProfile(ctx context.Context, id int, up UpdateProfile) (Student, error) {
	return svc.repo.UpdateProfile(ctx, id, up.Profile())
}

func (svc *service) Roster(ctx context.Context) (map[int]Student, error) {
	students, err := svc.repo.QueryStudents(ctx, nil)
	if err != nil {
		return nil, err
	}
	roster := make(map[int]Student, len(students))
	for _, s := range students {
		roster[s.ID] = s
	}
	return roster, nil
}

// AverageAttendance returns the rounded mean attendance percentage of `students`, 0 for none.
func AverageAttendance(students []Student) int {
	if len(students) == 0 {
		return 0
	}
	var total float64
	for _, s := range students {
		total += s.Attendance.Percentage
	}
	return roundHalfUp(total / float64(len(students)))
}

func roundHalfUp(f float64) int {
	if f < 0 {
		return -roundHalfUp(-f)
	}
	return int(f + 0.5)
}
