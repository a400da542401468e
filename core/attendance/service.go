package attendance

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/student"
)

var (
	// errors
	ErrClassNotFound = core.NewNotFoundError(errors.New("class not found"))
)

type (
	Repository interface {
		// LatestClassDate returns the most recent date having classes, "" when there are none.
		LatestClassDate(ctx context.Context, exec ...core.DBExecutor) (string, error)
		// QueryClasses returns the classes held on `date` ordered by time, with their marks.
		QueryClasses(ctx context.Context, date string, exec ...core.DBExecutor) ([]Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		// SaveClasses inserts or replaces the classes and their marks.
		SaveClasses(ctx context.Context, classes []Class, exec ...core.DBExecutor) error
		// MarkPresent records the arrivals in the class and returns the students whose mark changed,
		// with whether they were marked absent before.
		MarkPresent(ctx context.Context, classID string, arrivals []Arrival, exec ...core.DBExecutor) (map[int]bool, error)
	}

	ServiceInterface interface {
		// ResolveDate returns `date` when set, the latest class date otherwise.
		ResolveDate(ctx context.Context, date string) (string, error)
		Day(ctx context.Context, date string) (Day, error)
		Classes(ctx context.Context, date string) ([]Class, error)
		Class(ctx context.Context, id string, status Status) (ClassDetail, error)
		StudentDay(ctx context.Context, studentID int, date string) (StudentDay, error)
		Overview(ctx context.Context, date string) (Overview, error)
		// CommitArrivals marks the arrivals present in the class and updates the running attendance of the students.
		// It runs in its own transaction unless `exec` is given.
		CommitArrivals(ctx context.Context, classID string, arrivals []Arrival, exec ...core.DBExecutor) (int, error)
	}

	service struct {
		db          core.DB
		repo        Repository
		studentRepo student.Repository
		weekly      func() map[string]float64
	}
)

var _ ServiceInterface = (*service)(nil)

// NewService returns the attendance service. `weekly` provides the weekly summary shown on the faculty dashboard; it may be nil.
func NewService(db core.DB, repo Repository, studentRepo student.Repository, weekly func() map[string]float64) *service {
	return &service{
		db:          db,
		repo:        repo,
		studentRepo: studentRepo,
		weekly:      weekly,
	}
}

func (svc *service) ResolveDate(ctx context.Context, date string) (string, error) {
	if date != "" {
		return date, nil
	}
	return svc.repo.LatestClassDate(ctx)
}

func (svc *service) Classes(ctx context.Context, date string) ([]Class, error) {
	date, err := svc.ResolveDate(ctx, date)
	if err != nil {
		return nil, errors.Wrap(err, "resolving date")
	}
	if date == "" {
		return []Class{}, nil
	}
	classes, err := svc.repo.QueryClasses(ctx, date)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []Class{}
	}
	return classes, nil
}

func (svc *service) Day(ctx context.Context, date string) (Day, error) {
	date, err := svc.ResolveDate(ctx, date)
	if err != nil {
		return Day{}, errors.Wrap(err, "resolving date")
	}
	classes, err := svc.Classes(ctx, date)
	if err != nil {
		return Day{}, err
	}
	return Day{Date: date, Classes: summaries(classes)}, nil
}

func (svc *service) Class(ctx context.Context, id string, status Status) (ClassDetail, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return ClassDetail{}, err
	}
	roster, err := svc.roster(ctx)
	if err != nil {
		return ClassDetail{}, err
	}
	return ClassDetail{
		Class:  cls.Enrich(roster).Filter(status),
		Stats:  cls.Stats(),
		Filter: status,
	}, nil
}

func (svc *service) StudentDay(ctx context.Context, studentID int, date string) (StudentDay, error) {
	date, err := svc.ResolveDate(ctx, date)
	if err != nil {
		return StudentDay{}, errors.Wrap(err, "resolving date")
	}
	classes, err := svc.Classes(ctx, date)
	if err != nil {
		return StudentDay{}, err
	}
	day := StudentDay{Date: date, Total: len(classes)}
	for _, cls := range classes {
		for _, m := range cls.Marks {
			if m.StudentID == studentID && m.Present {
				day.Attended++
				break
			}
		}
	}
	day.Percentage = RoundPercent(day.Attended, day.Total)
	return day, nil
}

func (svc *service) Overview(ctx context.Context, date string) (Overview, error) {
	date, err := svc.ResolveDate(ctx, date)
	if err != nil {
		return Overview{}, errors.Wrap(err, "resolving date")
	}
	classes, err := svc.Classes(ctx, date)
	if err != nil {
		return Overview{}, err
	}
	students, err := svc.studentRepo.QueryStudents(ctx, nil)
	if err != nil {
		return Overview{}, errors.Wrap(err, "querying students")
	}

	// a student missing one class and attending another counts in both
	present := make(map[int]struct{})
	absent := make(map[int]struct{})
	for _, cls := range classes {
		for _, m := range cls.Marks {
			if m.Present {
				present[m.StudentID] = struct{}{}
			} else {
				absent[m.StudentID] = struct{}{}
			}
		}
	}

	ov := Overview{
		Date:              date,
		TotalStudents:     len(students),
		PresentToday:      len(present),
		AbsentToday:       len(absent),
		AverageAttendance: student.AverageAttendance(students),
		Classes:           summaries(classes),
	}
	if svc.weekly != nil {
		ov.WeeklySummary = svc.weekly()
	}
	return ov, nil
}

func (svc *service) CommitArrivals(ctx context.Context, classID string, arrivals []Arrival, exec ...core.DBExecutor) (int, error) {
	if len(arrivals) == 0 {
		return 0, nil
	}
	var changed map[int]bool
	commit := func(tx core.DBExecutor) error {
		var err error
		if changed, err = svc.repo.MarkPresent(ctx, classID, arrivals, tx); err != nil {
			return errors.Wrap(err, "marking students present")
		}

		ids := make([]int, 0, len(changed))
		for id := range changed {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			s, err := svc.studentRepo.GetStudent(ctx, student.GetFilter{ID: id}, tx)
			if err != nil {
				if err == student.ErrNotFound {
					continue
				}
				return errors.Wrap(err, "finding student")
			}
			s.Attendance.MarkPresent(changed[id])
			if err = svc.studentRepo.UpdateAttendance(ctx, id, s.Attendance, tx); err != nil {
				return errors.Wrap(err, "updating student attendance")
			}
		}
		return nil
	}

	var err error
	if len(exec) > 0 {
		err = commit(exec[0])
	} else {
		err = core.RunInTx(ctx, svc.db, commit)
	}
	if err != nil {
		return 0, err
	}
	return len(changed), nil
}

func (svc *service) roster(ctx context.Context) (map[int]student.Student, error) {
	students, err := svc.studentRepo.QueryStudents(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	roster := make(map[int]student.Student, len(students))
	for _, s := range students {
		roster[s.ID] = s
	}
	return roster, nil
}

func summaries(classes []Class) []ClassSummary {
	sums := make([]ClassSummary, 0, len(classes))
	for _, cls := range classes {
		sums = append(sums, cls.Summary())
	}
	return sums
}
