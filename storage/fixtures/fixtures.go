package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/tasks"
	"github.com/trezcool/classcue/core/timetable"
	appfs "github.com/trezcool/classcue/fs"
)

// Fixture files
const (
	StudentsFile   = "students.json"
	AttendanceFile = "attendance.json"
	TimetableFile  = "timetable.json"
	TasksFile      = "tasks.json"
)

type (
	studentAttendance struct {
		TotalClasses int     `json:"totalClasses"`
		Present      int     `json:"present"`
		Absent       int     `json:"absent"`
		Percentage   float64 `json:"percentage"`
	}

	studentFixture struct {
		ID         int               `json:"id"`
		StudentID  string            `json:"studentId"`
		Name       string            `json:"name"`
		Email      string            `json:"email"`
		Attendance studentAttendance `json:"attendance"`
	}

	attendanceFixture struct {
		Today struct {
			Date    string             `json:"date"`
			Classes []attendance.Class `json:"classes"`
		} `json:"today"`
		Weekly struct {
			Summary map[string]float64 `json:"summary"`
		} `json:"weekly"`
	}
)

// Data is the content of the fixture files.
type Data struct {
	Students  []student.Student
	Date      string // day the classes were held on
	Classes   []attendance.Class
	Weekly    map[string]float64
	Timetable timetable.Week
	Tasks     tasks.Board
}

// Empty returns the data used when every fixture is missing.
func Empty() *Data {
	return &Data{
		Students:  []student.Student{},
		Classes:   []attendance.Class{},
		Weekly:    map[string]float64{},
		Timetable: timetable.Week{},
		Tasks:     tasks.EmptyBoard(),
	}
}

// Source returns the fixture files: `dir` when set, the embedded fixtures otherwise.
func Source(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(appfs.FS, "fixtures")
	if err != nil {
		return nil, errors.Wrap(err, "opening embedded fixtures")
	}
	return sub, nil
}

// Load parses the fixture files concurrently.
// A missing or unreadable file is logged and replaced by its empty default; only a cancelled context fails.
func Load(ctx context.Context, fsys fs.FS, logger core.Logger) (*Data, error) {
	data := Empty()
	var att attendanceFixture
	var studs []studentFixture

	g, gCtx := errgroup.WithContext(ctx)
	parse := func(name string, decode func([]byte) error) {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			b, err := fs.ReadFile(fsys, name)
			if err == nil {
				err = decode(b)
			}
			if err != nil {
				logger.Warn(fmt.Sprintf("loading fixture %s: %v", name, err), err, map[string]interface{}{"fixture": name})
			}
			return nil
		})
	}
	parse(StudentsFile, func(b []byte) error {
		var v []studentFixture
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		studs = v
		return nil
	})
	parse(AttendanceFile, func(b []byte) error {
		var v attendanceFixture
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		att = v
		return nil
	})
	parse(TimetableFile, func(b []byte) error {
		var v timetable.Week
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		data.Timetable = v
		return nil
	})
	parse(TasksFile, func(b []byte) error {
		var v tasks.Board
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		data.Tasks = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.Students = make([]student.Student, 0, len(studs))
	for _, s := range studs {
		data.Students = append(data.Students, student.Student{
			ID:        s.ID,
			StudentID: s.StudentID,
			Name:      s.Name,
			Email:     s.Email,
			Attendance: student.Attendance{
				TotalClasses: s.Attendance.TotalClasses,
				Present:      s.Attendance.Present,
				Absent:       s.Attendance.Absent,
				Percentage:   s.Attendance.Percentage,
			},
		})
	}

	data.Date = att.Today.Date
	if att.Today.Classes != nil {
		data.Classes = att.Today.Classes
	}
	for i := range data.Classes {
		if data.Classes[i].Date == "" {
			data.Classes[i].Date = data.Date
		}
		if data.Classes[i].Marks == nil {
			data.Classes[i].Marks = []attendance.Mark{}
		}
	}
	if att.Weekly.Summary != nil {
		data.Weekly = att.Weekly.Summary
	}
	if data.Timetable == nil {
		data.Timetable = timetable.Week{}
	}
	data.Tasks = data.Tasks.Normalize()
	return data, nil
}
