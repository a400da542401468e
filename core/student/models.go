package student

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classcue/core"
)

// Attendance is the running attendance record of a student over the term.
type Attendance struct {
	TotalClasses int     `json:"total_classes" db:"total_classes"`
	Present      int     `json:"present" db:"present"`
	Absent       int     `json:"absent" db:"absent"`
	Percentage   float64 `json:"percentage" db:"percentage"`
}

// MarkPresent records one more attended class. A class already counted as absent is moved over to present.
func (a *Attendance) MarkPresent(wasAbsent bool) {
	if wasAbsent && a.Absent > 0 {
		a.Absent--
	} else {
		a.TotalClasses++
	}
	a.Present++
	a.Percentage = Percentage(a.Present, a.TotalClasses)
}

// Percentage returns part/total as a percentage rounded to one decimal, 0 when total is 0.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

type Profile struct {
	Interests []string `json:"interests"`
	Skills    []string `json:"skills"`
	Goals     []string `json:"goals"`
}

// IsComplete tells whether the student answered the profile prompt.
func (p Profile) IsComplete() bool {
	return len(p.Interests) > 0 && len(p.Skills) > 0 && len(p.Goals) > 0
}

type Student struct {
	ID         int        `json:"id"`
	StudentID  string     `json:"student_id"` // enrollment number
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Attendance Attendance `json:"attendance"`
	Profile    Profile    `json:"profile"`
}

// UpdateProfile holds the answers of the profile prompt. Every value must belong to its catalogue.
type UpdateProfile struct {
	Interests []string `json:"interests" validate:"required,min=1,dive,interest"`
	Skills    []string `json:"skills" validate:"required,min=1,dive,skill"`
	Goals     []string `json:"goals" validate:"required,min=1,dive,goal"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Interests = dedupe(core.CleanStrings(up.Interests, true /* lower */))
	up.Skills = dedupe(core.CleanStrings(up.Skills, true /* lower */))
	up.Goals = dedupe(core.CleanStrings(up.Goals, true /* lower */))
	return validate.Struct(up)
}

func (up UpdateProfile) Profile() Profile {
	return Profile{Interests: up.Interests, Skills: up.Skills, Goals: up.Goals}
}

func dedupe(ss []string) []string {
	if ss == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

type QueryFilter struct {
	Search string // case-insensitive match on name, email or enrollment number
}

func (qf *QueryFilter) Clean() {
	qf.Search = strings.ToLower(core.CleanString(qf.Search))
}

// GetFilter selects a single Student. The first non-empty field wins.
type GetFilter struct {
	ID        int
	StudentID string
	Email     string
}
