// Package timetable answers the schedule questions of the student dashboard: which class is running, which comes next
// and where the free periods are.
package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	NextToday    = "Today"
	NextTomorrow = "Tomorrow"
)

// Weekdays in timetable order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var errInvalidTime = errors.New("invalid time range")

type Slot struct {
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Time    string `json:"time"` // "HH:MM - HH:MM"
	Room    string `json:"room"`
}

// Bounds returns the start and end of the slot in minutes since midnight.
func (s Slot) Bounds() (start, end int, err error) {
	parts := strings.SplitN(s.Time, "-", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Wrapf(errInvalidTime, "%q", s.Time)
	}
	if start, err = parseClock(parts[0]); err != nil {
		return 0, 0, errors.Wrapf(err, "%q", s.Time)
	}
	if end, err = parseClock(parts[1]); err != nil {
		return 0, 0, errors.Wrapf(err, "%q", s.Time)
	}
	return start, end, nil
}

// StartText returns the start of the slot as written in the timetable.
func (s Slot) StartText() string {
	return strings.TrimSpace(strings.SplitN(s.Time, "-", 2)[0])
}

func parseClock(s string) (int, error) {
	hm := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(hm) != 2 {
		return 0, errInvalidTime
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errInvalidTime
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errInvalidTime
	}
	return h*60 + m, nil
}

// FormatMinutes formats minutes since midnight as "H:MM".
func FormatMinutes(min int) string {
	return fmt.Sprintf("%d:%02d", min/60, min%60)
}

// Week is the weekly timetable keyed by lower case weekday name.
type Week map[string][]Slot

// Days returns the days of the timetable in weekday order.
func (w Week) Days() []string {
	days := make([]string, 0, len(w))
	for _, d := range Weekdays {
		if _, ok := w[d]; ok {
			days = append(days, d)
		}
	}
	return days
}

func (w Week) Schedule(day string) []Slot {
	if slots := w[day]; slots != nil {
		return slots
	}
	return []Slot{}
}

// NextDay returns the timetable day following `day`, wrapping around the week.
// A day missing from the timetable is followed by the first day. Returns "" for an empty timetable.
func (w Week) NextDay(day string) string {
	days := w.Days()
	if len(days) == 0 {
		return ""
	}
	idx := -1
	for i, d := range days {
		if d == day {
			idx = i
			break
		}
	}
	return days[(idx+1)%len(days)]
}

type FreePeriod struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration int    `json:"duration"` // minutes
}

// Today is the schedule of a day seen at a given instant.
type Today struct {
	Day          string       `json:"day"`
	Schedule     []Slot       `json:"schedule"`
	CurrentClass *Slot        `json:"current_class"`
	NextClass    *Slot        `json:"next_class"`
	NextClassDay string       `json:"next_class_day"`
	FreePeriods  []FreePeriod `json:"free_periods"`
}

// DayName returns the lower case weekday name of `t`.
func DayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// At computes the schedule of the day of `now`.
// The current class is the last slot running at `now` (bounds included), the next class the first slot starting
// after `now`, falling back to the first slot of the next timetable day. Gaps longer than `minGap` between
// consecutive slots are free periods. Slots with an unreadable time are listed but otherwise ignored.
func (w Week) At(now time.Time, minGap time.Duration) Today {
	day := DayName(now)
	today := Today{
		Day:          day,
		Schedule:     w.Schedule(day),
		NextClassDay: NextToday,
		FreePeriods:  []FreePeriod{},
	}
	nowMin := now.Hour()*60 + now.Minute()
	gap := int(minGap / time.Minute)

	prevEnd := -1
	for i := range today.Schedule {
		slot := today.Schedule[i]
		start, end, err := slot.Bounds()
		if err != nil {
			prevEnd = -1
			continue
		}

		if nowMin >= start && nowMin <= end {
			today.CurrentClass = &slot
		} else if nowMin < start && today.NextClass == nil {
			today.NextClass = &slot
		}

		if prevEnd >= 0 && start-prevEnd > gap {
			today.FreePeriods = append(today.FreePeriods, FreePeriod{
				Start:    FormatMinutes(prevEnd),
				End:      slot.StartText(),
				Duration: start - prevEnd,
			})
		}
		prevEnd = end
	}

	if today.NextClass == nil {
		if next := w.Schedule(w.NextDay(day)); len(next) > 0 {
			slot := next[0]
			today.NextClass = &slot
			today.NextClassDay = NextTomorrow
		}
	}
	return today
}

// Greeting returns the salutation for the hour of `now`.
func Greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good Morning"
	case h < 17:
		return "Good Afternoon"
	default:
		return "Good Evening"
	}
}
