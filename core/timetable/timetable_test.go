package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWeek = Week{
	"monday": {
		{Subject: "Data Structures", Teacher: "Dr. Meera Rao", Time: "09:00 - 10:00", Room: "A-101"},
	},
	"wednesday": {
		{Subject: "Data Structures", Teacher: "Dr. Meera Rao", Time: "09:00 - 10:00", Room: "A-101"},
		{Subject: "Database Systems", Teacher: "Prof. Arjun Nair", Time: "10:15 - 11:15", Room: "B-204"},
		{Subject: "Operating Systems", Teacher: "Dr. Kavita Iyer", Time: "13:00 - 14:00", Room: "C-305"},
	},
	"friday": {},
}

// 2025-01-15 is a wednesday
func at(hour, min int) time.Time {
	return time.Date(2025, 1, 15, hour, min, 0, 0, time.UTC)
}

func TestSlot_Bounds(t *testing.T) {
	start, end, err := Slot{Time: "09:00 - 10:30"}.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 540, start)
	assert.Equal(t, 630, end)

	start, end, err = Slot{Time: "9:05-9:50"}.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 545, start)
	assert.Equal(t, 590, end)

	for _, tm := range []string{"", "09:00", "9h - 10h", "25:00 - 26:00", "09:60 - 10:00"} {
		_, _, err := Slot{Time: tm}.Bounds()
		assert.Error(t, err, tm)
	}
}

func TestWeek_Days(t *testing.T) {
	assert.Equal(t, []string{"monday", "wednesday", "friday"}, testWeek.Days())
	assert.Empty(t, Week{}.Days())
}

func TestWeek_NextDay(t *testing.T) {
	assert.Equal(t, "wednesday", testWeek.NextDay("monday"))
	assert.Equal(t, "monday", testWeek.NextDay("friday"), "wraps around the week")
	assert.Equal(t, "monday", testWeek.NextDay("sunday"), "a day off is followed by the first day")
	assert.Equal(t, "", Week{}.NextDay("monday"))
}

func TestWeek_At(t *testing.T) {
	tests := []struct {
		name        string
		now         time.Time
		wantCurrent string
		wantNext    string
		wantNextDay string
	}{
		{name: "before classes", now: at(8, 0), wantNext: "Data Structures", wantNextDay: NextToday},
		{name: "class start", now: at(9, 0), wantCurrent: "Data Structures", wantNext: "Database Systems", wantNextDay: NextToday},
		{name: "class end", now: at(10, 0), wantCurrent: "Data Structures", wantNext: "Database Systems", wantNextDay: NextToday},
		{name: "break", now: at(10, 5), wantNext: "Database Systems", wantNextDay: NextToday},
		{name: "last class", now: at(13, 30), wantCurrent: "Operating Systems", wantNext: "", wantNextDay: NextToday},
		{name: "after classes", now: at(18, 0), wantNextDay: NextToday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			today := testWeek.At(tt.now, 30*time.Minute)
			assert.Equal(t, "wednesday", today.Day)
			assert.Len(t, today.Schedule, 3)

			if tt.wantCurrent == "" {
				assert.Nil(t, today.CurrentClass)
			} else if assert.NotNil(t, today.CurrentClass) {
				assert.Equal(t, tt.wantCurrent, today.CurrentClass.Subject)
			}
			if tt.wantNext == "" {
				assert.Nil(t, today.NextClass)
			} else if assert.NotNil(t, today.NextClass) {
				assert.Equal(t, tt.wantNext, today.NextClass.Subject)
			}
			assert.Equal(t, tt.wantNextDay, today.NextClassDay)
		})
	}
}

func TestWeek_At_tomorrow(t *testing.T) {
	// monday evening: the next class is wednesday's first
	today := testWeek.At(time.Date(2025, 1, 13, 18, 0, 0, 0, time.UTC), 30*time.Minute)
	assert.Equal(t, "monday", today.Day)
	if assert.NotNil(t, today.NextClass) {
		assert.Equal(t, "Data Structures", today.NextClass.Subject)
	}
	assert.Equal(t, NextTomorrow, today.NextClassDay)

	// thursday has no classes: the next timetable day is monday
	today = testWeek.At(time.Date(2025, 1, 16, 8, 0, 0, 0, time.UTC), 30*time.Minute)
	assert.Empty(t, today.Schedule)
	assert.NotNil(t, today.NextClass)
	assert.Equal(t, NextTomorrow, today.NextClassDay)

	// wednesday evening: friday is empty
	today = testWeek.At(at(20, 0), 30*time.Minute)
	assert.Nil(t, today.NextClass)
	assert.Equal(t, NextToday, today.NextClassDay)

	today = Week{}.At(at(8, 0), 30*time.Minute)
	assert.Nil(t, today.NextClass)
	assert.Empty(t, today.FreePeriods)
}

func TestWeek_At_freePeriods(t *testing.T) {
	today := testWeek.At(at(8, 0), 30*time.Minute)
	assert.Equal(t, []FreePeriod{{Start: "11:15", End: "13:00", Duration: 105}}, today.FreePeriods)

	today = testWeek.At(at(8, 0), 10*time.Minute)
	assert.Equal(t, []FreePeriod{
		{Start: "10:00", End: "10:15", Duration: 15},
		{Start: "11:15", End: "13:00", Duration: 105},
	}, today.FreePeriods)
}

func TestGreeting(t *testing.T) {
	assert.Equal(t, "Good Morning", Greeting(at(0, 0)))
	assert.Equal(t, "Good Morning", Greeting(at(11, 59)))
	assert.Equal(t, "Good Afternoon", Greeting(at(12, 0)))
	assert.Equal(t, "Good Afternoon", Greeting(at(16, 59)))
	assert.Equal(t, "Good Evening", Greeting(at(17, 0)))
}
