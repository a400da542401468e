package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/platform"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/timetable"
	"github.com/trezcool/classcue/storage/fixtures"
)

type publicApi struct {
	conf     *core.Config
	fixtures *fixtures.Store
	clock    core.Clock
}

// registerPublicAPI registers the read only endpoints backed by the fixtures and the static catalogues.
func registerPublicAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, conf *core.Config) {
	api := publicApi{
		conf:     conf,
		fixtures: deps.Fixtures,
		clock:    deps.Clock,
	}

	g.GET("/install-instructions", api.installInstructions)
	g.GET("/profile/options", api.profileOptions)

	g.GET("/timetable", api.timetable, jwt)
	g.GET("/timetable/today", api.today, jwt)
	g.GET("/tasks", api.tasks, jwt)
}

func (api *publicApi) installInstructions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, platform.InstallInstructions(ctx.Request().UserAgent()))
}

func (api *publicApi) profileOptions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, student.ProfileOptions())
}

func (api *publicApi) timetable(ctx echo.Context) error {
	week := api.fixtures.Timetable()
	days := make([]TimetableDay, 0, len(week))
	for _, d := range week.Days() {
		days = append(days, TimetableDay{Day: d, Slots: week.Schedule(d)})
	}
	return ctx.JSON(http.StatusOK, days)
}

func (api *publicApi) today(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.fixtures.Timetable().At(api.clock.Now(), api.conf.Attendance.FreePeriodMinGap))
}

// tasks returns the task board, pending tasks only with ?pending=true.
func (api *publicApi) tasks(ctx echo.Context) error {
	board := api.fixtures.Tasks()
	if ctx.QueryParam("pending") == "true" {
		board = board.Pending()
	}
	return ctx.JSON(http.StatusOK, board)
}

type TimetableDay struct {
	Day   string           `json:"day"`
	Slots []timetable.Slot `json:"slots"`
}
