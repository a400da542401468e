package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/user"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindUserFilter reads ?search, ?role (repeatable), ?is_active, ?created_from and ?created_to.
// Unreadable values are validation errors.
func bindUserFilter(ctx echo.Context) (*user.QueryFilter, error) {
	qs := ctx.QueryParams()
	filter := &user.QueryFilter{
		Search: qs.Get("search"),
		Roles:  qs["role"],
	}

	var fldErrs []core.FieldError
	if v := qs.Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: "is_active", Error: "is_active must be a boolean"})
		} else {
			filter.IsActive = &active
		}
	}
	for param, dst := range map[string]*time.Time{"created_from": &filter.CreatedFrom, "created_to": &filter.CreatedTo} {
		if v := qs.Get(param); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				fldErrs = append(fldErrs, core.FieldError{Field: param, Error: param + " must be a YYYY-MM-DD date"})
				continue
			}
			*dst = t
		}
	}
	if !filter.CreatedTo.IsZero() {
		filter.CreatedTo = filter.CreatedTo.Add(24*time.Hour - time.Nanosecond) // whole day
	}
	if fldErrs != nil {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	filter.Clean()
	return filter, nil
}

// bindDate reads the optional ?date param of the attendance endpoints.
func bindDate(ctx echo.Context) (string, error) {
	date := strings.TrimSpace(ctx.QueryParam("date"))
	if date == "" {
		return "", nil
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date must be a YYYY-MM-DD date"})
	}
	return date, nil
}
