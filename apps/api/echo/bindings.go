package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sekolah-app/sekolah/core"
)

// paramID parses a positive int64 path parameter.
func paramID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: name + " must be a positive integer"})
	}
	return id, nil
}

// queryDate parses the `date` query parameter, defaulting to today.
func queryDate(ctx echo.Context, today func() time.Time) (time.Time, error) {
	s := core.CleanString(ctx.QueryParam("date"))
	if s == "" {
		return today(), nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date must be in YYYY-MM-DD format"})
	}
	return d, nil
}

// queryInt64 parses an optional positive integer query parameter; 0 when absent.
func queryInt64(ctx echo.Context, name string) (int64, error) {
	s := core.CleanString(ctx.QueryParam(name))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: name + " must be a positive integer"})
	}
	return v, nil
}
