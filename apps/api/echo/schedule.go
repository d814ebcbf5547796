package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/schedule"
	"github.com/sekolah-app/sekolah/core/user"
)

type scheduleApi struct {
	svc      schedule.Service
	validate *validator.Validate
}

func registerScheduleAPI(g *echo.Group, authed echo.MiddlewareFunc, api *scheduleApi) {
	admin := requireRoles(user.RoleAdmin)

	sg := g.Group("/schedules", authed)
	sg.GET("", api.query, requireRoles(user.RoleAdmin, user.RoleTeacher))
	sg.POST("", api.create, admin)
	sg.DELETE("/:id", api.destroy, admin)
}

// query lists every schedule for admins and only their own for a guru.
func (api *scheduleApi) query(ctx echo.Context) error {
	id, err := mustIdentity(ctx)
	if err != nil {
		return err
	}

	var filter schedule.Filter
	if filter.ClassID, err = queryInt64(ctx, "class_id"); err != nil {
		return err
	}
	if s := core.CleanString(ctx.QueryParam("day")); s != "" {
		day, convErr := strconv.Atoi(s)
		if convErr != nil || day < 0 || day > 6 {
			return core.NewValidationError(nil, core.FieldError{Field: "day", Error: "day must be between 0 and 6"})
		}
		filter.Day = &day
	}
	if id.Role == user.RoleTeacher {
		filter.TeacherID = id.ID
	}

	schedules, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying schedules")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "schedules": schedules})
}

func (api *scheduleApi) create(ctx echo.Context) error {
	var data schedule.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating schedule")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "message": "schedule created", "schedule": s})
}

func (api *scheduleApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "schedule deleted"})
}
