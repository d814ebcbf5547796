package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/core/schedule"
	"github.com/sekolah-app/sekolah/core/user"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type attendanceApi struct {
	svc         attendance.Service
	scheduleSvc schedule.Service
	validate    *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, authed echo.MiddlewareFunc, api *attendanceApi) {
	staff := requireRoles(user.RoleAdmin, user.RoleTeacher)

	ag := g.Group("/attendance", authed)
	ag.GET("/schedules", api.todaySchedules, requireRoles(user.RoleTeacher))
	ag.GET("/schedules/:id/students", api.scheduleRoster, staff)
	ag.GET("/class/:class_id", api.classRoster, staff)
	ag.POST("/records", api.record, staff)
	ag.GET("/summary", api.summary, staff)
	ag.GET("/summary/export", api.exportSummary, staff)
}

func (api *attendanceApi) todaySchedules(ctx echo.Context) error {
	id, err := mustIdentity(ctx)
	if err != nil {
		return err
	}
	schedules, err := api.scheduleSvc.TodayForTeacher(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "querying today's schedules")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "schedules": schedules})
}

func (api *attendanceApi) scheduleRoster(ctx echo.Context) error {
	id, err := mustIdentity(ctx)
	if err != nil {
		return err
	}
	scheduleID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	date, err := queryDate(ctx, api.svc.Today)
	if err != nil {
		return err
	}

	roster, err := api.svc.ScheduleRoster(ctx.Request().Context(), scheduleID, date, id)
	if err != nil {
		return errors.Wrap(err, "building schedule roster")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "students": roster})
}

func (api *attendanceApi) classRoster(ctx echo.Context) error {
	classID, err := paramID(ctx, "class_id")
	if err != nil {
		return err
	}
	date, err := queryDate(ctx, api.svc.Today)
	if err != nil {
		return err
	}

	roster, err := api.svc.ClassRoster(ctx.Request().Context(), classID, date)
	if err != nil {
		return errors.Wrap(err, "building class roster")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "students": roster})
}

func (api *attendanceApi) record(ctx echo.Context) error {
	id, err := mustIdentity(ctx)
	if err != nil {
		return err
	}

	var data attendance.RecordRequest
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.Record(ctx.Request().Context(), data, id); err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "attendance saved"})
}

func (api *attendanceApi) bindSummaryQuery(ctx echo.Context) (attendance.SummaryQuery, error) {
	var q attendance.SummaryQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &q); err != nil {
		return q, err
	}
	return q, q.Validate(api.validate)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	q, err := api.bindSummaryQuery(ctx)
	if err != nil {
		return err
	}

	summary, err := api.svc.Summary(ctx.Request().Context(), q.ClassID, q.Month, q.Year)
	if err != nil {
		return errors.Wrap(err, "building attendance summary")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "summary": summary})
}

func (api *attendanceApi) exportSummary(ctx echo.Context) error {
	q, err := api.bindSummaryQuery(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err = api.svc.ExportSummary(ctx.Request().Context(), &buf, q.ClassID, q.Month, q.Year); err != nil {
		return errors.Wrap(err, "exporting attendance summary")
	}

	filename := fmt.Sprintf("rekap-absensi-%d-%04d-%02d.xlsx", q.ClassID, q.Year, q.Month)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}
