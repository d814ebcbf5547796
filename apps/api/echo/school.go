package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core/school"
	"github.com/sekolah-app/sekolah/core/user"
)

type schoolApi struct {
	svc      school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, authed echo.MiddlewareFunc, api *schoolApi) {
	admin := requireRoles(user.RoleAdmin)

	cg := g.Group("/classes", authed)
	cg.GET("", api.listClasses)
	cg.POST("", api.createClass, admin)
	cg.DELETE("/:id", api.deleteClass, admin)

	sg := g.Group("/subjects", authed)
	sg.GET("", api.listSubjects)
	sg.POST("", api.createSubject, admin)
	sg.DELETE("/:id", api.deleteSubject, admin)
}

func (api *schoolApi) listClasses(ctx echo.Context) error {
	classes, err := api.svc.ListClasses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "classes": classes})
}

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewItem
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "message": "class created", "class": class})
}

func (api *schoolApi) deleteClass(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteClass(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "class deleted"})
}

func (api *schoolApi) listSubjects(ctx echo.Context) error {
	subjects, err := api.svc.ListSubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing subjects")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "subjects": subjects})
}

func (api *schoolApi) createSubject(ctx echo.Context) error {
	var data school.NewItem
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	subject, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "message": "subject created", "subject": subject})
}

func (api *schoolApi) deleteSubject(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSubject(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "subject deleted"})
}
