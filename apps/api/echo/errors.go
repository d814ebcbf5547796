package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/auth"
	"github.com/sekolah-app/sekolah/core/user"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	errForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

const (
	msgValidation = "validation failed"
	msgServer     = "internal server error"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func fieldErrors(flds []core.FieldError) map[string]string {
	if len(flds) == 0 {
		return nil
	}
	m := make(map[string]string, len(flds))
	for _, f := range flds {
		if _, ok := m[f.Field]; !ok {
			m[f.Field] = f.Error
		}
	}
	return m
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		res := errorResponse{}
		var code int

		var (
			httpErr     *echo.HTTPError
			vErrs       validator.ValidationErrors
			vErr        *core.ValidationError
			conflictErr *core.ConflictError
		)
		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			if m, ok := httpErr.Message.(string); ok {
				res.Message = m
			} else {
				res.Message = http.StatusText(code)
			}
		case errors.As(err, &vErrs):
			code = http.StatusBadRequest
			res.Message = msgValidation
			res.Errors = fieldErrors(core.TranslateErrors(vErrs, translator))
		case errors.As(err, &vErr):
			code = http.StatusBadRequest
			res.Message = msgValidation
			if vErr.Err != nil {
				res.Message = vErr.Err.Error()
			}
			res.Errors = fieldErrors(vErr.Fields)
		case errors.As(err, &conflictErr):
			code = http.StatusConflict
			res.Message = conflictErr.Error()
			res.Errors = map[string]string{conflictErr.Field: conflictErr.Error()}
		case errors.Is(err, auth.ErrInvalidToken):
			code = http.StatusUnauthorized
			res.Message = "unauthorized"
		case errors.Is(err, user.ErrInvalidCredentials):
			code = http.StatusUnauthorized
			res.Message = user.ErrInvalidCredentials.Error()
		case errors.Is(err, core.ErrForbidden):
			code = http.StatusForbidden
			res.Message = core.ErrForbidden.Error()
		case errors.Is(err, core.ErrNotFound):
			code = http.StatusNotFound
			res.Message = err.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			res.Message = msgServer

			args := []interface{}{errors.WithStack(err), map[string]interface{}{
				"method":     ctx.Request().Method,
				"path":       ctx.Path(),
				"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
			}}
			if id, ok := identityFrom(ctx); ok {
				args = append(args, id)
			}
			logger.Error(err.Error(), args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, res)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
