package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/auth"
	"github.com/sekolah-app/sekolah/core/user"
)

const (
	authCookieName     = "authToken"
	contextIdentityKey = "identity"
	bearerPrefix       = "Bearer "
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Token   string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

// tokenFromRequest reads the session cookie, falling back to the bearer header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(authCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	return ""
}

// authMiddleware verifies the session token and stores the identity in the context.
func authMiddleware(tokens *auth.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := tokenFromRequest(ctx.Request())
			if token == "" {
				return errUnauthorized
			}
			id, err := tokens.Verify(token)
			if err != nil {
				return errUnauthorized
			}
			ctx.Set(contextIdentityKey, id)
			return next(ctx)
		}
	}
}

// requireRoles must run after authMiddleware.
func requireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, ok := identityFrom(ctx)
			if !ok {
				return errUnauthorized
			}
			if !id.HasRole(roles...) {
				return errForbidden
			}
			return next(ctx)
		}
	}
}

func identityFrom(ctx echo.Context) (auth.Identity, bool) {
	id, ok := ctx.Get(contextIdentityKey).(auth.Identity)
	return id, ok
}

func mustIdentity(ctx echo.Context) (auth.Identity, error) {
	if id, ok := identityFrom(ctx); ok {
		return id, nil
	}
	return auth.Identity{}, errUnauthorized
}

type authApi struct {
	usrSvc       user.Service
	tokens       *auth.TokenService
	validate     *validator.Validate
	cookieSecure bool
}

func registerAuthAPI(g *echo.Group, authed echo.MiddlewareFunc, loginLimiter echo.MiddlewareFunc, api *authApi) {
	if loginLimiter != nil {
		g.POST("/login", api.login, loginLimiter)
	} else {
		g.POST("/login", api.login)
	}
	g.POST("/logout", api.logout)
	g.GET("/me", api.me, authed)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.usrSvc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	token, err := api.tokens.Issue(usr.Identity())
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}

	ctx.SetCookie(api.cookie(token, int(api.tokens.TTL()/time.Second)))
	return ctx.JSON(http.StatusOK, LoginResponse{Success: true, Message: "login successful", Token: token})
}

func (api *authApi) logout(ctx echo.Context) error {
	ctx.SetCookie(api.cookie("", -1))
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "logged out"})
}

func (api *authApi) me(ctx echo.Context) error {
	id, err := mustIdentity(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "user": id})
}

func (api *authApi) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     authCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   api.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
