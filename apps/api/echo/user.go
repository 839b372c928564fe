package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/user"
)

type authApi struct {
	session *sessionManager
	deps    ServerDeps
}

func registerAuthAPI(g *echo.Group, session echo.MiddlewareFunc, sm *sessionManager, deps ServerDeps) {
	api := authApi{session: sm, deps: deps}

	// un-authed endpoints
	g.POST("/signup", api.signup)
	g.POST("/login", api.login)

	// authed endpoints
	ag := g.Group("", session)
	ag.POST("/logout", api.logout)
	ag.GET("/me", api.me)
}

// Handlers

func (api *authApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.deps.Validate, api.deps.UserSvc); err != nil {
		return err
	}

	usr, err := api.deps.UserSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}

	// open a session right away
	access, refresh, err := api.session.tokenPair(usr)
	if err != nil {
		return err
	}
	api.session.setCookies(ctx, access, refresh)

	return respond(ctx, http.StatusCreated, "account created", usr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	usr, err := api.session.login(ctx, data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "logged in", usr)
}

func (api *authApi) logout(ctx echo.Context) error {
	api.session.clearCookies(ctx)
	return respond(ctx, http.StatusOK, "logged out", nil)
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "ok", usr)
}
