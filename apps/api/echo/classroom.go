package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

type classroomApi struct {
	deps ServerDeps
}

func registerClassroomAPI(g *echo.Group, session echo.MiddlewareFunc, deps ServerDeps) {
	api := classroomApi{deps: deps}

	// un-authed endpoints: classroom discovery and the OTP join request,
	// which identifies the student by email only
	g.GET("/classrooms/search", api.search)
	g.POST("/request-to-join", api.requestToJoin)

	// authed endpoints
	ag := g.Group("", session)
	ag.POST("/create", api.create)
	ag.GET("/classroomscreatedbyme", api.queryOwned)
	ag.GET("/classroomsforstudent", api.queryEnrolled)
	ag.GET("/getclassbyid/:classId", api.retrieve)
	ag.POST("/addpost", api.addPost)
	ag.POST("/join-by-code", api.joinByCode)
	ag.POST("/verify-otp", api.verifyOTP)
}

func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, core.NewNotFoundError("not found")
	}
	return id, nil
}

// Handlers

func (api *classroomApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data classroom.NewClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	cls, err := api.deps.ClassroomSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusCreated, "classroom created", cls)
}

func (api *classroomApi) queryOwned(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	classrooms, err := api.deps.ClassroomSvc.QueryOwned(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "ok", classrooms)
}

func (api *classroomApi) queryEnrolled(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	classrooms, err := api.deps.ClassroomSvc.QueryEnrolled(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "ok", classrooms)
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "classId")
	if err != nil {
		return err
	}

	cls, err := api.deps.ClassroomSvc.GetWithPosts(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "ok", cls)
}

func (api *classroomApi) addPost(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data classroom.NewPost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	post, err := api.deps.ClassroomSvc.AddPost(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusCreated, "post created", post)
}

func (api *classroomApi) search(ctx echo.Context) error {
	results, err := api.deps.ClassroomSvc.Search(ctx.Request().Context(), ctx.QueryParam("term"))
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "ok", results)
}

func (api *classroomApi) joinByCode(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data classroom.JoinByCode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinByCode")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	cls, err := api.deps.ClassroomSvc.JoinByCode(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "joined classroom", cls)
}

func (api *classroomApi) requestToJoin(ctx echo.Context) error {
	var data classroom.JoinRequestInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequestInput")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.deps.ClassroomSvc.RequestToJoin(ctx.Request().Context(), data); err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "OTP sent to class owner", nil)
}

func (api *classroomApi) verifyOTP(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data classroom.VerifyOTPInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPInput")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.deps.ClassroomSvc.VerifyOTP(ctx.Request().Context(), usr, data); err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "joined classroom", nil)
}
