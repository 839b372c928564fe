package echoapi

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
)

// uploadFieldName is the multipart field submissions carry their files under.
const uploadFieldName = "file"

type assignmentApi struct {
	deps ServerDeps
}

func registerAssignmentAPI(g *echo.Group, session echo.MiddlewareFunc, deps ServerDeps) {
	api := assignmentApi{deps: deps}

	ag := g.Group("", session)
	ag.GET("/:classId/assignments", api.query)
	ag.POST("/assignments", api.create)

	dg := ag.Group("/assignments/:id")
	dg.PUT("", api.update)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy)
	// POST aliases kept for clients that cannot send PUT/PATCH/DELETE
	dg.POST("/update", api.update)
	dg.POST("/delete", api.destroy)
	dg.POST("/submit", api.submit)
	dg.GET("/submission-status", api.submissionStatus)
	dg.GET("/submissions", api.querySubmissions)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	a, err := api.deps.AssignmentSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusCreated, "assignment created", a)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	classID, err := pathID(ctx, "classId")
	if err != nil {
		return err
	}

	assignments, err := api.deps.AssignmentSvc.Query(ctx.Request().Context(), classID)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "ok", assignments)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	a, err := api.deps.AssignmentSvc.Update(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "assignment updated", a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	if err := api.deps.AssignmentSvc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "assignment deleted", nil)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	data := assignment.NewSubmission{TextAnswer: ctx.FormValue("textAnswer")}

	form, err := ctx.MultipartForm()
	if err != nil && err != http.ErrNotMultipart {
		return errors.Wrap(err, "parsing multipart form")
	}
	if form != nil {
		files := form.File[uploadFieldName]
		if max := api.deps.Conf.Uploads.MaxFiles; len(files) > max {
			return core.NewValidationError(errors.Errorf("at most %d files allowed", max))
		}
		for _, fh := range files {
			ref, err := api.storeUpload(ctx, fh)
			if err != nil {
				return err
			}
			data.Files = append(data.Files, ref)
		}
	}

	sub, err := api.deps.AssignmentSvc.Submit(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusCreated, "assignment submitted", sub)
}

func (api *assignmentApi) storeUpload(ctx echo.Context, fh *multipart.FileHeader) (assignment.FileRef, error) {
	src, err := fh.Open()
	if err != nil {
		return assignment.FileRef{}, errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	name := core.UploadName(fh.Filename)
	url, err := api.deps.FileStore.Save(ctx.Request().Context(), name, src)
	if err != nil {
		return assignment.FileRef{}, core.NewUpstreamError(fmt.Sprintf("storing upload %q", fh.Filename), err)
	}
	return assignment.FileRef{
		Filename:    name,
		URL:         url,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}, nil
}

func (api *assignmentApi) submissionStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	status, err := api.deps.AssignmentSvc.GetStatus(ctx.Request().Context(), usr, id)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "ok", status)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	submissions, err := api.deps.AssignmentSvc.QuerySubmissions(ctx.Request().Context(), usr, id)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "ok", submissions)
}
