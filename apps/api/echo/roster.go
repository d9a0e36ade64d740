package echoapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/roster"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type rosterApi struct {
	svc      *roster.Service
	validate *validator.Validate
}

func registerRosterAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := rosterApi{svc: opts.RosterSvc, validate: opts.Validate}

	// teachers only; students never touch rosters
	ug := g.Group("/upload", jwt, teacherMiddleware())
	ug.POST("/:kind", api.upload)

	g.GET("/students/download", api.download(roster.KindStudents), jwt, teacherMiddleware())
	g.GET("/teachers/download", api.download(roster.KindTeachers), jwt, adminMiddleware())
	g.GET("/games/download", api.download(roster.KindGames), jwt, teacherMiddleware())
}

// Handlers

func (api *rosterApi) upload(ctx echo.Context) error {
	kind, err := roster.ParseKind(ctx.Param("kind"))
	if err != nil {
		return err
	}

	var data UploadRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UploadRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	contents, err := data.Decode()
	if err != nil {
		return core.NewValidationError(errors.New("file is not valid base64"))
	}

	res, err := api.svc.Upload(ctx.Request().Context(), kind, contents)
	if err != nil {
		return errors.Wrap(err, "uploading roster")
	}

	// mail the row errors back to the uploader when we know their address
	if claims, cErr := getContextClaims(ctx); cErr == nil && claims.Email != "" {
		api.svc.EmailReport(res, mail.Address{Name: claims.Name, Address: claims.Email})
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *rosterApi) download(kind roster.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		buf, filename, err := api.svc.Export(ctx.Request().Context(), kind)
		if err != nil {
			return errors.Wrap(err, "exporting roster")
		}
		ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
		return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

type UploadRequest struct {
	File string `json:"file" validate:"required"`
}

func (ur *UploadRequest) Validate(validate *validator.Validate) error {
	ur.File = strings.TrimSpace(ur.File)
	return validate.Struct(ur)
}

// Decode returns the spreadsheet bytes; a data URI prefix is tolerated.
func (ur UploadRequest) Decode() ([]byte, error) {
	payload := ur.File
	if i := strings.Index(payload, ";base64,"); i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(payload)
}
