package controllerImp

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"ragapi/entities"
	"ragapi/pkg/apperr"
	"ragapi/pkg/document/service"
	"ragapi/pkg/request"
)

type DocumentCtrl struct{ s service.DocumentService }

func New(s service.DocumentService) *DocumentCtrl { return &DocumentCtrl{s} }

type listResp struct {
	Documents []entities.Document `json:"documents"`
	Total     int                 `json:"total"`
}

func (h *DocumentCtrl) List(c echo.Context) error {
	docs, err := h.s.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResp{Documents: docs, Total: len(docs)})
}

func (h *DocumentCtrl) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.InvalidField("file", `multipart field "file" is required`)
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Internal("open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return apperr.Internal("read upload", err)
	}
	res, err := h.s.Ingest(c.Request().Context(), c.Param("id"), fh.Filename, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *DocumentCtrl) IngestURL(c echo.Context) error {
	var in service.URLInput
	if err := request.DecodeJSON(c, &in); err != nil {
		return err
	}
	res, err := h.s.IngestURL(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *DocumentCtrl) Delete(c echo.Context) error {
	if err := h.s.Delete(c.Request().Context(), c.Param("id"), c.Param("file_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
