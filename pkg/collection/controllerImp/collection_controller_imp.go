package controllerImp

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ragapi/entities"
	"ragapi/pkg/collection/service"
	"ragapi/pkg/collection/serviceImp"
	"ragapi/pkg/request"
)

type CollectionCtrl struct{ s service.CollectionService }

func New(s service.CollectionService) *CollectionCtrl { return &CollectionCtrl{s} }

type listResp struct {
	Collections []entities.Collection `json:"collections"`
	Total       int64                 `json:"total"`
}

func (h *CollectionCtrl) List(c echo.Context) error {
	page, err := request.IntQuery(c, "page", 1)
	if err != nil {
		return err
	}
	perPage, err := request.IntQuery(c, "per_page", serviceImp.DefaultPerPage)
	if err != nil {
		return err
	}
	items, total, err := h.s.List(c.Request().Context(), service.ListParams{
		Page:    page,
		PerPage: perPage,
		Filters: c.QueryParam("filters"),
		Sort:    c.QueryParam("sort"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResp{Collections: items, Total: total})
}

func (h *CollectionCtrl) Create(c echo.Context) error {
	var in service.CreateInput
	if err := request.DecodeJSON(c, &in); err != nil {
		return err
	}
	col, err := h.s.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, col)
}

func (h *CollectionCtrl) Get(c echo.Context) error {
	col, err := h.s.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, col)
}

func (h *CollectionCtrl) Patch(c echo.Context) error {
	var patch entities.CollectionPatch
	if err := request.DecodeJSON(c, &patch); err != nil {
		return err
	}
	col, err := h.s.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, col)
}

func (h *CollectionCtrl) Delete(c echo.Context) error {
	if err := h.s.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
