package controllerImp

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ragapi/pkg/middleware"
	"ragapi/pkg/request"
	"ragapi/pkg/search/service"
)

const defaultN = 10

type SearchCtrl struct{ s service.SearchService }

func New(s service.SearchService) *SearchCtrl { return &SearchCtrl{s} }

func (h *SearchCtrl) Search(c echo.Context) error {
	n, err := request.IntQuery(c, "n", defaultN)
	if err != nil {
		return err
	}
	threshold, err := request.FloatQuery(c, "similarity_threshold", service.DefaultThreshold)
	if err != nil {
		return err
	}
	fuzzy, err := request.BoolQuery(c, "fuzzy")
	if err != nil {
		return err
	}

	res, err := h.s.Search(c.Request().Context(), c.Param("id"), service.Query{
		Q:         c.QueryParam("q"),
		N:         n,
		Threshold: threshold,
		Rerank:    c.QueryParam("rerank_strategy"),
		Fuzzy:     fuzzy,
		Token:     middleware.Token(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
