package router

import (
	"strconv"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"ragapi/pkg/apperr"
	colCtrl "ragapi/pkg/collection/controller"
	docCtrl "ragapi/pkg/document/controller"
	"ragapi/pkg/middleware"
	searchCtrl "ragapi/pkg/search/controller"
)

type Options struct {
	DocsBaseURL    string
	MaxUploadBytes int64
	APITokens      []string
	Log            *zap.Logger
}

func New(
	e *echo.Echo,
	opts Options,
	collectionCtrl colCtrl.CollectionController,
	documentCtrl docCtrl.DocumentController,
	searchCtrl searchCtrl.SearchController,
	healthCtrl interface{ Health(echo.Context) error },
) *echo.Echo {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.Handler(opts.DocsBaseURL, log)

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLog(log))
	if opts.MaxUploadBytes > 0 {
		e.Use(echoMiddleware.BodyLimit(strconv.FormatInt(opts.MaxUploadBytes, 10) + "B"))
	}

	e.GET("/health", healthCtrl.Health)

	v1 := e.Group("/v1")
	v1.GET("/collections", collectionCtrl.List)
	v1.POST("/collections", collectionCtrl.Create)
	v1.GET("/collections/:id", collectionCtrl.Get)
	v1.PATCH("/collections/:id", collectionCtrl.Patch)
	v1.DELETE("/collections/:id", collectionCtrl.Delete)

	bearer := middleware.Bearer(opts.APITokens)
	v1.GET("/collections/:id/documents", documentCtrl.List, bearer)
	v1.POST("/collections/:id/documents", documentCtrl.Upload, bearer)
	v1.POST("/collections/:id/documents/url", documentCtrl.IngestURL, bearer)
	v1.DELETE("/collections/:id/documents/:file_id", documentCtrl.Delete, bearer)
	v1.GET("/collections/:id/search", searchCtrl.Search, bearer)

	return e
}
