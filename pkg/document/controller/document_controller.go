package controller

import "github.com/labstack/echo/v4"

type DocumentController interface {
	List(c echo.Context) error
	Upload(c echo.Context) error
	IngestURL(c echo.Context) error
	Delete(c echo.Context) error
}
