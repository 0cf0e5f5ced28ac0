package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Envelope is the body of every non-2xx response.
type Envelope struct {
	Message          string       `json:"message"`
	DocumentationURL string       `json:"documentation_url"`
	Errors           []FieldError `json:"errors,omitempty"`
	StatusCode       int          `json:"status_code"`
}

// NewEnvelope renders err for the client. Internal failures keep their
// cause out of the message.
func NewEnvelope(err error, docsBase string) Envelope {
	var (
		status = http.StatusInternalServerError
		msg    = http.StatusText(http.StatusInternalServerError)
		fields []FieldError
	)

	var ae *Error
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ae):
		status = ae.HTTPStatus()
		msg = ae.Message
		fields = ae.Fields
	case errors.As(err, &he):
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}

	return Envelope{
		Message:          msg,
		DocumentationURL: fmt.Sprintf("%s/%d", strings.TrimRight(docsBase, "/"), status),
		Errors:           fields,
		StatusCode:       status,
	}
}

// Handler is installed as echo's HTTPErrorHandler.
func Handler(docsBase string, log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		env := NewEnvelope(err, docsBase)
		if env.StatusCode >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", env.StatusCode),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(env.StatusCode)
		} else {
			err = c.JSON(env.StatusCode, env)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}
