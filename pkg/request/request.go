// Package request holds the small echo helpers controllers share for
// reading bodies and query parameters into apperr-typed failures.
package request

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"

	"ragapi/pkg/apperr"
)

// DecodeJSON reads a JSON body. Unknown fields are ignored.
func DecodeJSON(c echo.Context, dst any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidField("body", "request body is required")
		}
		return apperr.InvalidField("body", "malformed JSON: "+err.Error())
	}
	return nil
}

func IntQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidField(name, "must be an integer")
	}
	return n, nil
}

func FloatQuery(c echo.Context, name string, def float64) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.InvalidField(name, "must be a number")
	}
	return f, nil
}

func BoolQuery(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.InvalidField(name, "must be true or false")
	}
	return b, nil
}
