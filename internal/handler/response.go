package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-forwarder/internal/model"
)

// writeJSON encodes v with model.Encode and writes it with status.
func writeJSON(c echo.Context, status int, v any) error {
	data, err := model.Encode(v)
	if err != nil {
		return err
	}
	return writeRaw(c, status, data)
}

// writeRaw writes data verbatim with the JSON content type. Statuses that
// cannot carry a body are written without one.
func writeRaw(c echo.Context, status int, data []byte) error {
	if !bodyAllowed(status) {
		return c.NoContent(status)
	}
	return c.Blob(status, model.ContentTypeJSON, data)
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
