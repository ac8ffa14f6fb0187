package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/media"
	"github.com/mdouchement/mediastore/internal/webserver/serializer"
	"github.com/mdouchement/mediastore/internal/webserver/weberror"
)

type records struct {
	logger logger.Logger
	media  *media.Service
}

func (h *records) List(c echo.Context) error {
	c.Set("handler_method", "records.List")

	records, err := h.media.Records()
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, serializer.Records(records))
}

func (h *records) Recent(c echo.Context) error {
	c.Set("handler_method", "records.Recent")

	record, err := h.media.MostRecentRecord()
	if err != nil {
		return httpError(err)
	}
	if record == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, serializer.Record(record))
}

func (h *records) Delete(c echo.Context) error {
	c.Set("handler_method", "records.Delete")

	deleted, err := h.media.DeleteIndexRecord(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if !deleted {
		return weberror.New(http.StatusNotFound, "record not found")
	}

	h.logger.Infof("Record %s deleted", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
