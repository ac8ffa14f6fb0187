package webserver

import (
	"net/http"

	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/mdouchement/mediastore/internal/media"
	"github.com/mdouchement/mediastore/internal/webserver/weberror"
	"github.com/pkg/errors"
)

var statuses = []struct {
	err  error
	code int
}{
	{media.ErrDuplicateCaption, http.StatusConflict},
	{chunkstore.ErrNameConflict, http.StatusConflict},
	{media.ErrNotFound, http.StatusNotFound},
	{media.ErrNotDisplayable, http.StatusUnsupportedMediaType},
	{media.ErrTooManyFiles, http.StatusBadRequest},
	{media.ErrMissingCaption, http.StatusBadRequest},
	{media.ErrUnknownBucket, http.StatusBadRequest},
	{chunkstore.ErrIncompleteUpload, http.StatusBadRequest},
	{media.ErrStorageUnavailable, http.StatusServiceUnavailable},
}

// httpError converts a media error to its rendered form.
func httpError(err error) error {
	for _, status := range statuses {
		if errors.Is(err, status.err) {
			return weberror.New(status.code, err.Error())
		}
	}
	return weberror.New(http.StatusInternalServerError, err.Error())
}
