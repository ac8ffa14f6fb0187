package webserver

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/media"
	"github.com/mdouchement/mediastore/internal/webserver/serializer"
	"github.com/mdouchement/mediastore/internal/webserver/weberror"
	"github.com/pkg/errors"
)

// maxCaptionSize is the maximum size of a caption field.
const maxCaptionSize = 1 << 10

type files struct {
	logger logger.Logger
	media  *media.Service
	kinds  map[string]string
}

func (h *files) Buckets(c echo.Context) error {
	c.Set("handler_method", "files.Buckets")

	buckets, err := h.media.Stats()
	if err != nil {
		return httpError(err)
	}

	if c.Request().Header.Get("Accept") == "text/plain" {
		return c.String(http.StatusOK, serializer.TextBuckets(buckets))
	}
	// "application/json"
	return c.JSON(http.StatusOK, serializer.Buckets(buckets))
}

// Upload streams a multipart form whose caption field comes before the file.
func (h *files) Upload(c echo.Context) error {
	c.Set("handler_method", "files.Upload")

	bucket, err := h.bucket(c)
	if err != nil {
		return httpError(err)
	}

	mr, err := c.Request().MultipartReader()
	if err != nil {
		return weberror.New(http.StatusBadRequest, err.Error())
	}

	var caption string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return weberror.New(http.StatusBadRequest, "missing file")
		}
		if err != nil {
			return weberror.New(http.StatusBadRequest, err.Error())
		}

		switch part.FormName() {
		case "caption":
			caption, err = field(part)
			if err != nil {
				part.Close()
				return weberror.New(http.StatusBadRequest, err.Error())
			}
		case "file":
			result, err := h.media.Upload(c.Request().Context(), bucket, media.File{
				Caption:     caption,
				Filename:    part.FileName(),
				ContentType: part.Header.Get(echo.HeaderContentType),
				Length:      -1,
				Body:        part,
			})
			part.Close()
			if err != nil {
				return httpError(err)
			}

			return c.JSON(http.StatusCreated, serializer.Upload(result))
		}
		part.Close()
	}
}

// UploadMany pairs the caption fields with the file parts by order.
func (h *files) UploadMany(c echo.Context) error {
	c.Set("handler_method", "files.UploadMany")

	bucket, err := h.bucket(c)
	if err != nil {
		return httpError(err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return weberror.New(http.StatusBadRequest, err.Error())
	}
	defer form.RemoveAll()

	headers := form.File["file"]
	if len(headers) > media.MaxFiles {
		return httpError(errors.Wrapf(media.ErrTooManyFiles, "%d files, %d allowed", len(headers), media.MaxFiles))
	}
	captions := form.Value["caption"]

	uploads := make([]media.File, 0, len(headers))
	for i, header := range headers {
		f, err := header.Open()
		if err != nil {
			return weberror.New(http.StatusBadRequest, err.Error())
		}
		defer f.Close()

		file := media.File{
			Filename:    header.Filename,
			ContentType: header.Header.Get(echo.HeaderContentType),
			Length:      header.Size,
			Body:        f,
		}
		if i < len(captions) {
			file.Caption = captions[i]
		}
		uploads = append(uploads, file)
	}

	outcomes, err := h.media.UploadMany(c.Request().Context(), bucket, uploads)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, serializer.Outcomes(uploads, outcomes))
}

func (h *files) List(c echo.Context) error {
	c.Set("handler_method", "files.List")

	bucket, err := h.bucket(c)
	if err != nil {
		return httpError(err)
	}

	listings, err := h.media.List(bucket)
	if err != nil {
		return httpError(err)
	}

	if c.Request().Header.Get("Accept") == "text/plain" {
		return c.String(http.StatusOK, serializer.TextListings(listings))
	}
	// "application/json"
	return c.JSON(http.StatusOK, serializer.Listings(listings))
}

func (h *files) Show(c echo.Context) error {
	c.Set("handler_method", "files.Show")

	bucket, err := h.bucket(c)
	if err != nil {
		return httpError(err)
	}

	manifest, err := h.media.FetchManifest(bucket, c.Param("name"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, serializer.Manifest(manifest))
}

func (h *files) Stream(c echo.Context) error {
	c.Set("handler_method", "files.Stream")

	bucket, err := h.bucket(c)
	if err != nil {
		return httpError(err)
	}

	r, err := h.media.FetchBytes(c.Request().Context(), bucket, c.Param("name"))
	if err != nil {
		return httpError(err)
	}
	defer r.Close()

	manifest := r.Manifest()
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(manifest.Length, 10))
	c.Response().Header().Set("Etag", manifest.Checksum)
	return c.Stream(http.StatusOK, manifest.ContentType, r)
}

// Delete removes the object identified by the id given in place of the name.
func (h *files) Delete(c echo.Context) error {
	c.Set("handler_method", "files.Delete")

	bucket, err := h.bucket(c)
	if err != nil {
		return httpError(err)
	}

	deleted, err := h.media.DeleteObject(c.Request().Context(), bucket, c.Param("name"))
	if err != nil {
		return httpError(err)
	}
	if !deleted {
		return weberror.New(http.StatusNotFound, "file not found")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *files) bucket(c echo.Context) (string, error) {
	bucket, ok := h.kinds[c.Param("kind")]
	if !ok {
		return "", errors.Wrap(media.ErrUnknownBucket, c.Param("kind"))
	}
	return bucket, nil
}

func field(part *multipart.Part) (string, error) {
	value, err := io.ReadAll(io.LimitReader(part, maxCaptionSize+1))
	if err != nil {
		return "", err
	}
	if len(value) > maxCaptionSize {
		return "", errors.Errorf("%s field is too large", part.FormName())
	}
	return string(value), nil
}
