package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/library/files"
)

// ListBooks returns every book.
func (h *Handler) ListBooks(c echo.Context) error {
	books, err := h.catalog.ListBooks(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, books)
}

// UploadBook stores a multipart upload with fields "title" and "file".
func (h *Handler) UploadBook(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		// BodyLimit reports an oversized chunked body while the form is read.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "expected a multipart form")
	}

	var (
		title   string
		name    string
		content io.Reader
	)
	if v := form.Value["title"]; len(v) > 0 {
		title = v[0]
	}
	// A missing file is reported by the input validation below.
	if fhs := form.File["file"]; len(fhs) > 0 {
		src, err := fhs[0].Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
		}
		defer src.Close()
		name, content = fhs[0].Filename, src
	}

	in, err := h.catalog.NewUploadInput(title, name, content)
	if err != nil {
		return h.fail(err)
	}
	book, err := h.catalog.UploadBook(c.Request().Context(), in)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, book)
}

// DeleteBook removes a book and its artifact. Deleting a missing book is not an error.
func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	removed, err := h.catalog.DeleteBook(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": removed})
}

// FetchFile streams a stored artifact inline.
func (h *Handler) FetchFile(c echo.Context) error {
	rc, key, err := h.catalog.FetchFile(c.Request().Context(), c.Param("filename"))
	if err != nil {
		return h.fail(err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", key.String()))
	return c.Stream(http.StatusOK, files.ContentType(key), rc)
}
