package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/padraicbc/library/auth"
	"github.com/padraicbc/library/catalog"
	bundb "github.com/padraicbc/library/db"
	"github.com/padraicbc/library/files"
	"github.com/padraicbc/library/membership"
	"github.com/padraicbc/library/models"
	"github.com/padraicbc/library/session"
	"github.com/padraicbc/library/store"
)

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newServer(t *testing.T) *client {
	t.Helper()
	db, err := bundb.OpenSQLite(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, bundb.CreateTables(context.Background(), db))

	local, err := files.NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	users := store.NewUsers(db)
	h := New(
		auth.NewService(users, auth.NewPasswords(bcrypt.MinCost), nil),
		catalog.NewService(store.NewBooks(db), local, []string{"pdf"}, nil),
		membership.NewService(users, nil),
		db,
		nil,
	)

	e := echo.New()
	h.Routes(e, session.NewCodec([]byte(strings.Repeat("s", 32)), time.Hour), false, "64K")
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return newClient(t, srv.URL)
}

func newClient(t *testing.T, base string) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: base, http: &http.Client{Jar: jar}}
}

func (c *client) do(req *http.Request) (int, []byte) {
	c.t.Helper()
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	return res.StatusCode, body
}

func (c *client) form(method, path string, vals url.Values) (int, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, strings.NewReader(vals.Encode()))
	require.NoError(c.t, err)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return c.do(req)
}

func (c *client) get(path string) (int, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *client) multipartBody(title, filename string, content []byte) (*bytes.Buffer, string) {
	c.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(c.t, w.WriteField("title", title))
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(c.t, err)
		_, err = part.Write(content)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, w.Close())
	return &buf, w.FormDataContentType()
}

func (c *client) upload(title, filename string, content []byte) (int, []byte) {
	c.t.Helper()
	body, contentType := c.multipartBody(title, filename, content)
	req, err := http.NewRequest(http.MethodPost, c.base+"/books", body)
	require.NoError(c.t, err)
	req.Header.Set(echo.HeaderContentType, contentType)
	return c.do(req)
}

// uploadChunked sends the upload without a Content-Length.
func (c *client) uploadChunked(title, filename string, content []byte) (int, []byte) {
	c.t.Helper()
	body, contentType := c.multipartBody(title, filename, content)
	req, err := http.NewRequest(http.MethodPost, c.base+"/books", io.MultiReader(body))
	require.NoError(c.t, err)
	require.EqualValues(c.t, -1, req.ContentLength)
	req.Header.Set(echo.HeaderContentType, contentType)
	return c.do(req)
}

func (c *client) register(username, email, password string) (int, []byte) {
	return c.form(http.MethodPost, "/register", url.Values{
		"username": {username}, "email": {email}, "password": {password},
	})
}

func (c *client) login(username, password string) int {
	code, _ := c.form(http.MethodPost, "/login", url.Values{"username": {username}, "password": {password}})
	return code
}

func message(t *testing.T, body []byte) string {
	t.Helper()
	var m struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &m), string(body))
	return m.Message
}

func TestScenario(t *testing.T) {
	c := newServer(t)
	pdf := []byte("%PDF-1.4 test document")

	code, body := c.register("alice", "a@x.com", "pw1")
	require.Equal(t, http.StatusCreated, code, string(body))
	var alice models.Member
	require.NoError(t, json.Unmarshal(body, &alice))
	assert.Equal(t, "alice", alice.Username)
	assert.NotContains(t, string(body), "pw1")

	code, body = c.register("alice", "b@y.com", "pw2")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "username already taken", message(t, body))

	code, body = c.register("bob", "a@x.com", "pw2")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "email already taken", message(t, body))

	// Guarded routes refuse anonymous callers.
	code, _ = c.upload("Title1", "book.pdf", pdf)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = c.get("/members")
	assert.Equal(t, http.StatusUnauthorized, code)

	assert.Equal(t, http.StatusUnauthorized, c.login("alice", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, c.login("ghost", "pw1"))
	require.Equal(t, http.StatusOK, c.login("alice", "pw1"))

	code, body = c.upload("Title1", "book.pdf", pdf)
	require.Equal(t, http.StatusCreated, code, string(body))
	var book models.Book
	require.NoError(t, json.Unmarshal(body, &book))
	assert.Equal(t, "book.pdf", book.Filename)

	code, body = c.upload("Bad", "virus.exe", []byte("MZ"))
	assert.Equal(t, http.StatusUnsupportedMediaType, code)
	assert.Equal(t, `file type "exe" not allowed, allowed: pdf`, message(t, body))

	code, body = c.get("/books")
	require.Equal(t, http.StatusOK, code)
	var books []models.Book
	require.NoError(t, json.Unmarshal(body, &books))
	require.Len(t, books, 1)
	assert.Equal(t, "Title1", books[0].Title)

	res, err := c.http.Get(c.base + "/uploads/book.pdf")
	require.NoError(t, err)
	got, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/pdf", res.Header.Get(echo.HeaderContentType))
	assert.Equal(t, pdf, got)

	code, body = c.register("bob", "b@y.com", "pw2")
	require.Equal(t, http.StatusCreated, code)
	var bob models.Member
	require.NoError(t, json.Unmarshal(body, &bob))

	code, body = c.get("/members")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(body), "password")
	var members []models.Member
	require.NoError(t, json.Unmarshal(body, &members))
	assert.Len(t, members, 2)

	code, _ = c.form(http.MethodPost, "/books/"+itoa(book.ID)+"/delete", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = c.get("/uploads/book.pdf")
	assert.Equal(t, http.StatusNotFound, code)
	code, body = c.get("/books")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(body))

	code, _ = c.form(http.MethodPost, "/members/"+itoa(bob.ID)+"/delete", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, http.StatusUnauthorized, c.login("bob", "pw2"))

	code, _ = c.form(http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = c.get("/members")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegister_Validation(t *testing.T) {
	c := newServer(t)

	code, body := c.register("", "a@x.com", "pw")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, message(t, body), "username")

	code, _ = c.register("alice", "nope", "pw")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUploadBook_Validation(t *testing.T) {
	c := newServer(t)
	_, _ = c.register("alice", "a@x.com", "pw1")
	require.Equal(t, http.StatusOK, c.login("alice", "pw1"))

	code, body := c.upload("", "book.pdf", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, message(t, body), "title")

	code, body = c.upload("T", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, message(t, body), "file")

	code, _ = c.upload("Big", "big.pdf", bytes.Repeat([]byte("x"), 100<<10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)

	code, _ = c.uploadChunked("Big", "big.pdf", bytes.Repeat([]byte("x"), 100<<10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)

	code, body = c.uploadChunked("Small", "small.pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusCreated, code, string(body))

	code, _ = c.form(http.MethodPost, "/books", url.Values{"title": {"T"}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDelete_MissingAndMalformedIDs(t *testing.T) {
	c := newServer(t)
	_, _ = c.register("alice", "a@x.com", "pw1")
	require.Equal(t, http.StatusOK, c.login("alice", "pw1"))

	req, err := http.NewRequest(http.MethodDelete, c.base+"/books/999", nil)
	require.NoError(t, err)
	code, body := c.do(req)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"deleted":false}`, string(body))

	code, _ = c.form(http.MethodPost, "/members/abc/delete", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDeletedMemberSessionIsRejected(t *testing.T) {
	c := newServer(t)
	code, body := c.register("alice", "a@x.com", "pw1")
	require.Equal(t, http.StatusCreated, code)
	var alice models.Member
	require.NoError(t, json.Unmarshal(body, &alice))
	require.Equal(t, http.StatusOK, c.login("alice", "pw1"))

	code, _ = c.form(http.MethodPost, "/members/"+itoa(alice.ID)+"/delete", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = c.get("/members")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFetchFile_RejectsUnsanitizedNames(t *testing.T) {
	c := newServer(t)

	code, _ := c.get("/uploads/.hidden")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = c.get("/uploads/missing.pdf")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthz(t *testing.T) {
	c := newServer(t)
	code, body := c.get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

func TestHealthz_DatabaseDown(t *testing.T) {
	h := New(nil, nil, nil, downDB{}, nil)
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)

	err := h.Healthz(ctx)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
