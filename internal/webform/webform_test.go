package webform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gps-logger/backend/internal/config"
)

const settingsPage = `<!DOCTYPE html>
<html><body>
<form id="other" action="/elsewhere" method="POST">
  <input name="latitude" value="1">
</form>
<form id="basicform" action="/views.php?view=Settings" method="post">
  <input type="text" name="latitude" value="0.0">
  <input type="text" name="longitude" value="0.0">
  <input type="date" name="date" value="2022-01-01">
  <input type="time" name="time" value="12:00">
  <input type="checkbox" name="apprise_notify_new_species" checked>
  <input type="checkbox" name="apprise_weekly_report">
  <input type="hidden" name="status" value="success">
  <input type="text" name="locked" value="x" disabled>
  <select name="language">
    <option value="en">English</option>
    <option value="de" selected>Deutsch</option>
  </select>
  <select name="model"><option>BirdNET_6K</option><option>BirdNET_GLOBAL</option></select>
  <textarea name="notes">hello &amp; bye</textarea>
  <button type="submit" name="submit" value="settings">Update Settings</button>
  <button type="submit" name="other_submit" value="x">Other</button>
  <button type="button" name="js" value="y">JS</button>
</form>
<input name="outside" value="z">
</body></html>`

func TestParseForm(t *testing.T) {
	form, err := ParseForm(strings.NewReader(settingsPage), "basicform")
	require.NoError(t, err)

	assert.Equal(t, "POST", form.Method)
	assert.Equal(t, "/views.php?view=Settings", form.Action)

	v := form.Values()
	assert.Equal(t, "0.0", v.Get("latitude"))
	assert.Equal(t, "2022-01-01", v.Get("date"))
	assert.Equal(t, "on", v.Get("apprise_notify_new_species"))
	assert.False(t, v.Has("apprise_weekly_report"))
	assert.False(t, v.Has("locked"))
	assert.Equal(t, "success", v.Get("status"))
	assert.Equal(t, "de", v.Get("language"))
	assert.Equal(t, "BirdNET_6K", v.Get("model"))
	assert.Equal(t, "hello & bye", v.Get("notes"))
	assert.Equal(t, "settings", v.Get("submit"))
	assert.False(t, v.Has("other_submit"))
	assert.False(t, v.Has("js"))
	assert.False(t, v.Has("outside"))
	assert.Len(t, v["latitude"], 1, "fields of other forms are ignored")
}

func TestParseFormNotFound(t *testing.T) {
	_, err := ParseForm(strings.NewReader(settingsPage), "advancedform")
	assert.ErrorIs(t, err, ErrFormNotFound)
}

func TestFormSetAndClear(t *testing.T) {
	form, err := ParseForm(strings.NewReader(settingsPage), "basicform")
	require.NoError(t, err)

	require.NoError(t, form.Set("latitude", "52.1"))
	assert.Equal(t, "52.1", form.Get("latitude"))
	assert.ErrorContains(t, form.Set("altitude", "3"), "no field")

	form.Clear("date")
	assert.False(t, form.Has("date"))

	page, _ := url.Parse("http://pi.local/views.php?view=Settings")
	target, err := form.ResolveAction(page)
	require.NoError(t, err)
	assert.Equal(t, "http://pi.local/views.php?view=Settings", target.String())

	form.Action = ""
	target, err = form.ResolveAction(page)
	require.NoError(t, err)
	assert.Equal(t, page, target)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 52.1235, Round(52.123456, 4))
	assert.Equal(t, -4.3, Round(-4.30001, 4))
	assert.Equal(t, 52.0, Round(52.4, 0))
}

// birdnetServer emulates the BirdNET-Pi settings page behind basic auth.
type birdnetServer struct {
	mu        sync.Mutex
	submitted url.Values
	method    string
	page      string
	postCode  int
}

func (b *birdnetServer) start(t *testing.T) *httptest.Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.BasicAuth(func(user, pass string, c echo.Context) (bool, error) {
		return user == "birdnet" && pass == "secret", nil
	}))

	e.GET("/views.php", func(c echo.Context) error {
		if c.QueryParam("latitude") != "" {
			return b.record(c, c.QueryParams())
		}
		return c.HTML(http.StatusOK, b.page)
	})
	e.POST("/views.php", func(c echo.Context) error {
		params, err := c.FormParams()
		if err != nil {
			return err
		}
		return b.record(c, params)
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func (b *birdnetServer) record(c echo.Context, params url.Values) error {
	b.mu.Lock()
	b.submitted = params
	b.method = c.Request().Method
	code := b.postCode
	b.mu.Unlock()
	if code == 0 {
		code = http.StatusOK
	}
	return c.String(code, "saved")
}

func newTestClient(srv *httptest.Server, password string) *Client {
	cfg := config.DefaultConfig().Birdnet
	cfg.SettingsURL = srv.URL + "/views.php?view=Settings"
	cfg.Password = password
	return NewClient(cfg, zerolog.Nop())
}

func TestSetLocationPost(t *testing.T) {
	b := &birdnetServer{page: settingsPage}
	srv := b.start(t)

	res, err := newTestClient(srv, "secret").SetLocation(context.Background(), 52.123456, 4.298765)
	require.NoError(t, err)
	assert.Equal(t, 52.1235, res.Latitude)
	assert.Equal(t, 4.2988, res.Longitude)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, http.MethodPost, b.method)
	assert.Equal(t, "52.1235", b.submitted.Get("latitude"))
	assert.Equal(t, "4.2988", b.submitted.Get("longitude"))
	assert.False(t, b.submitted.Has("date"))
	assert.False(t, b.submitted.Has("time"))
	assert.Equal(t, "de", b.submitted.Get("language"))
}

func TestSetLocationGetForm(t *testing.T) {
	page := `<form id="basicform" action="" method="GET">
<input name="latitude" value="0"><input name="longitude" value="0">
<input name="date" value=""><input name="time" value="">
<button type="submit" name="view" value="Settings">Update</button></form>`
	b := &birdnetServer{page: page}
	srv := b.start(t)

	_, err := newTestClient(srv, "secret").SetLocation(context.Background(), 48.85, 2.35)
	require.NoError(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, http.MethodGet, b.method)
	assert.Equal(t, "48.85", b.submitted.Get("latitude"))
	assert.Equal(t, "Settings", b.submitted.Get("view"))
}

func TestSetLocationErrors(t *testing.T) {
	t.Run("bad credentials", func(t *testing.T) {
		srv := (&birdnetServer{page: settingsPage}).start(t)

		_, err := newTestClient(srv, "wrong").SetLocation(context.Background(), 1, 2)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusUnauthorized, se.Code)
		assert.Contains(t, se.URL, "/views.php")
		assert.Contains(t, err.Error(), "got 401 from")
	})

	t.Run("submit rejected", func(t *testing.T) {
		srv := (&birdnetServer{page: settingsPage, postCode: http.StatusInternalServerError}).start(t)

		_, err := newTestClient(srv, "secret").SetLocation(context.Background(), 1, 2)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusInternalServerError, se.Code)
	})

	t.Run("form missing", func(t *testing.T) {
		srv := (&birdnetServer{page: "<html><body>maintenance</body></html>"}).start(t)

		_, err := newTestClient(srv, "secret").SetLocation(context.Background(), 1, 2)
		assert.ErrorIs(t, err, ErrFormNotFound)
	})

	t.Run("field missing", func(t *testing.T) {
		srv := (&birdnetServer{page: `<form id="basicform"><input name="latitude"></form>`}).start(t)

		_, err := newTestClient(srv, "secret").SetLocation(context.Background(), 1, 2)
		assert.ErrorContains(t, err, `no field "longitude"`)
	})

	t.Run("server down", func(t *testing.T) {
		srv := (&birdnetServer{page: settingsPage}).start(t)
		c := newTestClient(srv, "secret")
		srv.Close()

		_, err := c.SetLocation(context.Background(), 1, 2)
		assert.Error(t, err)
	})
}
