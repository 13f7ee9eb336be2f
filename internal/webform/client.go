package webform

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gps-logger/backend/internal/config"
)

const userAgent = "gpslog"

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("got %d from %s", e.Code, e.URL)
}

// Client pushes a location into a settings form behind HTTP basic auth.
type Client struct {
	SettingsURL string
	Username    string
	Password    string
	FormID      string
	Precision   int

	HTTP *http.Client
	log  zerolog.Logger
}

// Result is what was submitted.
type Result struct {
	Latitude  float64
	Longitude float64
	URL       string
}

func NewClient(cfg config.BirdnetConfig, log zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		SettingsURL: cfg.SettingsURL,
		Username:    cfg.Username,
		Password:    cfg.Password,
		FormID:      cfg.FormID,
		Precision:   cfg.Precision,
		HTTP:        &http.Client{Timeout: timeout},
		log:         log,
	}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}

// SetLocation loads the settings page, fills in latitude and longitude,
// clears date and time so the device keeps its own clock, and submits.
func (c *Client) SetLocation(ctx context.Context, lat, lon float64) (Result, error) {
	res := Result{
		Latitude:  Round(lat, c.Precision),
		Longitude: Round(lon, c.Precision),
	}

	page, err := url.Parse(c.SettingsURL)
	if err != nil {
		return res, fmt.Errorf("bad settings url: %w", err)
	}

	resp, err := c.do(ctx, http.MethodGet, page.String(), nil)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return res, err
	}

	form, err := ParseForm(resp.Body, c.FormID)
	if err != nil {
		return res, err
	}
	c.log.Debug().Str("form", form.ID).Str("method", form.Method).Str("action", form.Action).Msg("Found settings form")

	if err := form.Set("latitude", strconv.FormatFloat(res.Latitude, 'f', -1, 64)); err != nil {
		return res, err
	}
	if err := form.Set("longitude", strconv.FormatFloat(res.Longitude, 'f', -1, 64)); err != nil {
		return res, err
	}
	form.Clear("date")
	form.Clear("time")

	target, err := form.ResolveAction(resp.Request.URL)
	if err != nil {
		return res, err
	}

	var submit *http.Response
	if form.Method == http.MethodPost {
		body := strings.NewReader(form.Values().Encode())
		submit, err = c.do(ctx, http.MethodPost, target.String(), body)
	} else {
		q := *target
		q.RawQuery = form.Values().Encode()
		submit, err = c.do(ctx, http.MethodGet, q.String(), nil)
	}
	if err != nil {
		return res, err
	}
	defer submit.Body.Close()
	io.Copy(io.Discard, submit.Body)

	if err := checkStatus(submit); err != nil {
		return res, err
	}

	res.URL = submit.Request.URL.String()
	c.log.Info().Float64("lat", res.Latitude).Float64("lon", res.Longitude).Str("url", res.URL).Msg("Location submitted")
	return res, nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, URL: resp.Request.URL.String()}
	}
	return nil
}
