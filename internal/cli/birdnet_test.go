package cli

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gps-logger/backend/internal/models"
	"github.com/gps-logger/backend/internal/testutil"
	"github.com/gps-logger/backend/internal/webform"
)

func latestFixes() []models.GpsFix {
	return []models.GpsFix{
		testutil.Fix(time.Date(2022, 11, 5, 20, 0, 0, 0, time.UTC), 1, 1),
		testutil.Fix(time.Date(2022, 11, 5, 21, 0, 0, 0, time.UTC), 52.123456, 4.298765),
	}
}

func TestBirdnetPushesLatestFix(t *testing.T) {
	h := newHarness(t, latestFixes()...)

	require.Equal(t, ExitOK, h.run("birdnet"), h.stderr.String())
	assert.Equal(t, 1, h.pusher.Calls())
	assert.Contains(t, h.stdout.String(), "Set lat, lon to (52.1235, 4.2988)")

	status, err := os.ReadFile(h.cfg.Birdnet.StatusLog)
	require.NoError(t, err)
	assert.Equal(t, "Set lat, lon to (52.1235, 4.2988)\n", string(status))

	st, err := loadPushState(h.cfg.Birdnet.StateFile)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 52.1235, st.Latitude)
	assert.Equal(t, 4.2988, st.Longitude)
	assert.True(t, st.FixTime.Equal(time.Date(2022, 11, 5, 21, 0, 0, 0, time.UTC)))
}

func TestBirdnetSkipsUnchangedLocation(t *testing.T) {
	h := newHarness(t, latestFixes()...)

	require.Equal(t, ExitOK, h.run("birdnet"))
	require.Equal(t, ExitOK, h.run("birdnet"))
	assert.Equal(t, 1, h.pusher.Calls())
	assert.Contains(t, h.stdout.String(), "Location unchanged at (52.1235, 4.2988)")

	require.Equal(t, ExitOK, h.run("birdnet", "--force"))
	assert.Equal(t, 2, h.pusher.Calls())

	status, err := os.ReadFile(h.cfg.Birdnet.StatusLog)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(status), "\n"))
}

func TestBirdnetPushesMovedLocation(t *testing.T) {
	h := newHarness(t, latestFixes()...)
	require.Equal(t, ExitOK, h.run("birdnet"))

	require.NoError(t, h.store.Insert(t.Context(),
		testutil.Fix(time.Date(2022, 11, 5, 22, 0, 0, 0, time.UTC), 48.85, 2.35)))
	require.Equal(t, ExitOK, h.run("birdnet"))
	assert.Equal(t, 2, h.pusher.Calls())
}

func TestBirdnetIgnoresCorruptState(t *testing.T) {
	h := newHarness(t, latestFixes()...)
	require.NoError(t, os.MkdirAll(h.dir+"/data", 0755))
	require.NoError(t, os.WriteFile(h.cfg.Birdnet.StateFile, []byte{0xc1, 0xff}, 0644))

	require.Equal(t, ExitOK, h.run("birdnet"), h.stderr.String())
	assert.Equal(t, 1, h.pusher.Calls())
	assert.Contains(t, h.stderr.String(), "Ignoring push state")
}

func TestBirdnetFailures(t *testing.T) {
	t.Run("no fixes", func(t *testing.T) {
		h := newHarness(t)
		assert.Equal(t, ExitFailure, h.run("birdnet"))
		assert.Contains(t, h.stderr.String(), "no location recorded yet")
		assert.Zero(t, h.pusher.Calls())
	})

	t.Run("form rejected", func(t *testing.T) {
		h := newHarness(t, latestFixes()...)
		h.pusher.err = &webform.StatusError{Code: 500, URL: "http://localhost/views.php?view=Settings"}

		assert.Equal(t, ExitFailure, h.run("birdnet"))
		assert.Contains(t, h.stderr.String(), "got 500 from http://localhost/views.php?view=Settings")

		_, err := os.Stat(h.cfg.Birdnet.StatusLog)
		assert.True(t, os.IsNotExist(err), "nothing logged on failure")
		_, err = os.Stat(h.cfg.Birdnet.StateFile)
		assert.True(t, os.IsNotExist(err))
	})
}
