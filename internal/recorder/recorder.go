package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gps-logger/backend/internal/models"
	"github.com/gps-logger/backend/internal/storage"
)

// Recorder stores the most recent fix once per interval.
type Recorder struct {
	store    storage.Store
	interval time.Duration
	log      zerolog.Logger

	mu         sync.Mutex
	latest     *models.GpsFix
	lastStored time.Time
	session    models.RecordingSession

	// ticks is swapped out in tests
	ticks func(d time.Duration) (<-chan time.Time, func())
}

// New creates a recorder with a fresh session ID.
func New(store storage.Store, device string, interval time.Duration, log zerolog.Logger) *Recorder {
	id := uuid.NewString()
	return &Recorder{
		store:    store,
		interval: interval,
		log:      log.With().Str("session", id).Logger(),
		session: models.RecordingSession{
			ID:     id,
			Device: device,
			Status: models.RecorderStatusWaiting,
		},
		ticks: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Status returns a snapshot of the session counters.
func (r *Recorder) Status() models.RecordingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Run reads src until it ends or ctx is cancelled, storing a sample every
// interval. The caller owns src and should close it after Run returns.
func (r *Recorder) Run(ctx context.Context, src io.Reader) error {
	if r.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", r.interval)
	}
	r.log.Info().Str("device", r.session.Device).Dur("interval", r.interval).Msg("Recording started")

	readDone := make(chan error, 1)
	go func() {
		readDone <- r.read(src)
	}()

	tick, stop := r.ticks(r.interval)
	defer stop()
	defer r.setStatus(models.RecorderStatusStopped)

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Int("stored", r.Status().FixesStored).Msg("Recording stopped")
			return nil
		case err := <-readDone:
			if err != nil {
				return fmt.Errorf("reading GPS stream: %w", err)
			}
			r.log.Info().Int("stored", r.Status().FixesStored).Msg("GPS stream ended")
			return nil
		case <-tick:
			if err := r.Sample(ctx); err != nil {
				r.log.Error().Err(err).Msg("Failed to store fix")
			}
		}
	}
}

func (r *Recorder) read(src io.Reader) error {
	reader := NewReader(src, r.log)
	defer r.countLines(reader)
	for {
		fix, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		r.Observe(fix)
		r.countLines(reader)
	}
}

func (r *Recorder) countLines(reader *Reader) {
	r.mu.Lock()
	r.session.Sentences = reader.Sentences
	r.session.BadLines = reader.BadLines
	r.mu.Unlock()
}

// Observe records fix as the latest one available.
func (r *Recorder) Observe(fix models.GpsFix) {
	fix.SessionID = r.session.ID

	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = &fix
	if r.session.Status == models.RecorderStatusWaiting {
		r.session.Status = models.RecorderStatusRecording
		r.log.Info().Float64("lat", fix.Latitude).Float64("lon", fix.Longitude).Msg("First fix acquired")
	}
}

// Sample stores the latest fix unless it was already stored.
func (r *Recorder) Sample(ctx context.Context) error {
	r.mu.Lock()
	if r.latest == nil || r.latest.UTCTime.Equal(r.lastStored) {
		r.mu.Unlock()
		r.log.Debug().Msg("No new fix to store")
		return nil
	}
	fix := *r.latest
	r.mu.Unlock()

	if err := r.store.Insert(ctx, fix); err != nil {
		return err
	}

	r.mu.Lock()
	r.lastStored = fix.UTCTime
	r.session.FixesStored++
	r.mu.Unlock()

	r.log.Debug().Time("utc_time", fix.UTCTime).Float64("lat", fix.Latitude).Float64("lon", fix.Longitude).Msg("Stored fix")
	return nil
}

func (r *Recorder) setStatus(s models.RecorderStatus) {
	r.mu.Lock()
	r.session.Status = s
	r.mu.Unlock()
}
