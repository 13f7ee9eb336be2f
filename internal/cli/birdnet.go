package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/gps-logger/backend/internal/storage"
	"github.com/gps-logger/backend/internal/webform"
)

// pushState remembers what was last sent to the settings form.
type pushState struct {
	Latitude  float64   `msgpack:"latitude"`
	Longitude float64   `msgpack:"longitude"`
	FixTime   time.Time `msgpack:"fix_time"`
	PushedAt  time.Time `msgpack:"pushed_at"`
}

func loadPushState(path string) (*pushState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st pushState
	if err := msgpack.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", path, err)
	}
	return &st, nil
}

func savePushState(path string, st pushState) error {
	data, err := msgpack.Marshal(&st)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (a *App) birdnetCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "birdnet",
		Short: "Set the BirdNET-Pi location to the most recent fix",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBirdnet(cmd.Context(), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "submit even if the location has not changed")
	return cmd
}

func (a *App) runBirdnet(ctx context.Context, force bool) error {
	if err := a.setup(); err != nil {
		return err
	}
	cfg := a.cfg.Birdnet
	log := a.log.Component("birdnet")

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fix, err := store.Latest(ctx)
	if errors.Is(err, storage.ErrNoFixes) {
		return NewStorageError("no location recorded yet", err)
	}
	if err != nil {
		return NewStorageError("failed to read latest fix", err)
	}

	lat := webform.Round(fix.Latitude, cfg.Precision)
	lon := webform.Round(fix.Longitude, cfg.Precision)

	state, err := loadPushState(cfg.StateFile)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring push state")
	}
	if !force && state != nil && state.Latitude == lat && state.Longitude == lon {
		log.Info().Float64("lat", lat).Float64("lon", lon).Msg("Location unchanged, not submitting")
		fmt.Fprintf(a.stdout(), "Location unchanged at (%s, %s)\n", coord(lat), coord(lon))
		return nil
	}

	res, err := a.deps.NewPusher(cfg, log).SetLocation(ctx, fix.Latitude, fix.Longitude)
	if err != nil {
		return NewPushError("failed to update location", err)
	}

	line := fmt.Sprintf("Set lat, lon to (%s, %s)", coord(res.Latitude), coord(res.Longitude))
	if err := appendStatus(cfg.StatusLog, line); err != nil {
		log.Warn().Err(err).Str("file", cfg.StatusLog).Msg("Failed to write status log")
	}

	err = savePushState(cfg.StateFile, pushState{
		Latitude:  res.Latitude,
		Longitude: res.Longitude,
		FixTime:   fix.UTCTime,
		PushedAt:  time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("file", cfg.StateFile).Msg("Failed to save push state")
	}

	fmt.Fprintln(a.stdout(), line)
	return nil
}

func appendStatus(path, line string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
