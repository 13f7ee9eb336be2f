package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gps-logger/backend/internal/recorder"
)

func (a *App) recordCommand() *cobra.Command {
	var (
		device   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record fixes from a GPS receiver until interrupted",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRecord(cmd.Context(), device, interval)
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "NMEA device to read (default from config)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between stored fixes (default from config)")
	return cmd
}

func (a *App) runRecord(ctx context.Context, device string, interval time.Duration) error {
	if interval < 0 {
		return NewUsageError("interval must be positive")
	}
	if err := a.setup(); err != nil {
		return err
	}
	if device == "" {
		device = a.cfg.Recorder.Device
	}
	if interval == 0 {
		interval = time.Duration(a.cfg.Recorder.IntervalSeconds) * time.Second
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	src, err := a.deps.OpenDevice(device)
	if err != nil {
		return NewDeviceError(device, err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := recorder.New(store, device, interval, a.log.Component("recorder"))
	if err := rec.Run(ctx, src); err != nil {
		return NewDeviceError(device, err)
	}

	status := rec.Status()
	fmt.Fprintf(a.stdout(), "Stored %d fixes in session %s (%d sentences, %d bad lines)\n",
		status.FixesStored, status.ID, status.Sentences, status.BadLines)
	return nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return NewUsageError(fmt.Sprintf("%s takes no arguments, got %q", cmd.Name(), args[0]))
	}
	return nil
}
