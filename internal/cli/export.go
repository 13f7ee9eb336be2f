package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gps-logger/backend/internal/export"
	"github.com/gps-logger/backend/internal/query"
	"github.com/gps-logger/backend/internal/timeprefix"
)

type exportOptions struct {
	start  string
	end    string
	prefix string
	last   int
}

func (a *App) exportCommand() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export OUTPUT",
		Short: "Export stored fixes to a .gpx or .kml file",
		Long: `
Export stored fixes to a .gpx or .kml file

Timestamps are prefixes of a local time in the format ` + timeprefix.ExampleFormat + `.
A prefix covers every time that starts with it, e.g. 2022-11 is the whole
of November 2022 and 2022-11-05T20 is one hour.

Exactly one of --start/--end, --prefix or --last must be given.
`,
		Example: `  gpslog export november.gpx --prefix 2022-11
  gpslog export trip.kml -s 2022-11-05 -e 2022-11-07`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return NewUsageError(fmt.Sprintf("expected one output filename, got %d arguments", len(args)))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd.Context(), cmd.Flags(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.start, "start", "s", "", "export data with timestamps between this and end")
	f.StringVarP(&opts.end, "end", "e", "", "export data with timestamps between this and start")
	f.StringVarP(&opts.prefix, "prefix", "p", "", "export data with timestamps starting with this prefix eg. 2022-11- for a month")
	f.IntVarP(&opts.last, "last", "l", 0, "export data from most recent N seconds")

	return cmd
}

func (a *App) runExport(ctx context.Context, flags *pflag.FlagSet, output string, opts exportOptions) error {
	// Nothing touches storage until the arguments are known to be usable.
	if _, err := export.DefaultRegistry().FindExporter(output); err != nil {
		return NewUsageError("output filename should be .gpx or .kml")
	}

	rng, err := a.exportRange(flags, opts)
	if err != nil {
		return err
	}

	pred := query.Build(rng)
	fmt.Fprintln(a.stdout(), pred.String())

	if err := a.setup(); err != nil {
		return err
	}
	log := a.log.Component("export")

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fixes, err := store.RetrieveWhere(ctx, pred)
	if err != nil {
		return NewStorageError("failed to retrieve fixes", err)
	}
	fmt.Fprintf(a.stdout(), "Found %d locations\n", len(fixes))

	if err := export.Save(output, fixes); err != nil {
		return NewExportError("failed to write "+output, err)
	}

	summary := export.Summarize(fixes)
	fmt.Fprintln(a.stdout(), summary.String())
	log.Info().
		Str("file", output).
		Int("fixes", summary.Count).
		Float64("distance_km", summary.DistanceKm).
		Msg("Export complete")
	return nil
}

// exportRange checks flag exclusivity before any timestamp is parsed, then
// resolves the requested window.
func (a *App) exportRange(flags *pflag.FlagSet, opts exportOptions) (timeprefix.Range, error) {
	var (
		hasStart  = flags.Changed("start")
		hasEnd    = flags.Changed("end")
		hasPrefix = flags.Changed("prefix")
		hasLast   = flags.Changed("last")
	)

	groups := 0
	for _, used := range []bool{hasStart || hasEnd, hasPrefix, hasLast} {
		if used {
			groups++
		}
	}
	switch {
	case groups > 1:
		return timeprefix.Range{}, NewConflictError("provide only one of start/end, prefix, or last")
	case groups == 0:
		return timeprefix.Range{}, NewConflictError("provide one of start/end, prefix, or last")
	case hasStart != hasEnd:
		return timeprefix.Range{}, NewConflictError("start and end must be given together")
	case hasLast:
		return timeprefix.Range{}, NewUnsupportedError("last")
	}

	resolver := timeprefix.NewResolver(a.deps.Location)

	if hasPrefix {
		p, err := checkPrefix(resolver, "-p/--prefix", opts.prefix)
		if err != nil {
			return timeprefix.Range{}, err
		}
		return resolver.ResolvePrefix(p)
	}

	start, err := checkPrefix(resolver, "-s/--start", opts.start)
	if err != nil {
		return timeprefix.Range{}, err
	}
	end, err := checkPrefix(resolver, "-e/--end", opts.end)
	if err != nil {
		return timeprefix.Range{}, err
	}

	rng, err := resolver.Resolve(start, end)
	if errors.Is(err, timeprefix.ErrEmptyRange) {
		return timeprefix.Range{}, NewUsageError(fmt.Sprintf("start %s is not before the end of %s", start, end))
	}
	return rng, err
}

// checkPrefix validates one argument, including that it denotes a real time.
func checkPrefix(r *timeprefix.Resolver, argument, value string) (timeprefix.Prefix, error) {
	p, err := timeprefix.Validate(value)
	if err != nil {
		return "", NewInvalidPrefixError(argument, err)
	}
	if _, err := r.ResolvePrefix(p); err != nil {
		return "", NewInvalidPrefixError(argument, err)
	}
	return p, nil
}
