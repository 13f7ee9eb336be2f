// Package export serializes stored fixes as GPX and KML track files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gps-logger/backend/internal/models"
)

// ErrUnsupportedFormat is returned for output names without a known extension.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Track is an ordered set of fixes written as one document.
type Track struct {
	Name  string
	Fixes []models.GpsFix
}

// Segments splits the track wherever the recorder session changes.
func (t Track) Segments() [][]models.GpsFix {
	var segs [][]models.GpsFix
	start := 0
	for i := 1; i <= len(t.Fixes); i++ {
		if i == len(t.Fixes) || t.Fixes[i].SessionID != t.Fixes[start].SessionID {
			segs = append(segs, t.Fixes[start:i])
			start = i
		}
	}
	return segs
}

// Exporter defines the interface for track serializers.
type Exporter interface {
	// Name returns the unique name of the exporter.
	Name() string
	// Extension returns the file suffix handled, including the dot.
	Extension() string
	// Write serializes the track to w.
	Write(w io.Writer, t Track) error
}

// Registry holds all available exporters and selects one by file name.
type Registry struct {
	exporters []Exporter
}

var defaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		exporters: []Exporter{
			NewGPXExporter(),
			NewKMLExporter(),
		},
	}
}

// DefaultRegistry returns the registry used by Save.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a new exporter to the registry.
func (r *Registry) Register(e Exporter) {
	r.exporters = append(r.exporters, e)
}

// FindExporter returns the first exporter whose extension ends filename.
// Matching is case-sensitive: "out.GPX" is rejected.
func (r *Registry) FindExporter(filename string) (Exporter, error) {
	for _, e := range r.exporters {
		if strings.HasSuffix(filename, e.Extension()) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
}

// GetExporterByName returns an exporter by its name.
func (r *Registry) GetExporterByName(name string) (Exporter, error) {
	name = strings.ToLower(name)
	for _, e := range r.exporters {
		if strings.ToLower(e.Name()) == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("exporter not found: %s", name)
}

// Extensions lists the accepted suffixes in registry order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.exporters))
	for _, e := range r.exporters {
		exts = append(exts, e.Extension())
	}
	return exts
}

// SaveAsGPX writes fixes to filename as GPX 1.1.
func SaveAsGPX(filename string, fixes []models.GpsFix) error {
	return saveWith(NewGPXExporter(), filename, fixes)
}

// SaveAsKML writes fixes to filename as KML 2.2.
func SaveAsKML(filename string, fixes []models.GpsFix) error {
	return saveWith(NewKMLExporter(), filename, fixes)
}

// Save picks the format from the file extension.
func Save(filename string, fixes []models.GpsFix) error {
	e, err := defaultRegistry.FindExporter(filename)
	if err != nil {
		return err
	}
	return saveWith(e, filename, fixes)
}

func saveWith(e Exporter, filename string, fixes []models.GpsFix) error {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	var buf bytes.Buffer
	if err := e.Write(&buf, Track{Name: name, Fixes: fixes}); err != nil {
		return fmt.Errorf("failed to encode %s: %w", e.Name(), err)
	}
	return writeFileAtomic(filename, buf.Bytes())
}

// writeFileAtomic replaces filename only once the full document is on disk.
func writeFileAtomic(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filename, err)
	}
	return nil
}
