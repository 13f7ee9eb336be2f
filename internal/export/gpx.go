package export

import (
	"encoding/xml"
	"io"
	"strconv"
	"time"

	"github.com/gps-logger/backend/internal/models"
)

const (
	gpxNamespace = "http://www.topografix.com/GPX/1/1"
	gpxCreator   = "gpslog"
)

// gpxDoc is the GPX 1.1 document layout.
type gpxDoc struct {
	XMLName  xml.Name     `xml:"gpx"`
	Xmlns    string       `xml:"xmlns,attr"`
	Version  string       `xml:"version,attr"`
	Creator  string       `xml:"creator,attr"`
	Metadata *gpxMetadata `xml:"metadata,omitempty"`
	Tracks   []gpxTrack   `xml:"trk"`
}

type gpxMetadata struct {
	Name   string     `xml:"name,omitempty"`
	Time   string     `xml:"time,omitempty"`
	Bounds *gpxBounds `xml:"bounds,omitempty"`
}

type gpxBounds struct {
	MinLat string `xml:"minlat,attr"`
	MinLon string `xml:"minlon,attr"`
	MaxLat string `xml:"maxlat,attr"`
	MaxLon string `xml:"maxlon,attr"`
}

type gpxTrack struct {
	Name     string       `xml:"name,omitempty"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

// Child order follows wptType: ele, time, sat, hdop.
type gpxPoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Ele  string `xml:"ele,omitempty"`
	Time string `xml:"time"`
	Sat  int    `xml:"sat,omitempty"`
	HDOP string `xml:"hdop,omitempty"`
}

// GPXExporter writes GPX 1.1 tracks.
type GPXExporter struct{}

func NewGPXExporter() *GPXExporter {
	return &GPXExporter{}
}

func (e *GPXExporter) Name() string      { return "gpx" }
func (e *GPXExporter) Extension() string { return ".gpx" }

// Write emits one trk with a trkseg per recorder session.
func (e *GPXExporter) Write(w io.Writer, t Track) error {
	doc := gpxDoc{
		Xmlns:   gpxNamespace,
		Version: "1.1",
		Creator: gpxCreator,
	}

	if len(t.Fixes) > 0 {
		sum := Summarize(t.Fixes)
		doc.Metadata = &gpxMetadata{
			Name: t.Name,
			Time: sum.Start.UTC().Format(time.RFC3339),
			Bounds: &gpxBounds{
				MinLat: decimal(sum.Bounds.MinLat),
				MinLon: decimal(sum.Bounds.MinLng),
				MaxLat: decimal(sum.Bounds.MaxLat),
				MaxLon: decimal(sum.Bounds.MaxLng),
			},
		}

		trk := gpxTrack{Name: t.Name}
		for _, seg := range t.Segments() {
			s := gpxSegment{Points: make([]gpxPoint, 0, len(seg))}
			for _, f := range seg {
				s.Points = append(s.Points, toGPXPoint(f))
			}
			trk.Segments = append(trk.Segments, s)
		}
		doc.Tracks = []gpxTrack{trk}
	} else if t.Name != "" {
		doc.Metadata = &gpxMetadata{Name: t.Name}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func toGPXPoint(f models.GpsFix) gpxPoint {
	p := gpxPoint{
		Lat:  decimal(f.Latitude),
		Lon:  decimal(f.Longitude),
		Time: f.UTCTime.UTC().Format(time.RFC3339),
		Sat:  f.Satellites,
	}
	if f.Altitude != 0 {
		p.Ele = decimal(f.Altitude)
	}
	if f.HDOP != 0 {
		p.HDOP = decimal(f.HDOP)
	}
	return p
}

// decimal formats without an exponent; xsd:decimal does not allow one.
func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
