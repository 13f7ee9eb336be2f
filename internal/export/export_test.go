package export

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gps-logger/backend/internal/models"
)

var t0 = time.Date(2022, 11, 5, 20, 15, 30, 0, time.UTC)

func sampleFixes() []models.GpsFix {
	return []models.GpsFix{
		{UTCTime: t0, Latitude: 52.1, Longitude: 4.3, Altitude: 1, Satellites: 7, HDOP: 0.9, SessionID: "a"},
		{UTCTime: t0.Add(time.Minute), Latitude: 52.2, Longitude: 4.3, Altitude: 2, Satellites: 8, HDOP: 0.8, SessionID: "a"},
		{UTCTime: t0.Add(time.Hour), Latitude: 53.0, Longitude: 5.0, SessionID: "b"},
	}
}

// parsed GPX, namespace-agnostic
type gpxFile struct {
	Version  string `xml:"version,attr"`
	Creator  string `xml:"creator,attr"`
	Metadata struct {
		Name   string `xml:"name"`
		Time   string `xml:"time"`
		Bounds struct {
			MinLat float64 `xml:"minlat,attr"`
			MaxLon float64 `xml:"maxlon,attr"`
		} `xml:"bounds"`
	} `xml:"metadata"`
	Tracks []struct {
		Segments []struct {
			Points []struct {
				Lat  float64 `xml:"lat,attr"`
				Lon  float64 `xml:"lon,attr"`
				Ele  float64 `xml:"ele"`
				Time string  `xml:"time"`
				Sat  int     `xml:"sat"`
				HDOP float64 `xml:"hdop"`
			} `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

func TestRegistryFindExporter(t *testing.T) {
	r := NewRegistry()

	e, err := r.FindExporter("out.gpx")
	require.NoError(t, err)
	assert.Equal(t, "gpx", e.Name())

	e, err = r.FindExporter("/tmp/tracks/2022-11.kml")
	require.NoError(t, err)
	assert.Equal(t, "kml", e.Name())

	for _, name := range []string{"out.txt", "out.GPX", "gpx", "out.gpx.bak", ""} {
		_, err := r.FindExporter(name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}

	assert.Equal(t, []string{".gpx", ".kml"}, r.Extensions())
}

func TestRegistryGetExporterByName(t *testing.T) {
	r := NewRegistry()

	e, err := r.GetExporterByName("KML")
	require.NoError(t, err)
	assert.Equal(t, ".kml", e.Extension())

	_, err = r.GetExporterByName("geojson")
	assert.Error(t, err)
}

func TestTrackSegments(t *testing.T) {
	segs := Track{Fixes: sampleFixes()}.Segments()
	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 2)
	assert.Len(t, segs[1], 1)

	assert.Empty(t, Track{}.Segments())
}

func TestGPXWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewGPXExporter().Write(&buf, Track{Name: "nov", Fixes: sampleFixes()}))
	assert.Contains(t, buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, buf.String(), `xmlns="http://www.topografix.com/GPX/1/1"`)

	var doc gpxFile
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "1.1", doc.Version)
	assert.Equal(t, "gpslog", doc.Creator)
	assert.Equal(t, "nov", doc.Metadata.Name)
	assert.Equal(t, "2022-11-05T20:15:30Z", doc.Metadata.Time)
	assert.Equal(t, 52.1, doc.Metadata.Bounds.MinLat)
	assert.Equal(t, 5.0, doc.Metadata.Bounds.MaxLon)

	require.Len(t, doc.Tracks, 1)
	require.Len(t, doc.Tracks[0].Segments, 2)
	first := doc.Tracks[0].Segments[0].Points
	require.Len(t, first, 2)
	assert.Equal(t, 52.1, first[0].Lat)
	assert.Equal(t, 4.3, first[0].Lon)
	assert.Equal(t, 1.0, first[0].Ele)
	assert.Equal(t, 7, first[0].Sat)
	assert.Equal(t, 0.9, first[0].HDOP)
	assert.Equal(t, "2022-11-05T20:16:30Z", first[1].Time)
}

func TestGPXSmallCoordinatesHaveNoExponent(t *testing.T) {
	var buf bytes.Buffer
	fixes := []models.GpsFix{{UTCTime: t0, Latitude: 0.00001, Longitude: -0.000002}}
	require.NoError(t, NewGPXExporter().Write(&buf, Track{Fixes: fixes}))

	assert.Contains(t, buf.String(), `lat="0.00001"`)
	assert.Contains(t, buf.String(), `lon="-0.000002"`)
	assert.NotContains(t, buf.String(), "e-0")
}

func TestGPXWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewGPXExporter().Write(&buf, Track{}))

	var doc gpxFile
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "1.1", doc.Version)
	assert.Empty(t, doc.Tracks)
}

func TestKMLWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewKMLExporter().Write(&buf, Track{Name: "nov", Fixes: sampleFixes()}))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	root := doc.SelectElement("kml")
	require.NotNil(t, root)
	assert.Equal(t, kmlNamespace, root.SelectAttrValue("xmlns", ""))

	name := doc.FindElement("./kml/Document/name")
	require.NotNil(t, name)
	assert.Equal(t, "nov", name.Text())

	// session b has one fix, so only session a becomes a line
	lines := doc.FindElements("//LineString/coordinates")
	require.Len(t, lines, 1)
	assert.Equal(t, "4.3,52.1,1 4.3,52.2,2", lines[0].Text())

	points := doc.FindElements("//Point/coordinates")
	require.Len(t, points, 2)
	assert.Equal(t, "4.3,52.1,1", points[0].Text())
	assert.Equal(t, "5,53,0", points[1].Text())

	when := doc.FindElements("//TimeStamp/when")
	require.Len(t, when, 2)
	assert.Equal(t, "2022-11-05T21:15:30Z", when[1].Text())
}

func TestKMLWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewKMLExporter().Write(&buf, Track{}))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	assert.NotNil(t, doc.FindElement("./kml/Document"))
	assert.Empty(t, doc.FindElements("//Placemark"))
}

func TestSaveFunctions(t *testing.T) {
	dir := t.TempDir()

	gpxPath := filepath.Join(dir, "track.gpx")
	require.NoError(t, SaveAsGPX(gpxPath, sampleFixes()))
	data, err := os.ReadFile(gpxPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<name>track</name>")

	kmlPath := filepath.Join(dir, "track.kml")
	require.NoError(t, SaveAsKML(kmlPath, sampleFixes()))
	data, err = os.ReadFile(kmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<kml")

	require.NoError(t, Save(filepath.Join(dir, "again.kml"), nil))

	err = Save(filepath.Join(dir, "track.txt"), sampleFixes())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"track.gpx", "track.kml", "again.kml"}, names, "no temp files left behind")
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.gpx")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	require.NoError(t, SaveAsGPX(path, sampleFixes()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
}

func TestSaveMissingDirectory(t *testing.T) {
	err := SaveAsGPX(filepath.Join(t.TempDir(), "nope", "track.gpx"), sampleFixes())
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "empty track", Summarize(nil).String())

	s := Summarize(sampleFixes())
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 2, s.Sessions)
	assert.Equal(t, time.Hour, s.Duration())
	// 0.1 degree of latitude; the jump into session b is not counted
	assert.InDelta(t, 11.12, s.DistanceKm, 0.01)
	assert.Equal(t, 52.1, s.Bounds.MinLat)
	assert.Equal(t, 53.0, s.Bounds.MaxLat)
	assert.Contains(t, s.String(), "3 fixes in 2 session(s)")
}
