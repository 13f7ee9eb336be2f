package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/gps-logger/backend/internal/models"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

// KMLExporter writes KML 2.2 documents.
type KMLExporter struct{}

func NewKMLExporter() *KMLExporter {
	return &KMLExporter{}
}

func (e *KMLExporter) Name() string      { return "kml" }
func (e *KMLExporter) Extension() string { return ".kml" }

// Write emits a LineString placemark per session plus start and end points.
func (e *KMLExporter) Write(w io.Writer, t Track) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("kml")
	root.CreateAttr("xmlns", kmlNamespace)
	d := root.CreateElement("Document")
	if t.Name != "" {
		d.CreateElement("name").SetText(t.Name)
	}

	for i, seg := range t.Segments() {
		// a LineString needs two coordinates
		if len(seg) < 2 {
			continue
		}
		pm := d.CreateElement("Placemark")
		pm.CreateElement("name").SetText(fmt.Sprintf("Segment %d", i+1))
		span := pm.CreateElement("TimeSpan")
		span.CreateElement("begin").SetText(kmlTime(seg[0]))
		span.CreateElement("end").SetText(kmlTime(seg[len(seg)-1]))

		line := pm.CreateElement("LineString")
		line.CreateElement("tessellate").SetText("1")
		line.CreateElement("altitudeMode").SetText("clampToGround")
		coords := make([]string, 0, len(seg))
		for _, f := range seg {
			coords = append(coords, kmlCoord(f))
		}
		line.CreateElement("coordinates").SetText(strings.Join(coords, " "))
	}

	if n := len(t.Fixes); n > 0 {
		addPoint(d, "Start", t.Fixes[0])
		if n > 1 {
			addPoint(d, "End", t.Fixes[n-1])
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}

func addPoint(parent *etree.Element, name string, f models.GpsFix) {
	pm := parent.CreateElement("Placemark")
	pm.CreateElement("name").SetText(name)
	pm.CreateElement("TimeStamp").CreateElement("when").SetText(kmlTime(f))
	pm.CreateElement("Point").CreateElement("coordinates").SetText(kmlCoord(f))
}

// kmlCoord is lon,lat,alt as KML orders them.
func kmlCoord(f models.GpsFix) string {
	return decimal(f.Longitude) + "," + decimal(f.Latitude) + "," + decimal(f.Altitude)
}

func kmlTime(f models.GpsFix) string {
	return f.UTCTime.UTC().Format(time.RFC3339)
}
