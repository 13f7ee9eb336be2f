// Package geo holds small great-circle helpers for track summaries.
package geo

import "math"

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Bounds is the bounding box of a set of points.
type Bounds struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// Extend grows b to include the point. Seed b with NewBounds.
func (b *Bounds) Extend(lat, lng float64) {
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MinLng = math.Min(b.MinLng, lng)
	b.MaxLng = math.Max(b.MaxLng, lng)
}

// NewBounds returns a box containing just the given point.
func NewBounds(lat, lng float64) Bounds {
	return Bounds{MinLat: lat, MinLng: lng, MaxLat: lat, MaxLng: lng}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
