package fleet

import "math"

// Location is a GeoJSON point, longitude first.
type Location struct {
	Type        string    `json:"-"`
	Coordinates []float64 `json:"coordinates"`
}

func NewPoint(longitude float64, latitude float64) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
	}
}

func (l *Location) Longitude() float64 {
	return l.Coordinates[0]
}

func (l *Location) Latitude() float64 {
	return l.Coordinates[1]
}

// Distance returns the approximate distance in metres between two points
// using an equirectangular projection, good enough at vehicle scales.
func (l *Location) Distance(other *Location) float64 {
	const earthRadius = 6371000.0

	lat1 := l.Latitude() * math.Pi / 180
	lat2 := other.Latitude() * math.Pi / 180
	x := (other.Longitude() - l.Longitude()) * math.Pi / 180 * math.Cos((lat1+lat2)/2)
	y := lat2 - lat1

	return math.Sqrt(x*x+y*y) * earthRadius
}
