package geospatial

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const earthRadiusKm = 6371.0

const earthRadiusM = earthRadiusKm * 1000

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusM
}

// RectArea returns the area in square meters of a lat/lon rectangle on a
// spherical earth. A rectangle spanning -180..180 covers every longitude.
func RectArea(minLat, minLon, maxLat, maxLon float64) float64 {
	rect := s2.Rect{
		Lat: r1.Interval{Lo: (s1.Angle(minLat) * s1.Degree).Radians(), Hi: (s1.Angle(maxLat) * s1.Degree).Radians()},
		Lng: s1.IntervalFromEndpoints((s1.Angle(minLon) * s1.Degree).Radians(), (s1.Angle(maxLon) * s1.Degree).Radians()),
	}
	return rect.Area() * earthRadiusM * earthRadiusM
}
