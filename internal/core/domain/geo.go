package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside b, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Within reports whether b lies entirely inside outer.
func (b Bounds) Within(outer Bounds) bool {
	return b.MinLat >= outer.MinLat && b.MaxLat <= outer.MaxLat &&
		b.MinLon >= outer.MinLon && b.MaxLon <= outer.MaxLon
}

// Width is the longitudinal extent in degrees.
func (b Bounds) Width() float64 { return b.MaxLon - b.MinLon }

// Height is the latitudinal extent in degrees.
func (b Bounds) Height() float64 { return b.MaxLat - b.MinLat }

// Viewport is the visible area reported by a map widget.
type Viewport struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
}
