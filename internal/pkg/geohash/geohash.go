// Package geohash decodes base32 geohash codes into the center point and the
// bounding box of the cell they name.
//
// Each character contributes 5 bits. Bits alternate between longitude and
// latitude starting with longitude, and the alternation carries on across
// characters, so odd-length codes give longitude one extra bit.
//
//	1 → ~5000 km    4 → ~39 km     7 → ~153 m    10 → ~1.2 m
//	2 → ~1250 km    5 → ~5 km      8 → ~19 m     11 → ~15 cm
//	3 → ~156 km     6 → ~1.2 km    9 → ~2.4 m    12 → ~1.9 cm
package geohash

import (
	"fmt"
	"strings"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/pkg/geospatial"
)

// Alphabet is the geohash base32 character set. 'a', 'i', 'l' and 'o' are
// excluded.
const Alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// MaxPrecision is the longest code accepted.
const MaxPrecision = 12

var base32Map [256]int8

func init() {
	for i := range base32Map {
		base32Map[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		base32Map[Alphabet[i]] = int8(i)
	}
}

// Validate checks a code against the alphabet and length limits.
func Validate(code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty code", domain.ErrInvalidGeohash)
	}
	if len(code) > MaxPrecision {
		return fmt.Errorf("%w: %q longer than %d characters", domain.ErrInvalidGeohash, code, MaxPrecision)
	}
	for i := 0; i < len(code); i++ {
		if base32Map[code[i]] < 0 {
			return fmt.Errorf("%w: %q has invalid character %q at %d", domain.ErrInvalidGeohash, code, code[i], i)
		}
	}
	return nil
}

// DecodeBounds returns the cell named by code.
func DecodeBounds(code string) (domain.Bounds, error) {
	if err := Validate(code); err != nil {
		return domain.Bounds{}, err
	}

	minLat, maxLat := -90.0, 90.0
	minLon, maxLon := -180.0, 180.0
	isLon := true

	for i := 0; i < len(code); i++ {
		cd := base32Map[code[i]]
		for mask := int8(16); mask > 0; mask >>= 1 {
			if isLon {
				mid := (minLon + maxLon) / 2
				if cd&mask != 0 {
					minLon = mid
				} else {
					maxLon = mid
				}
			} else {
				mid := (minLat + maxLat) / 2
				if cd&mask != 0 {
					minLat = mid
				} else {
					maxLat = mid
				}
			}
			isLon = !isLon
		}
	}

	return domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}, nil
}

// Decode returns the center of the cell named by code.
func Decode(code string) (domain.GeoPoint, error) {
	b, err := DecodeBounds(code)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	return Center(b), nil
}

// Center is the midpoint of a cell.
func Center(b domain.Bounds) domain.GeoPoint {
	return domain.GeoPoint{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}
}

// Encode converts a coordinate to a geohash of the given precision.
// Precision is clamped to [1, MaxPrecision].
func Encode(lat, lon float64, precision int) string {
	if precision < 1 {
		precision = 1
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	minLat, maxLat := -90.0, 90.0
	minLon, maxLon := -180.0, 180.0

	var hash strings.Builder
	isLon := true
	bit := 0
	ch := 0

	for hash.Len() < precision {
		if isLon {
			mid := (minLon + maxLon) / 2
			if lon >= mid {
				ch |= 1 << (4 - bit)
				minLon = mid
			} else {
				maxLon = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		isLon = !isLon
		bit++
		if bit == 5 {
			hash.WriteByte(Alphabet[ch])
			bit = 0
			ch = 0
		}
	}

	return hash.String()
}

// CellSize returns the approximate width and height of a cell in meters,
// measured along the cell's center lines.
func CellSize(b domain.Bounds) (widthMeters, heightMeters float64) {
	c := Center(b)
	widthMeters = geospatial.Haversine(c.Lat, b.MinLon, c.Lat, b.MaxLon)
	heightMeters = geospatial.Haversine(b.MinLat, c.Lon, b.MaxLat, c.Lon)
	return widthMeters, heightMeters
}
