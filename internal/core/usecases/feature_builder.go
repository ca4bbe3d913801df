package usecases

import (
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
)

// BuildCollections groups a run's geometry by source. Every source gets a
// collection, empty when nothing decoded for it, so a source that dried up is
// cleared on the surface instead of keeping stale features.
//
// In boxes mode each decoded occurrence becomes a closed five-vertex polygon.
// In markers mode each aggregated marker becomes a point in the source it was
// first seen in.
func BuildCollections(sources []domain.SourceSpec, agg domain.Aggregation, mode domain.RenderMode, opacity float64) []domain.GeometryCollection {
	out := make([]domain.GeometryCollection, len(sources))
	index := make(map[string]int, len(sources))
	for i, src := range sources {
		out[i] = domain.GeometryCollection{
			SourceID: src.ID,
			Mode:     mode,
			Style:    domain.PaintStyle{FillColor: "#" + src.ColorTag, FillOpacity: opacity},
			Features: geojson.NewFeatureCollection(),
		}
		index[src.ID] = i
	}

	switch mode {
	case domain.ModeMarkers:
		for _, m := range agg.Markers {
			i, ok := index[m.SourceID]
			if !ok {
				continue
			}
			f := geojson.NewFeature(orb.Point{m.Point.Lon, m.Point.Lat})
			f.Properties["code"] = m.Code
			f.Properties["color"] = "#" + m.ColorTag
			f.Properties["count"] = m.Count
			out[i].Features.Append(f)
		}
	default:
		for _, d := range agg.Decoded {
			i, ok := index[d.SourceID]
			if !ok {
				continue
			}
			f := geojson.NewFeature(BoundsPolygon(d.Bounds))
			f.Properties["code"] = d.Code
			f.Properties["color"] = "#" + d.ColorTag
			out[i].Features.Append(f)
		}
	}

	return out
}

// BoundsPolygon returns the cell outline as a closed ring, counter-clockwise
// from the south-west corner.
func BoundsPolygon(b domain.Bounds) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}}
}

// BuildAnnotations returns the text labels of a run: the code of every
// occurrence in boxes mode, the occurrence count of every marker in markers
// mode.
func BuildAnnotations(agg domain.Aggregation, mode domain.RenderMode) []domain.Annotation {
	if mode == domain.ModeMarkers {
		anns := make([]domain.Annotation, 0, len(agg.Markers))
		for _, m := range agg.Markers {
			anns = append(anns, domain.Annotation{
				Point: m.Point,
				Text:  strconv.Itoa(m.Count),
				Color: "#" + m.ColorTag,
			})
		}
		return anns
	}

	anns := make([]domain.Annotation, 0, len(agg.Decoded))
	for _, d := range agg.Decoded {
		anns = append(anns, domain.Annotation{
			Point: d.Point,
			Text:  d.Code,
			Color: "#" + d.ColorTag,
		})
	}
	return anns
}
