package usecases

import (
	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/pkg/geohash"
)

type markerKey struct {
	code  string
	color string
}

// Aggregate decodes every ingested code and folds the occurrences into one
// marker per (code, color) pair. Invalid codes are skipped and counted.
// Decoded keeps every occurrence in source order then line order; Markers are
// listed in first-seen order and keep the first occurrence's point.
func Aggregate(ingested []domain.SourceCodes) domain.Aggregation {
	var agg domain.Aggregation
	index := make(map[markerKey]int)

	for _, sc := range ingested {
		color := sc.Source.ColorTag
		for _, code := range sc.Codes {
			b, err := geohash.DecodeBounds(code)
			if err != nil {
				agg.DecodeErrors++
				continue
			}
			p := geohash.Center(b)

			agg.Decoded = append(agg.Decoded, domain.DecodedCode{
				SourceID: sc.Source.ID,
				Code:     code,
				ColorTag: color,
				Point:    p,
				Bounds:   b,
			})

			k := markerKey{code: code, color: color}
			if i, ok := index[k]; ok {
				agg.Markers[i].Count++
				continue
			}
			index[k] = len(agg.Markers)
			agg.Markers = append(agg.Markers, domain.AggregatedMarker{
				SourceID: sc.Source.ID,
				Code:     code,
				ColorTag: color,
				Point:    p,
				Count:    1,
			})
		}
	}

	return agg
}
