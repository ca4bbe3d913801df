package usecases_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
)

func query(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestParseViewParams_Literal(t *testing.T) {
	p, err := usecases.ParseViewParams(query(map[string]string{
		"geohashes": "tdr1vj, tdr1vk,,",
		"label":     "Dhaka",
	}), domain.ModeBoxes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(p.Sources))
	}
	s := p.Sources[0]
	if s.ID != "geo-1" || s.Kind != domain.SourceLiteral || s.ColorTag != "FF0000" {
		t.Errorf("unexpected source %+v", s)
	}
	if len(s.Codes) != 2 {
		t.Errorf("expected 2 codes, got %v", s.Codes)
	}
	if p.Interval != 0 || p.Label != "Dhaka" || p.Mode != domain.ModeBoxes {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestParseViewParams_RemoteColors(t *testing.T) {
	p, err := usecases.ParseViewParams(query(map[string]string{
		"urls":   "https://a.example/codes.txt,https://b.example/codes.txt",
		"url":    "http://c.example/x",
		"colors": "00ff00,,#abc",
		"timer":  "5",
		"mode":   "markers",
	}), domain.ModeBoxes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(p.Sources))
	}
	wantColors := []string{"00FF00", "FF0000", "ABC"}
	for i, s := range p.Sources {
		if s.Kind != domain.SourceRemote {
			t.Errorf("source %d: expected remote", i)
		}
		if s.ColorTag != wantColors[i] {
			t.Errorf("source %d: expected color %s, got %s", i, wantColors[i], s.ColorTag)
		}
	}
	if p.Sources[0].URL != "http://c.example/x" {
		t.Errorf("expected url before urls, got %s", p.Sources[0].URL)
	}
	if p.Interval != 5*time.Second || p.Mode != domain.ModeMarkers {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestParseViewParams_Invalid(t *testing.T) {
	tests := []struct {
		name string
		q    map[string]string
	}{
		{"negative timer", map[string]string{"geohashes": "tdr1", "timer": "-1"}},
		{"non-numeric timer", map[string]string{"geohashes": "tdr1", "timer": "soon"}},
		{"bad color", map[string]string{"geohashes": "tdr1", "color": "red"}},
		{"bad url color", map[string]string{"url": "https://a.example", "colors": "12345"}},
		{"bad scheme", map[string]string{"url": "ftp://a.example/codes"}},
		{"bad mode", map[string]string{"geohashes": "tdr1", "mode": "heatmap"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := usecases.ParseViewParams(query(tt.q), domain.ModeBoxes); !errors.Is(err, domain.ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestValidateViewParams(t *testing.T) {
	if err := usecases.ValidateViewParams(domain.ViewParams{Mode: domain.ModeBoxes}); !errors.Is(err, domain.ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
	dup := domain.ViewParams{
		Mode: domain.ModeBoxes,
		Sources: []domain.SourceSpec{
			{ID: "geo-1", ColorTag: "FF0000"},
			{ID: "geo-1", ColorTag: "FF0000"},
		},
	}
	if err := usecases.ValidateViewParams(dup); !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}
