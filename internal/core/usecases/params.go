package usecases

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
)

var hexColor = regexp.MustCompile(`^(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ParseViewParams builds view parameters from query-style keys:
//
//	geohashes  comma-separated literal codes
//	color      hex color of the literal source (default FF0000)
//	url, urls  comma-separated remote endpoints, one source each
//	colors     comma-separated hex colors matched to the URLs by position
//	timer      refresh interval in whole seconds, 0 or absent disables it
//	label      caption shown with the view
//	mode       boxes or markers
//
// Sources are numbered geo-1, geo-2, ... with the literal source first.
// defaultMode applies when mode is absent.
func ParseViewParams(get func(key string) string, defaultMode domain.RenderMode) (domain.ViewParams, error) {
	params := domain.ViewParams{
		Label: strings.TrimSpace(get("label")),
		Mode:  defaultMode,
	}
	if params.Mode == "" {
		params.Mode = domain.ModeBoxes
	}

	if m := strings.TrimSpace(get("mode")); m != "" {
		switch domain.RenderMode(strings.ToLower(m)) {
		case domain.ModeBoxes:
			params.Mode = domain.ModeBoxes
		case domain.ModeMarkers:
			params.Mode = domain.ModeMarkers
		default:
			return params, fmt.Errorf("%w: mode must be boxes or markers, got %q", domain.ErrInvalidParams, m)
		}
	}

	if t := strings.TrimSpace(get("timer")); t != "" {
		secs, err := strconv.Atoi(t)
		if err != nil || secs < 0 {
			return params, fmt.Errorf("%w: timer must be a non-negative number of seconds, got %q", domain.ErrInvalidParams, t)
		}
		params.Interval = time.Duration(secs) * time.Second
	}

	if codes := CleanCodes(splitList(get("geohashes"))); len(codes) > 0 {
		color, err := normalizeColor(get("color"))
		if err != nil {
			return params, err
		}
		params.Sources = append(params.Sources, domain.SourceSpec{
			ID:       sourceID(len(params.Sources)),
			Kind:     domain.SourceLiteral,
			Codes:    codes,
			ColorTag: color,
		})
	}

	urls := append(splitList(get("url")), splitList(get("urls"))...)
	colors := strings.Split(get("colors"), ",")
	for i, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return params, fmt.Errorf("%w: %q is not an http(s) URL", domain.ErrInvalidParams, raw)
		}
		var c string
		if i < len(colors) {
			c = colors[i]
		}
		color, err := normalizeColor(c)
		if err != nil {
			return params, err
		}
		params.Sources = append(params.Sources, domain.SourceSpec{
			ID:       sourceID(len(params.Sources)),
			Kind:     domain.SourceRemote,
			URL:      raw,
			ColorTag: color,
		})
	}

	return params, nil
}

// ValidateViewParams checks parsed or decoded view parameters.
func ValidateViewParams(p domain.ViewParams) error {
	if len(p.Sources) == 0 {
		return domain.ErrNoSources
	}
	if p.Interval < 0 {
		return fmt.Errorf("%w: negative interval", domain.ErrInvalidParams)
	}
	if p.Mode != domain.ModeBoxes && p.Mode != domain.ModeMarkers {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidParams, p.Mode)
	}
	seen := make(map[string]bool, len(p.Sources))
	for _, s := range p.Sources {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("%w: missing or duplicate source id %q", domain.ErrInvalidParams, s.ID)
		}
		seen[s.ID] = true
		if !hexColor.MatchString(s.ColorTag) {
			return fmt.Errorf("%w: source %s has invalid color %q", domain.ErrInvalidParams, s.ID, s.ColorTag)
		}
	}
	return nil
}

func sourceID(i int) string {
	return "geo-" + strconv.Itoa(i+1)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeColor(c string) (string, error) {
	c = strings.TrimPrefix(strings.TrimSpace(c), "#")
	if c == "" {
		return domain.DefaultColor, nil
	}
	if !hexColor.MatchString(c) {
		return "", fmt.Errorf("%w: %q is not a hex color", domain.ErrInvalidParams, c)
	}
	return strings.ToUpper(c), nil
}
