package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
	"github.com/sakibstark11/geoplotter/internal/pkg/metrics"
)

// IngestService turns source specs into raw code lists.
type IngestService struct {
	fetcher        ports.SourceFetcher
	maxConcurrency int
}

// NewIngestService creates a new IngestService. maxConcurrency caps parallel
// remote fetches; 0 means unbounded.
func NewIngestService(fetcher ports.SourceFetcher, maxConcurrency int) *IngestService {
	return &IngestService{fetcher: fetcher, maxConcurrency: maxConcurrency}
}

// Ingest resolves every source. Remote sources are fetched concurrently and
// the call returns once all of them have settled. The result has one entry per
// source, in input order. A failed source yields an empty list and a non-nil
// Err; it never fails the whole call.
func (s *IngestService) Ingest(ctx context.Context, sources []domain.SourceSpec) []domain.SourceCodes {
	out := make([]domain.SourceCodes, len(sources))

	var wg sync.WaitGroup
	var sem chan struct{}
	if s.maxConcurrency > 0 {
		sem = make(chan struct{}, s.maxConcurrency)
	}

	for i, src := range sources {
		out[i].Source = src

		switch src.Kind {
		case domain.SourceLiteral:
			out[i].Codes = CleanCodes(src.Codes)
		case domain.SourceRemote:
			wg.Add(1)
			go func(i int, src domain.SourceSpec) {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}
				out[i].Codes, out[i].Err = s.fetch(ctx, src)
			}(i, src)
		default:
			out[i].Codes = []string{}
			out[i].Err = fmt.Errorf("source %s: unknown kind %q", src.ID, src.Kind)
		}
	}

	wg.Wait()
	return out
}

func (s *IngestService) fetch(ctx context.Context, src domain.SourceSpec) ([]string, error) {
	if s.fetcher == nil {
		return []string{}, fmt.Errorf("source %s: %w: no fetcher configured", src.ID, domain.ErrSourceUnavailable)
	}

	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, src.URL)
	metrics.SourceFetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SourceFetchErrors.Inc()
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
		}
		slog.Warn("source fetch failed", "source", src.ID, "url", src.URL, "error", err)
		return []string{}, fmt.Errorf("source %s: %w", src.ID, err)
	}

	return SplitLines(body), nil
}

// CleanCodes trims and lower-cases every entry and drops the empty ones.
func CleanCodes(raw []string) []string {
	codes := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// SplitLines splits a newline-delimited body into cleaned codes. CRLF line
// endings are accepted and lines have no length limit.
func SplitLines(body []byte) []string {
	codes := []string{}
	for _, line := range bytes.Split(body, []byte{'\n'}) {
		c := strings.ToLower(string(bytes.TrimSpace(line)))
		if c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}
