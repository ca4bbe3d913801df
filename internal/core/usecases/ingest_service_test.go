package usecases_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
)

func TestIngestService_Literal(t *testing.T) {
	svc := usecases.NewIngestService(nil, 0)
	out := svc.Ingest(context.Background(), []domain.SourceSpec{
		{ID: "geo-1", Kind: domain.SourceLiteral, Codes: []string{" tdr1 ", "", "TDR2", "  "}},
	})
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].Err != nil {
		t.Fatalf("unexpected error: %v", out[0].Err)
	}
	if want := []string{"tdr1", "tdr2"}; !reflect.DeepEqual(out[0].Codes, want) {
		t.Errorf("expected %v, got %v", want, out[0].Codes)
	}
}

func TestIngestService_PartialFailure(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			switch url {
			case "http://a":
				return []byte("tdr1\ntdr2\n"), nil
			case "http://c":
				return []byte("w1\r\nw2\r\n\r\nw3\nw4"), nil
			default:
				return nil, errors.New("connection refused")
			}
		},
	}

	svc := usecases.NewIngestService(fetcher, 0)
	out := svc.Ingest(context.Background(), []domain.SourceSpec{
		{ID: "geo-1", Kind: domain.SourceRemote, URL: "http://a"},
		{ID: "geo-2", Kind: domain.SourceRemote, URL: "http://b"},
		{ID: "geo-3", Kind: domain.SourceRemote, URL: "http://c"},
	})

	var lengths []int
	for _, sc := range out {
		lengths = append(lengths, len(sc.Codes))
	}
	if want := []int{2, 0, 4}; !reflect.DeepEqual(lengths, want) {
		t.Fatalf("expected lengths %v, got %v", want, lengths)
	}
	if out[1].Err == nil || !errors.Is(out[1].Err, domain.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable for geo-2, got %v", out[1].Err)
	}
	if out[0].Err != nil || out[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", out[0].Err, out[2].Err)
	}
	for i, sc := range out {
		if sc.Source.ID != []string{"geo-1", "geo-2", "geo-3"}[i] {
			t.Errorf("result %d out of order: %s", i, sc.Source.ID)
		}
	}
}

func TestIngestService_FetchesConcurrently(t *testing.T) {
	var started atomic.Int32
	release := make(chan struct{})

	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			if started.Add(1) == 3 {
				close(release)
			}
			select {
			case <-release:
				return []byte("tdr1"), nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("fetches were serialised")
			}
		},
	}

	svc := usecases.NewIngestService(fetcher, 0)
	out := svc.Ingest(context.Background(), []domain.SourceSpec{
		{ID: "geo-1", Kind: domain.SourceRemote, URL: "http://a"},
		{ID: "geo-2", Kind: domain.SourceRemote, URL: "http://b"},
		{ID: "geo-3", Kind: domain.SourceRemote, URL: "http://c"},
	})
	for _, sc := range out {
		if sc.Err != nil {
			t.Fatalf("unexpected error: %v", sc.Err)
		}
	}
}

func TestIngestService_ConcurrencyCap(t *testing.T) {
	var current, peak atomic.Int32
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return []byte("tdr1"), nil
		},
	}

	specs := make([]domain.SourceSpec, 6)
	for i := range specs {
		specs[i] = domain.SourceSpec{ID: "geo", Kind: domain.SourceRemote, URL: "http://x"}
	}

	usecases.NewIngestService(fetcher, 2).Ingest(context.Background(), specs)
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent fetches, saw %d", peak.Load())
	}
}

func TestIngestService_NoFetcher(t *testing.T) {
	out := usecases.NewIngestService(nil, 0).Ingest(context.Background(), []domain.SourceSpec{
		{ID: "geo-1", Kind: domain.SourceRemote, URL: "http://a"},
	})
	if !errors.Is(out[0].Err, domain.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", out[0].Err)
	}
}

func TestSplitLines(t *testing.T) {
	got := usecases.SplitLines([]byte("  a1 \r\n\r\nB2\n\n c3"))
	if want := []string{"a1", "b2", "c3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := usecases.SplitLines([]byte(strings.Repeat("\n", 5))); len(got) != 0 {
		t.Errorf("expected no codes, got %v", got)
	}
}

func TestSplitLines_LongLineKeepsFollowingCodes(t *testing.T) {
	body := "tdr1\n" + strings.Repeat("x", 2*1024*1024) + "\ntdr2\nTDR3\n"
	got := usecases.SplitLines([]byte(body))
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	if got[0] != "tdr1" || got[2] != "tdr2" || got[3] != "tdr3" {
		t.Errorf("unexpected codes around the long line: %q, %q, %q", got[0], got[2], got[3])
	}
}
