package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingFetcher returns "label:<url>" and counts calls per URL.
type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	delay time.Duration
	err   error
}

func (f *countingFetcher) FetchReference(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return "label:" + url, nil
}

func (f *countingFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// mapStore is an in-memory Store.
type mapStore struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
	sets    atomic.Int32
}

func (s *mapStore) Get(ctx context.Context, key LabelKey) (*Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	label, ok := s.entries[key.String()]
	if !ok {
		return nil, ErrCacheMiss
	}
	return &Entry{URL: key.URL, Label: label, Expires: time.Now().Add(time.Hour)}, nil
}

func (s *mapStore) Set(ctx context.Context, key LabelKey, label string) error {
	s.sets.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string]string)
	}
	s.entries[key.String()] = label
	return nil
}

func TestNewLabels_RequiresFetcher(t *testing.T) {
	if _, err := NewLabels(nil, Config{}); err == nil {
		t.Error("expected error for nil fetcher")
	}
}

func TestLabels_MemoryHit(t *testing.T) {
	fetcher := &countingFetcher{}
	labels, err := NewLabels(fetcher, Config{MemorySize: 8})
	if err != nil {
		t.Fatalf("NewLabels() error = %v", err)
	}
	ctx := context.Background()
	url := "https://swapi.dev/api/planets/1/"

	for i := 0; i < 3; i++ {
		got, err := labels.FetchReference(ctx, url)
		if err != nil {
			t.Fatalf("FetchReference() error = %v", err)
		}
		if got != "label:"+url {
			t.Errorf("FetchReference() = %q", got)
		}
	}
	if n := fetcher.count(url); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
	if labels.Len() != 1 {
		t.Errorf("Len() = %d, want 1", labels.Len())
	}
}

func TestLabels_SimilarURLsKeepOwnLabels(t *testing.T) {
	fetcher := &countingFetcher{}
	labels, err := NewLabels(fetcher, Config{MemorySize: 16})
	if err != nil {
		t.Fatalf("NewLabels() error = %v", err)
	}
	ctx := context.Background()

	urls := []string{
		"https://swapi.dev/api/films/?id=1&id=2",
		"https://swapi.dev/api/films/?id=1",
		"http://swapi.dev/api/films/1/",
		"https://swapi.dev/api/films/1/",
	}
	for round := 0; round < 2; round++ {
		for _, url := range urls {
			got, err := labels.FetchReference(ctx, url)
			if err != nil {
				t.Fatalf("FetchReference(%q) error = %v", url, err)
			}
			if got != "label:"+url {
				t.Errorf("FetchReference(%q) = %q, want %q", url, got, "label:"+url)
			}
		}
	}
	for _, url := range urls {
		if n := fetcher.count(url); n != 1 {
			t.Errorf("fetcher called %d times for %q, want 1", n, url)
		}
	}
	if labels.Len() != len(urls) {
		t.Errorf("Len() = %d, want %d", labels.Len(), len(urls))
	}
}

func TestLabels_ConcurrentLookupsCollapse(t *testing.T) {
	fetcher := &countingFetcher{delay: 50 * time.Millisecond}
	labels, err := NewLabels(fetcher, Config{})
	if err != nil {
		t.Fatalf("NewLabels() error = %v", err)
	}
	url := "https://swapi.dev/api/films/1/"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := labels.FetchReference(context.Background(), url); err != nil {
				t.Errorf("FetchReference() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := fetcher.count(url); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
}

func TestLabels_ErrorsNotCached(t *testing.T) {
	boom := errors.New("boom")
	fetcher := &countingFetcher{err: boom}
	labels, err := NewLabels(fetcher, Config{})
	if err != nil {
		t.Fatalf("NewLabels() error = %v", err)
	}
	url := "https://swapi.dev/api/species/1/"

	for i := 0; i < 2; i++ {
		if _, err := labels.FetchReference(context.Background(), url); !errors.Is(err, boom) {
			t.Fatalf("FetchReference() error = %v, want boom", err)
		}
	}
	if n := fetcher.count(url); n != 2 {
		t.Errorf("fetcher called %d times, want 2", n)
	}
}

func TestLabels_RedisLayer(t *testing.T) {
	store := &mapStore{}
	url := "https://swapi.dev/api/planets/1/"
	store.Set(context.Background(), LabelKey{URL: url}, "Tatooine")
	store.sets.Store(0)

	fetcher := &countingFetcher{}
	labels, err := NewLabels(fetcher, Config{Redis: store})
	if err != nil {
		t.Fatalf("NewLabels() error = %v", err)
	}

	got, err := labels.FetchReference(context.Background(), url)
	if err != nil {
		t.Fatalf("FetchReference() error = %v", err)
	}
	if got != "Tatooine" {
		t.Errorf("FetchReference() = %q, want Tatooine", got)
	}
	if fetcher.count(url) != 0 {
		t.Error("redis hit must not reach the fetcher")
	}

	other := "https://swapi.dev/api/planets/2/"
	if _, err := labels.FetchReference(context.Background(), other); err != nil {
		t.Fatalf("FetchReference() error = %v", err)
	}
	if store.sets.Load() != 1 {
		t.Errorf("store.Set called %d times, want 1", store.sets.Load())
	}
}

func TestLabels_RedisErrorFallsThrough(t *testing.T) {
	store := &mapStore{getErr: errors.New("connection refused")}
	fetcher := &countingFetcher{}
	labels, err := NewLabels(fetcher, Config{Redis: store})
	if err != nil {
		t.Fatalf("NewLabels() error = %v", err)
	}

	url := "https://swapi.dev/api/vehicles/14/"
	got, err := labels.FetchReference(context.Background(), url)
	if err != nil {
		t.Fatalf("FetchReference() error = %v", err)
	}
	if got != "label:"+url {
		t.Errorf("FetchReference() = %q", got)
	}
}
