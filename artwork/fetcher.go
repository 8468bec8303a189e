// Package artwork merges artist background images from several
// independent providers, with a per-artist TTL cache and in-flight
// request coalescing.
package artwork

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zekimust-a11y/soundstream-sub000/log"
	"github.com/zekimust-a11y/soundstream-sub000/storage"
)

const (
	defaultTTL       = time.Hour * 6
	defaultMaxImages = 10

	storageKey = "artist_images"
)

type entry struct {
	URLs      []string  `json:"urls"`
	FetchedAt time.Time `json:"fetched_at"`
}

type Fetcher struct {
	providers []Provider
	ttl       time.Duration
	maxImages int
	store     *storage.Storage

	group singleflight.Group

	mu     sync.Mutex
	cache  map[string]entry
	loaded bool
}

type FetcherOption func(*Fetcher)

func WithProviders(providers ...Provider) FetcherOption {
	return func(f *Fetcher) {
		f.providers = providers
	}
}

func WithTTL(ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

func WithMaxImages(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxImages = n
		}
	}
}

// WithStore persists the cache through the given storage.
func WithStore(store *storage.Storage) FetcherOption {
	return func(f *Fetcher) {
		f.store = store
	}
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		providers: DefaultProviders(),
		ttl:       defaultTTL,
		maxImages: defaultMaxImages,
		cache:     map[string]entry{},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// ArtistImages returns background image URLs for an artist. It never
// fails; provider errors degrade to fewer (or zero) images. Concurrent
// lookups for the same artist share one outstanding fetch.
func (f *Fetcher) ArtistImages(ctx context.Context, artist string) []string {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return nil
	}
	key := strings.ToLower(artist)

	f.mu.Lock()
	f.loadLocked()
	if e, ok := f.cache[key]; ok && time.Since(e.FetchedAt) < f.ttl {
		f.mu.Unlock()
		return e.URLs
	}
	f.mu.Unlock()

	v, _, _ := f.group.Do(key, func() (interface{}, error) {
		urls := f.lookup(ctx, artist)
		if len(urls) == 0 {
			// Empty results are not cached; the next lookup retries.
			return urls, nil
		}
		f.mu.Lock()
		f.cache[key] = entry{URLs: urls, FetchedAt: time.Now()}
		f.persistLocked()
		f.mu.Unlock()
		return urls, nil
	})
	urls, _ := v.([]string)
	return urls
}

// lookup queries every provider concurrently and merges the results
// de-duplicated, in provider order, capped at maxImages.
func (f *Fetcher) lookup(ctx context.Context, artist string) []string {
	results := make([][]string, len(f.providers))
	var wg sync.WaitGroup
	for i, p := range f.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			urls, err := p.Lookup(ctx, artist)
			if err != nil {
				log.WithField("package", "artwork").WithError(err).Debugf("provider %s failed for %q", p.Name(), artist)
				return
			}
			results[i] = urls
		}(i, p)
	}
	wg.Wait()

	seen := map[string]bool{}
	var merged []string
	for _, urls := range results {
		for _, u := range urls {
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			merged = append(merged, u)
			if len(merged) >= f.maxImages {
				return merged
			}
		}
	}
	return merged
}

func (f *Fetcher) loadLocked() {
	if f.loaded {
		return
	}
	f.loaded = true
	if f.store == nil {
		return
	}
	data, err := f.store.Load(storageKey)
	if err != nil || len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, &f.cache); err != nil {
		f.cache = map[string]entry{}
	}
}

func (f *Fetcher) persistLocked() {
	if f.store == nil {
		return
	}
	data, err := json.Marshal(f.cache)
	if err != nil {
		return
	}
	if err := f.store.Save(storageKey, data); err != nil {
		log.WithField("package", "artwork").WithError(err).Debug("unable to persist image cache")
	}
}
