package artwork

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// Provider is one read-only artist image lookup. A failing provider
// simply contributes no images.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, artist string) ([]string, error)
}

// DefaultProviders returns the three public lookups used in
// production.
func DefaultProviders() []Provider {
	return []Provider{
		newDeezer("https://api.deezer.com"),
		newAudioDB("https://www.theaudiodb.com"),
		newITunes("https://itunes.apple.com"),
	}
}

func newProviderHTTPClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 1
	c.Logger = nil
	return c
}

func fetch(ctx context.Context, client *retryablehttp.Client, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("provider returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

type deezerProvider struct {
	baseURL string
	http    *retryablehttp.Client
}

func newDeezer(baseURL string) *deezerProvider {
	return &deezerProvider{baseURL: baseURL, http: newProviderHTTPClient()}
}

func (p *deezerProvider) Name() string { return "deezer" }

func (p *deezerProvider) Lookup(ctx context.Context, artist string) ([]string, error) {
	data, err := fetch(ctx, p.http, fmt.Sprintf("%s/search/artist?q=%s&limit=3", p.baseURL, url.QueryEscape(artist)))
	if err != nil {
		return nil, err
	}
	var urls []string
	jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, offset int, _ error) {
		if u, err := jsonparser.GetString(value, "picture_xl"); err == nil && u != "" {
			urls = append(urls, u)
			return
		}
		if u, err := jsonparser.GetString(value, "picture_big"); err == nil && u != "" {
			urls = append(urls, u)
		}
	}, "data")
	return urls, nil
}

type audioDBProvider struct {
	baseURL string
	http    *retryablehttp.Client
}

func newAudioDB(baseURL string) *audioDBProvider {
	return &audioDBProvider{baseURL: baseURL, http: newProviderHTTPClient()}
}

func (p *audioDBProvider) Name() string { return "theaudiodb" }

func (p *audioDBProvider) Lookup(ctx context.Context, artist string) ([]string, error) {
	data, err := fetch(ctx, p.http, fmt.Sprintf("%s/api/v1/json/2/search.php?s=%s", p.baseURL, url.QueryEscape(artist)))
	if err != nil {
		return nil, err
	}
	var urls []string
	jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, offset int, _ error) {
		for _, key := range []string{"strArtistFanart", "strArtistFanart2", "strArtistFanart3", "strArtistThumb"} {
			if u, err := jsonparser.GetString(value, key); err == nil && u != "" {
				urls = append(urls, u)
			}
		}
	}, "artists")
	return urls, nil
}

type itunesProvider struct {
	baseURL string
	http    *retryablehttp.Client
}

func newITunes(baseURL string) *itunesProvider {
	return &itunesProvider{baseURL: baseURL, http: newProviderHTTPClient()}
}

func (p *itunesProvider) Name() string { return "itunes" }

func (p *itunesProvider) Lookup(ctx context.Context, artist string) ([]string, error) {
	data, err := fetch(ctx, p.http, fmt.Sprintf("%s/search?term=%s&media=music&entity=album&limit=5", p.baseURL, url.QueryEscape(artist)))
	if err != nil {
		return nil, err
	}
	var urls []string
	jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, offset int, _ error) {
		if u, err := jsonparser.GetString(value, "artworkUrl100"); err == nil && u != "" {
			// iTunes serves larger renditions at the same path.
			urls = append(urls, strings.Replace(u, "100x100", "600x600", 1))
		}
	}, "results")
	return urls, nil
}
