package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"biteboard/pkg/logx"
)

const (
	customSearchURL = "https://www.googleapis.com/customsearch/v1"
	imagePageURL    = "https://www.google.com/search"
	pageUserAgent   = "Mozilla/5.0 (Windows NT 6.1; Win64; x64; rv:25.0) Gecko/20100101 Firefox/25.0"
)

// GoogleAPI queries the Custom Search JSON API with searchType=image.
type GoogleAPI struct {
	key, cx  string
	client   *http.Client
	endpoint string
	log      logx.Logger
}

func (g *GoogleAPI) Mode() Mode { return ModeSeparate }

type customSearchResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Pagemap struct {
			CseImage []struct {
				Src string `json:"src"`
			} `json:"cse_image"`
		} `json:"pagemap"`
	} `json:"items"`
}

// Search prefers the page's cse_image thumbnails and falls back to the raw links.
func (g *GoogleAPI) Search(ctx context.Context, query string) ([]string, error) {
	base := g.endpoint
	if base == "" {
		base = customSearchURL
	}
	q := url.Values{}
	q.Set("key", g.key)
	q.Set("cx", g.cx)
	q.Set("q", query)
	q.Set("searchType", "image")
	q.Set("imgType", "photo")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("image search: http %d", resp.StatusCode)
	}

	var body customSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("image search: decode: %w", err)
	}
	var images, links []string
	for _, it := range body.Items {
		if len(it.Pagemap.CseImage) > 0 && it.Pagemap.CseImage[0].Src != "" {
			images = append(images, it.Pagemap.CseImage[0].Src)
		}
		if it.Link != "" {
			links = append(links, it.Link)
		}
	}
	if len(images) > 0 {
		return images, nil
	}
	g.log.Debug("no cse_image results, using links", logx.String("query", query), logx.Int("links", len(links)))
	return links, nil
}

// GooglePage scrapes the image result page. It needs no credentials but
// only yields small thumbnails.
type GooglePage struct {
	client   *http.Client
	endpoint string
	log      logx.Logger
}

func (g *GooglePage) Mode() Mode { return ModeCombined }

func (g *GooglePage) Search(ctx context.Context, query string) ([]string, error) {
	base := g.endpoint
	if base == "" {
		base = imagePageURL
	}
	q := url.Values{}
	q.Set("tbm", "isch")
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", pageUserAgent)
	req.Header.Set("Referer", "http://www.google.com")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("image page: http %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image page: parse: %w", err)
	}
	var out []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, _ := s.Attr("src"); src != "" {
			out = append(out, src)
		}
	})
	return out, nil
}
