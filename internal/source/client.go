package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redwatch/redwatch/internal/logger"
)

// placeholderThumbnail is a 1x1 transparent PNG served when the source has
// no photograph for a person.
const placeholderThumbnail = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// maxResponseSize caps how much body is read per request.
const maxResponseSize = 1 << 20

// HTTPSource fetches the watchlist over the source's paged JSON API.
type HTTPSource struct {
	// baseURL is the list endpoint.
	baseURL string
	// nationality is the upstream filter; only matching persons are returned.
	nationality string
	// pageSize is the number of entries requested per page.
	pageSize int
	// client is the underlying HTTP client with its request timeout.
	client *http.Client
}

// NewHTTPSource creates a source client for the given list endpoint.
func NewHTTPSource(baseURL, nationality string, pageSize int, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:     baseURL,
		nationality: nationality,
		pageSize:    pageSize,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// listResponse is the paged envelope of the list endpoint.
type listResponse struct {
	Embedded struct {
		Notices []noticeRef `json:"notices"`
	} `json:"_embedded"`
	Total int `json:"total"`
}

// noticeRef is one list entry pointing at the person's detail document.
type noticeRef struct {
	Links struct {
		Self struct {
			Href string `json:"href"`
		} `json:"self"`
	} `json:"_links"`
}

// imagesResponse is the envelope of a person's picture gallery.
type imagesResponse struct {
	Embedded struct {
		Images []struct {
			Links struct {
				Self struct {
					Href string `json:"href"`
				} `json:"self"`
			} `json:"_links"`
		} `json:"images"`
	} `json:"_embedded"`
}

// Fetch walks every page of the list endpoint and resolves each entry into
// its full detail document, thumbnail and picture gallery included.
func (s *HTTPSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	var records []RawRecord

	for page := 1; ; page++ {
		query := url.Values{}
		if s.nationality != "" {
			query.Set("nationality", s.nationality)
		}

		query.Set("resultPerPage", strconv.Itoa(s.pageSize))
		query.Set("page", strconv.Itoa(page))

		var list listResponse
		if err := s.getJSON(ctx, s.baseURL+"?"+query.Encode(), &list); err != nil {
			return nil, fmt.Errorf("list page %d: %w", page, err)
		}

		for _, ref := range list.Embedded.Notices {
			record, err := s.fetchDetail(ctx, ref.Links.Self.Href)
			if err != nil {
				// A partial sweep would look like entities vanished,
				// so the whole cycle fails and gets retried instead.
				return nil, fmt.Errorf("detail %s: %w", ref.Links.Self.Href, err)
			}

			records = append(records, record)
		}

		if len(list.Embedded.Notices) < s.pageSize {
			return records, nil
		}
	}
}

// fetchDetail loads one person document and attaches the thumbnail and the
// picture gallery references.
func (s *HTTPSource) fetchDetail(ctx context.Context, href string) (RawRecord, error) {
	var record RawRecord
	if err := s.getJSON(ctx, href, &record); err != nil {
		return nil, err
	}

	record["thumbnail"] = s.fetchThumbnail(ctx, record)

	images, err := s.fetchImages(ctx, record)
	if err != nil {
		// An unreadable gallery would read as every picture removed.
		return nil, err
	}

	if len(images) > 0 {
		record["images"] = images
	}

	return record, nil
}

// fetchImages resolves the person's gallery into its picture references.
// Persons without a gallery link yield nothing.
func (s *HTTPSource) fetchImages(ctx context.Context, record RawRecord) ([]any, error) {
	links, ok := record["_links"].(map[string]any)
	if !ok {
		return nil, nil
	}

	images, ok := links["images"].(map[string]any)
	if !ok {
		return nil, nil
	}

	href, ok := images["href"].(string)
	if !ok || href == "" {
		return nil, nil
	}

	var list imagesResponse
	if err := s.getJSON(ctx, href, &list); err != nil {
		return nil, fmt.Errorf("gallery %s: %w", href, err)
	}

	refs := make([]any, 0, len(list.Embedded.Images))

	for _, img := range list.Embedded.Images {
		if img.Links.Self.Href != "" {
			refs = append(refs, img.Links.Self.Href)
		}
	}

	return refs, nil
}

// fetchThumbnail returns the person's photograph as base64, falling back to
// the placeholder when the source has none or the download fails.
func (s *HTTPSource) fetchThumbnail(ctx context.Context, record RawRecord) string {
	links, ok := record["_links"].(map[string]any)
	if !ok {
		return placeholderThumbnail
	}

	thumb, ok := links["thumbnail"].(map[string]any)
	if !ok {
		return placeholderThumbnail
	}

	href, ok := thumb["href"].(string)
	if !ok || href == "" {
		return placeholderThumbnail
	}

	data, err := s.getBytes(ctx, href)
	if err != nil {
		logger.WarnKV(ctx, "Thumbnail download failed, using placeholder", "url", href, "error", err)

		return placeholderThumbnail
	}

	return base64.StdEncoding.EncodeToString(data)
}

// getJSON performs a GET request and decodes the JSON body into target.
func (s *HTTPSource) getJSON(ctx context.Context, rawURL string, target any) error {
	data, err := s.getBytes(ctx, rawURL)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrSourceUnavailable, err)
	}

	return nil
}

// getBytes performs a GET request and returns the raw body.
func (s *HTTPSource) getBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrSourceUnavailable, resp.Status)
	}

	// One byte past the cap distinguishes "exactly at the limit" from
	// "truncated", which must not pass as a complete body.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrSourceUnavailable, err)
	}

	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrSourceUnavailable, maxResponseSize)
	}

	return data, nil
}
