// Package geocode resolves free-text addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/gridheadroom/internal/config"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

// ErrAddressNotFound means the geocoder had no result for the address
var ErrAddressNotFound = errors.New("address not found")

// Nominatim is a client for the OpenStreetMap Nominatim search API
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatim creates a geocoder from config
func NewNominatim(cfg config.GeocoderConfig) *Nominatim {
	return &Nominatim{
		baseURL:    strings.TrimRight(cfg.GetURL(), "/"),
		userAgent:  cfg.GetUserAgent(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for address
func (n *Nominatim) Geocode(ctx context.Context, address string) (*models.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding geocoder response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing longitude %q: %w", results[0].Lon, err)
	}

	return &models.Location{Lat: lat, Lon: lon, Name: results[0].DisplayName}, nil
}
