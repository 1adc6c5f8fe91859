// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bep/geotag"
	"github.com/cenkalti/backoff/v3"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap instance.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the client, which the Nominatim usage
	// policy requires.
	DefaultUserAgent = "geotag/1.0"

	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
)

// NominatimOptions configures a Nominatim client.
type NominatimOptions struct {
	// BaseURL of the service. Default value is DefaultNominatimURL.
	BaseURL string

	// UserAgent sent with every request. Default value is DefaultUserAgent.
	UserAgent string

	// Timeout per request. Default value is 10 seconds.
	Timeout time.Duration

	// MaxRetries after the first attempt. Default value is 2.
	// Set to a negative value to disable retries.
	MaxRetries int

	// NewBackOff returns the wait policy between attempts.
	// Default is exponential backoff.
	NewBackOff func() backoff.BackOff
}

// Nominatim is a Geocoder backed by the Nominatim search API.
type Nominatim struct {
	baseURL    *url.URL
	client     *http.Client
	userAgent  string
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

var _ Geocoder = (*Nominatim)(nil)

// NewNominatim creates a Nominatim client.
func NewNominatim(opts NominatimOptions) (*Nominatim, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultNominatimURL
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("error processing geocoder URL (%q): %w", opts.BaseURL, err)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			return &backoff.ExponentialBackOff{
				InitialInterval:     500 * time.Millisecond,
				RandomizationFactor: 0.5,
				Multiplier:          1.5,
				MaxInterval:         5 * time.Second,
				MaxElapsedTime:      30 * time.Second,
				Clock:               backoff.SystemClock,
			}
		}
	}

	const dialTimeout = 5 * time.Second

	return &Nominatim{
		baseURL:   u,
		userAgent: opts.UserAgent,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
				TLSHandshakeTimeout: dialTimeout,
			},
		},
		maxRetries: uint64(opts.MaxRetries),
		newBackOff: opts.NewBackOff,
	}, nil
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve implements the Geocoder interface.
func (n *Nominatim) Resolve(ctx context.Context, address string) (Place, error) {
	address = NormalizeAddress(address)
	if address == "" {
		return Place{}, ErrEmptyAddress
	}

	dest := n.baseURL.ResolveReference(&url.URL{Path: "search"})
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	dest.RawQuery = q.Encode()

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, dest.String(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("error creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", n.userAgent)

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			return fmt.Errorf("%s (server error)", http.StatusText(resp.StatusCode))
		// Give up right away on other client errors.
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%s (client error)", http.StatusText(resp.StatusCode)))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(n.newBackOff(), n.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Place{}, err
		}
		return Place{}, fmt.Errorf("error sending request: %w", err)
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Place{}, fmt.Errorf("error decoding the response payload: %w", err)
	}
	if len(results) == 0 {
		return Place{}, fmt.Errorf("%w for address %q", ErrNotFound, address)
	}

	return results[0].place()
}

func (r nominatimResult) place() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid longitude %q: %w", r.Lon, err)
	}
	c := geotag.Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return Place{}, err
	}
	return Place{Coordinate: c, DisplayName: r.DisplayName}, nil
}
