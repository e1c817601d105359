package maps

import (
	"fmt"

	"googlemaps.github.io/maps"

	"calroute/internal/modules/travel"
)

// Option configures the underlying Google Maps client.
type Option func(*clientOptions)

type clientOptions struct {
	apiKey    string
	baseURL   string
	rateLimit int
}

func WithAPIKey(key string) Option {
	return func(o *clientOptions) { o.apiKey = key }
}

// WithRateLimit caps requests per second across the client.
func WithRateLimit(perSecond int) Option {
	return func(o *clientOptions) { o.rateLimit = perSecond }
}

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) { o.baseURL = url }
}

// NewClient creates the shared Google Maps client used by the services of
// this package.
func NewClient(opts ...Option) (*maps.Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, fmt.Errorf("maps: api key is required")
	}

	clientOpts := []maps.ClientOption{maps.WithAPIKey(o.apiKey)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(o.baseURL))
	}
	if o.rateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(o.rateLimit))
	}
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

// placeQuery is how a place is named in a request: coordinates when known,
// otherwise its address key.
func placeQuery(p travel.Place) string {
	if p.HasCoords() {
		return p.Point.String()
	}
	return p.Key
}
