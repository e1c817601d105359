package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"calroute/internal/modules/travel"
	"calroute/internal/types"
)

var ErrNoResults = errors.New("maps: no results")

// Geocoder turns free-text addresses into places with coordinates.
type Geocoder struct {
	client *maps.Client
}

func NewGeocoder(client *maps.Client) *Geocoder {
	return &Geocoder{client: client}
}

// Resolve keeps the address as the place key so cache entries stay stable
// across geocoder result changes.
func (g *Geocoder) Resolve(ctx context.Context, address string) (travel.Place, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return travel.Place{}, fmt.Errorf("geocode: empty address")
	}

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return travel.Place{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return travel.Place{}, fmt.Errorf("geocode %q: %w", address, ErrNoResults)
	}

	loc := results[0].Geometry.Location
	p := travel.NewPlace(address)
	p.Point = &types.Point{Lat: loc.Lat, Lng: loc.Lng}
	return p, nil
}
