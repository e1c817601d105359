package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"calroute/internal/modules/travel"
	"calroute/internal/types"
)

// SearchRadiusMeters bounds nearby searches for location-flexible tasks.
const SearchRadiusMeters = 5000

// POI is a simplified place search result.
type POI struct {
	Name    string
	Address string
	PlaceID string
	Rating  float32
	Point   types.Point
}

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client *maps.Client
}

func NewPlacesService(client *maps.Client) *PlacesService {
	return &PlacesService{client: client}
}

// SearchNearby returns places matching placeType within the search radius
// of near, closest first. placeType is used as the Places type when it is
// one and as a keyword otherwise.
func (s *PlacesService) SearchNearby(ctx context.Context, placeType string, near types.Point) ([]POI, error) {
	placeType = strings.TrimSpace(placeType)
	if placeType == "" {
		return nil, fmt.Errorf("places: empty place type")
	}

	r := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: near.Lat, Lng: near.Lng},
		Radius:   SearchRadiusMeters,
	}
	if t, err := maps.ParsePlaceType(strings.ReplaceAll(strings.ToLower(placeType), " ", "_")); err == nil {
		r.Type = t
	} else {
		r.Keyword = placeType
	}

	resp, err := s.client.NearbySearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	results := make([]POI, 0, len(resp.Results))
	for _, res := range resp.Results {
		addr := res.FormattedAddress
		if addr == "" {
			addr = res.Vicinity
		}
		results = append(results, POI{
			Name:    res.Name,
			Address: addr,
			PlaceID: res.PlaceID,
			Rating:  res.Rating,
			Point:   types.Point{Lat: res.Geometry.Location.Lat, Lng: res.Geometry.Location.Lng},
		})
	}
	travel.SortByDistance(results, func(p POI) float64 {
		return travel.DistanceKm(near, p.Point)
	})
	return results, nil
}

// NearestPOI picks the closest search result as a place keyed by its
// coordinates.
func (s *PlacesService) NearestPOI(ctx context.Context, placeType string, near types.Point) (travel.Place, error) {
	results, err := s.SearchNearby(ctx, placeType, near)
	if err != nil {
		return travel.Place{}, err
	}
	if len(results) == 0 {
		return travel.Place{}, fmt.Errorf("places %q near %s: %w", placeType, near, ErrNoResults)
	}
	best := results[0]
	label := best.Name
	if best.Address != "" {
		label = best.Name + ", " + best.Address
	}
	return travel.NewPointPlace(label, best.Point), nil
}
