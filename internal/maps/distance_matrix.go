package maps

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"calroute/internal/modules/travel"
)

const (
	// MaxElements is the Distance Matrix limit on origins or destinations.
	MaxElements = 25

	maxAttempts    = 4
	initialBackoff = 200 * time.Millisecond
)

// DistanceMatrixService answers travel.Provider batches with the Google
// Distance Matrix API.
type DistanceMatrixService struct {
	client  *maps.Client
	backoff time.Duration
}

func NewDistanceMatrixService(client *maps.Client) *DistanceMatrixService {
	return &DistanceMatrixService{client: client, backoff: initialBackoff}
}

func (s *DistanceMatrixService) BatchDurations(ctx context.Context, origins, destinations []travel.Place, mode travel.Mode) ([][]travel.Element, error) {
	if len(origins) > MaxElements || len(destinations) > MaxElements {
		return nil, fmt.Errorf("distance matrix: batch %dx%d exceeds %d", len(origins), len(destinations), MaxElements)
	}

	req := &maps.DistanceMatrixRequest{
		Origins:      queries(origins),
		Destinations: queries(destinations),
		Mode:         maps.Mode(mode.Provider()),
	}

	resp, err := s.withRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix %s: %w", mode, err)
	}
	if len(resp.Rows) != len(origins) {
		return nil, fmt.Errorf("distance matrix %s: got %d rows, want %d", mode, len(resp.Rows), len(origins))
	}

	out := make([][]travel.Element, len(origins))
	for i, row := range resp.Rows {
		out[i] = make([]travel.Element, len(destinations))
		for j := range destinations {
			if j >= len(row.Elements) || row.Elements[j] == nil {
				out[i][j] = travel.Element{Status: travel.StatusNotFound}
				continue
			}
			el := row.Elements[j]
			out[i][j] = travel.Element{
				Status:         el.Status,
				Duration:       el.Duration,
				DistanceMeters: el.Distance.Meters,
			}
		}
	}
	return out, nil
}

// withRetry retries network errors and the transient API statuses with
// exponential backoff, honoring ctx between attempts.
func (s *DistanceMatrixService) withRetry(ctx context.Context, req *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error) {
	backoff := s.backoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := s.client.DistanceMatrix(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || attempt == maxAttempts {
			return nil, lastErr
		}
		log.Printf("[MAPS] distance matrix attempt %d failed, retrying in %s: %v", attempt, backoff, err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "OVER_QUERY_LIMIT") || strings.Contains(msg, "UNKNOWN_ERROR")
}

func queries(places []travel.Place) []string {
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = placeQuery(p)
	}
	return out
}
