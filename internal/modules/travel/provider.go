package travel

import "context"

// Provider returns travel durations for every origin/destination pair of a
// batch. The result is indexed [origin][destination]. Implementations may
// refuse batches larger than the builder's configured limits.
type Provider interface {
	BatchDurations(ctx context.Context, origins, destinations []Place, mode Mode) ([][]Element, error)
}
