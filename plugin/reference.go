package plugin

import (
	"context"
	"encoding/binary"
	"math"
)

// NewReferenceHandle returns a deterministic in-memory Handle with no real
// ML behind it, useful for tests and for exercising the coordinator/poo
// pipeline end to end without a real plugin process. Optimize derives a
// metric from the seed so repeated calls with the same seed are
// reproducible, matching the anti-grinding contract seedpolicy provides.
func NewReferenceHandle() Handle {
	return Handle{
		Optimize: func(ctx context.Context, req OptimizeRequest) (OptimizeResult, error) {
			select {
			case <-ctx.Done():
				return OptimizeResult{}, ctx.Err()
			default:
			}
			metric := seedToUnitFloat(req.Seed)
			params := append([]byte{}, req.Parameters...)
			params = append(params, req.Seed...)
			return OptimizeResult{Parameters: params, ReportedMetric: metric}, nil
		},
		Evaluate: func(ctx context.Context, req EvaluateRequest) (EvaluateResult, error) {
			select {
			case <-ctx.Done():
				return EvaluateResult{}, ctx.Err()
			default:
			}
			metric := seedToUnitFloat(req.SyntheticSeed)
			return EvaluateResult{MeasuredMetric: metric}, nil
		},
		GenerateSynthetic: func(ctx context.Context, domainID string, seed []byte) ([]byte, error) {
			return append([]byte(domainID), seed...), nil
		},
	}
}

// seedToUnitFloat maps an arbitrary-length seed to a float in [0, 1] by
// reading its first eight bytes (zero-padded) as a big-endian uint64 and
// scaling; the seed is not hashed.
func seedToUnitFloat(seed []byte) float64 {
	var buf [8]byte
	copy(buf[:], seed)
	v := binary.BigEndian.Uint64(buf[:])
	return float64(v) / float64(math.MaxUint64)
}
