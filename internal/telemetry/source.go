package telemetry

// Strategy names a signal model.
type Strategy string

// Available signal models.
const (
	StrategyRecord Strategy = "record"
	StrategyScalar Strategy = "scalar"
)

// Source produces one telemetry value per call. RecordGenerator and
// ScalarGenerator both satisfy it; callers pick the strategy they need.
type Source[T any] interface {
	Strategy() Strategy
	Next() T
}

// Take draws n values from src in order.
func Take[T any](src Source[T], n int) []T {
	if n <= 0 {
		return nil
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, src.Next())
	}
	return out
}
