package cooldown

// Option applies a configuration option to a Witness.
type Option func(*Witness)

// WithCapacity sets the maximum number of counterparties to remember.
// Non-positive values keep the default.
func WithCapacity(capacity int) Option {
	return func(w *Witness) {
		if capacity > 0 {
			w.capacity = capacity
		}
	}
}
