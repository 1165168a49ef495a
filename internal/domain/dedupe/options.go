package dedupe

// Option applies a configuration option to InMemory.
type Option func(*InMemory)

// WithMaxSize bounds how many keys are kept. Zero or less means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *InMemory) {
		d.maxSize = maxSize
	}
}
