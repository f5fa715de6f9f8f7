package mount

// Options configures a single mount point.
type Options struct {
	// ReadOnly wraps the backend so every mutating call is rejected.
	ReadOnly bool
}

type Option func(*Options) error

func NewOptions(opts ...Option) (*Options, error) {
	options := &Options{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	return options, nil
}

// WithReadOnly mounts the backend behind the mutation-rejecting decorator.
func WithReadOnly() Option {
	return func(o *Options) error {
		o.ReadOnly = true
		return nil
	}
}
