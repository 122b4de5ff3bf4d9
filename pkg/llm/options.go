package llm

// Option overrides generation parameters for a single call.
type Option func(*Options)

type Options struct {
	Temperature *float64
	MaxTokens   int
	// OnChunk receives each decoded piece as it is produced
	OnChunk func(piece string) error
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = &temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithOnChunk(fn func(piece string) error) Option {
	return func(o *Options) {
		o.OnChunk = fn
	}
}

func ApplyOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
