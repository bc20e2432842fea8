package pipeline

// WithChecksum sets the function computing the frame checksum.
func WithChecksum(f func(path string) (string, error)) Option {
	return func(opts *options) {
		opts.checksum = f
	}
}
