package constants

type Option = option

func WithCacheDir(cacheDir func() (string, error)) option {
	return func(o *options) {
		o.cacheDir = cacheDir
	}
}
