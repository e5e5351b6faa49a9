package renderer

const (
	DefaultBlockSize   = 16
	DefaultPreviewCell = 8
)

// Options shared by the raytracing renderers.
type Options struct {
	// Side (pixels) of a quality pass tile.
	BlockSize int

	// Side (pixels) of a preview pass cell. One ray is cast per cell.
	PreviewCell int

	// Seed for the sampling jitter.
	Seed int64
}

// Get the options with unset values replaced by the defaults.
func (o Options) WithDefaults() Options {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.PreviewCell <= 0 {
		o.PreviewCell = DefaultPreviewCell
	}
	return o
}
