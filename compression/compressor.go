package compression

// Compressor applies a codec to batch payloads subject to the configured
// minimum size. Payloads below MinSize are passed through untouched.
type Compressor struct {
	codec   Codec
	minSize int
	enabled bool
}

// NewCompressor wires a codec with its size threshold. A disabled compressor
// never compresses.
func NewCompressor(enabled bool, algorithm string, level, minSize int) (*Compressor, error) {
	codec, err := New(algorithm, level)
	if err != nil {
		return nil, err
	}
	return &Compressor{codec: codec, minSize: minSize, enabled: enabled}, nil
}

// Maybe compresses src when the compressor is enabled and src meets the size
// threshold. It reports whether compression was applied.
func (c *Compressor) Maybe(src []byte) (out []byte, compressed bool, err error) {
	if c == nil || !c.enabled || c.codec.Name() == None || len(src) < c.minSize {
		return src, false, nil
	}
	out, err = c.codec.Compress(src)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Algorithm returns the underlying codec name.
func (c *Compressor) Algorithm() string {
	if c == nil {
		return None
	}
	return c.codec.Name()
}
