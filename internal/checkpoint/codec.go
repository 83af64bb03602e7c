package checkpoint

import "github.com/Sumatoshi-tech/lazygrain/pkg/persist"

// Codec is an alias for [persist.Codec].
type Codec = persist.Codec

// JSONCodec is an alias for [persist.JSONCodec].
type JSONCodec = persist.JSONCodec

// GobCodec is an alias for [persist.GobCodec].
type GobCodec = persist.GobCodec

// LZ4GobCodec is an alias for [persist.LZ4GobCodec].
type LZ4GobCodec = persist.LZ4GobCodec

// NewJSONCodec creates a JSON codec with pretty-printing.
func NewJSONCodec() *JSONCodec {
	return persist.NewJSONCodec()
}

// NewGobCodec creates a gob codec.
func NewGobCodec() *GobCodec {
	return persist.NewGobCodec()
}

// NewLZ4GobCodec creates an LZ4-compressed gob codec.
func NewLZ4GobCodec() *LZ4GobCodec {
	return persist.NewLZ4GobCodec()
}
