package store

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// encoder and decoder are shared; EncodeAll and DecodeAll are safe for
// concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("store: zstd encoder initialization failed: " + err.Error())
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("store: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress returns the zstd encoding of data.
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2+16))
}

// Decompress reverses Compress. size is the expected decompressed length.
func Decompress(packed []byte, size int64) ([]byte, error) {
	data, err := decoder.DecodeAll(packed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("decompress: got %d bytes, want %d", len(data), size)
	}
	return data, nil
}
