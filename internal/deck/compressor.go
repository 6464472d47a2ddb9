package deck

import (
	"deckpack/internal/deck/interfaces"
	"deckpack/internal/structures"
	"errors"
	"fmt"
	"github.com/klauspost/compress/zstd"
)

type ZstdCompression struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	maxMemory int64
}

func (z *ZstdCompression) Compress(val []byte) ([]byte, error) {
	return z.encoder.EncodeAll(val, make([]byte, 0, len(val)/2)), nil
}

// Decompress reports frames that expand past the memory ceiling as
// ErrPayloadTooLarge.
func (z *ZstdCompression) Decompress(val []byte) ([]byte, error) {
	out, err := z.decoder.DecodeAll(val, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, tooLarge("zstd frame", z.maxMemory)
	}
	return out, err
}

func (z *ZstdCompression) Close() {
	_ = z.encoder.Close()
	z.decoder.Close()
}

// NewZstdCompressor builds the codec used for modern collection entries. The
// decoder refuses frames that would expand past the configured entry ceiling.
func NewZstdCompressor(conf *structures.Config) (interfaces.CompressorInterface, error) {
	return newZstdCompression(conf.Codec.MaxEntryBytes)
}

func newZstdCompression(maxMemory int64) (*ZstdCompression, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(0)}
	if maxMemory > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(uint64(maxMemory)))
	}
	decoder, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompression{encoder: encoder, decoder: decoder, maxMemory: maxMemory}, nil
}
