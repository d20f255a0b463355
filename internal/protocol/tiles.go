package protocol

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Кодеры без состояния между вызовами, EncodeAll/DecodeAll безопасны
// для одновременного использования.
var (
	tileEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	tileDecoder, _ = zstd.NewReader(nil)
)

// CompressTiles сжимает сырые тайлы региона
func CompressTiles(tiles []byte) []byte {
	return tileEncoder.EncodeAll(tiles, make([]byte, 0, len(tiles)/4+16))
}

// DecompressTiles распаковывает тайлы, сжатые CompressTiles
func DecompressTiles(data []byte) ([]byte, error) {
	tiles, err := tileDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки тайлов: %w", err)
	}
	return tiles, nil
}
