package util

import (
	"github.com/klauspost/compress/zstd"
)

// ZstdCompress compresses data with Zstandard at the default level,
// returning a self-contained frame decodable by NewZstdReadCloser or
// ZstdDecompress. Used to shrink checkpoint payloads, which tend to be
// large serialized snapshots of SMR object state, before they are
// written to the log.
func ZstdCompress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// ZstdDecompress reverses ZstdCompress.
func ZstdDecompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
