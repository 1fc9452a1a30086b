// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/moslevin/mark3-logger/lib/codec"
)

// Reader reads chunks from a capture file.
type Reader struct {
	decoder *codec.Decoder
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{decoder: codec.NewDecoder(r)}
}

// Next returns the next chunk with its payload decompressed and
// verified. It returns io.EOF after the last chunk. A file cut off in
// the middle of a chunk returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Chunk, error) {
	var chunk Chunk
	if err := r.decoder.Decode(&chunk); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Chunk{}, err
		}
		return Chunk{}, fmt.Errorf("capture: decoding chunk: %w", err)
	}

	payload, err := decompress(chunk.Data, chunk.Compression, chunk.Size)
	if err != nil {
		return Chunk{}, fmt.Errorf("capture: chunk %d: %w", chunk.Sequence, err)
	}
	if !bytes.Equal(digest(payload), chunk.Digest) {
		return Chunk{}, fmt.Errorf("%w: chunk %d", ErrDigestMismatch, chunk.Sequence)
	}
	chunk.Data = payload
	return chunk, nil
}

// ReadAll returns the concatenated payloads of every chunk in r.
func ReadAll(r io.Reader) ([]byte, error) {
	reader := NewReader(r)
	var payload []byte
	for {
		chunk, err := reader.Next()
		if err == io.EOF {
			return payload, nil
		}
		if err != nil {
			return payload, err
		}
		payload = append(payload, chunk.Data...)
	}
}
