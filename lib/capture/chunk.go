// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"

	"github.com/zeebo/blake3"
)

// Chunk is one transport write as stored in a capture file.
type Chunk struct {
	// Sequence numbers chunks from 0 in write order.
	Sequence uint64 `cbor:"seq"`

	// Time is the host time of the write in Unix nanoseconds.
	Time int64 `cbor:"time"`

	// Compression is the algorithm applied to Data in the file.
	// Chunks returned by Reader carry decompressed Data and keep this
	// field for information.
	Compression Compression `cbor:"comp"`

	// Size is the uncompressed payload length.
	Size int `cbor:"size"`

	// Digest is the keyed BLAKE3-256 of the uncompressed payload.
	Digest []byte `cbor:"digest"`

	Data []byte `cbor:"data"`
}

// ErrDigestMismatch is returned by Reader.Next when a payload does not
// match its digest.
var ErrDigestMismatch = errors.New("capture: chunk digest mismatch")

// chunkDomainKey keys payload digests, separating them from every
// other BLAKE3 use.
var chunkDomainKey = [32]byte{
	'm', 'a', 'r', 'k', '3', '.', 'c', 'a', 'p', 't', 'u', 'r', 'e', '.',
	'c', 'h', 'u', 'n', 'k',
}

// digest returns the keyed BLAKE3-256 of data.
func digest(data []byte) []byte {
	hasher, err := blake3.NewKeyed(chunkDomainKey[:])
	if err != nil {
		panic("capture: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}
