// Package transfer implements the encrypted, chunked file transfer
// protocol that runs over an already-open data channel: wire framing,
// the AES-GCM chunk codec, backpressure-aware pacing, multi-file
// queueing, and the receiver's accept/reject flow.
package transfer

import (
	"encoding/binary"
	"fmt"
)

// Message-type tags, one byte, prefixing every frame on the wire.
const (
	TagFileInfo      byte = 0x01
	TagFileChunk     byte = 0x02
	TagFileComplete  byte = 0x03
	TagFileAccept    byte = 0x04
	TagFileReject    byte = 0x05
	TagProgress      byte = 0x10 // reserved, never emitted
	TagEncryptionKey byte = 0x20
	TagQueueInfo     byte = 0x21
)

// ChunkSize is the plaintext size of every chunk but the last.
const ChunkSize = 65536

// Backpressure watermarks on the data channel's buffered-byte count.
const (
	BufferFull = 262144
	BufferLow  = 131072
)

// EncodeFrame prepends a tag byte to payload.
func EncodeFrame(tag byte, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = tag
	copy(out[1:], payload)
	return out
}

// DecodeFrame splits a raw transport message into its tag and payload.
func DecodeFrame(data []byte) (tag byte, payload []byte, err error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("transfer: empty frame")
	}
	return data[0], data[1:], nil
}

// ChunkFrame is the decoded form of a FILE_CHUNK payload.
type ChunkFrame struct {
	ChunkIndex uint32
	FileID     string
	IV         []byte
	Ciphertext []byte
}

// EncodeChunk lays out a FILE_CHUNK payload per the wire format:
// chunk_index(u32) file_id_len(u8) file_id iv_len(u8) iv ciphertext+tag.
func EncodeChunk(f ChunkFrame) []byte {
	fileID := []byte(f.FileID)
	buf := make([]byte, 4+1+len(fileID)+1+len(f.IV)+len(f.Ciphertext))

	binary.BigEndian.PutUint32(buf[0:4], f.ChunkIndex)
	offset := 4

	buf[offset] = byte(len(fileID))
	offset++
	copy(buf[offset:], fileID)
	offset += len(fileID)

	buf[offset] = byte(len(f.IV))
	offset++
	copy(buf[offset:], f.IV)
	offset += len(f.IV)

	copy(buf[offset:], f.Ciphertext)
	return buf
}

// DecodeChunk parses a FILE_CHUNK payload.
func DecodeChunk(data []byte) (ChunkFrame, error) {
	if len(data) < 4+1 {
		return ChunkFrame{}, fmt.Errorf("transfer: chunk frame too short")
	}
	chunkIndex := binary.BigEndian.Uint32(data[0:4])
	offset := 4

	fileIDLen := int(data[offset])
	offset++
	if len(data) < offset+fileIDLen+1 {
		return ChunkFrame{}, fmt.Errorf("transfer: chunk frame truncated (file id)")
	}
	fileID := string(data[offset : offset+fileIDLen])
	offset += fileIDLen

	ivLen := int(data[offset])
	offset++
	if len(data) < offset+ivLen {
		return ChunkFrame{}, fmt.Errorf("transfer: chunk frame truncated (iv)")
	}
	iv := data[offset : offset+ivLen]
	offset += ivLen

	ciphertext := data[offset:]

	return ChunkFrame{
		ChunkIndex: chunkIndex,
		FileID:     fileID,
		IV:         iv,
		Ciphertext: ciphertext,
	}, nil
}
