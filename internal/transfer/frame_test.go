package transfer

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeFrame_RoundTrip(t *testing.T) {
	tags := []byte{TagFileInfo, TagFileChunk, TagFileComplete, TagFileAccept, TagFileReject, TagProgress, TagEncryptionKey, TagQueueInfo}
	for _, tag := range tags {
		payload := []byte("payload-" + string(tag))
		frame := EncodeFrame(tag, payload)

		gotTag, gotPayload, err := DecodeFrame(frame)
		if err != nil {
			t.Fatalf("tag 0x%02x: DecodeFrame error: %v", tag, err)
		}
		if gotTag != tag {
			t.Fatalf("tag mismatch: got 0x%02x want 0x%02x", gotTag, tag)
		}
		if !bytes.Equal(gotPayload, payload) {
			t.Fatalf("payload mismatch: got %q want %q", gotPayload, payload)
		}
	}
}

func TestDecodeFrame_EmptyIsError(t *testing.T) {
	if _, _, err := DecodeFrame(nil); err == nil {
		t.Fatal("expected error decoding empty frame")
	}
}

func TestEncodeDecodeChunk_RoundTrip(t *testing.T) {
	original := ChunkFrame{
		ChunkIndex: 42,
		FileID:     "f1d0-uuid-like-string",
		IV:         []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Ciphertext: bytes.Repeat([]byte{0xAB}, 256),
	}

	encoded := EncodeChunk(original)
	decoded, err := DecodeChunk(encoded)
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}

	if decoded.ChunkIndex != original.ChunkIndex {
		t.Errorf("chunk index mismatch: got %d want %d", decoded.ChunkIndex, original.ChunkIndex)
	}
	if decoded.FileID != original.FileID {
		t.Errorf("file id mismatch: got %q want %q", decoded.FileID, original.FileID)
	}
	if !bytes.Equal(decoded.IV, original.IV) {
		t.Errorf("iv mismatch: got %x want %x", decoded.IV, original.IV)
	}
	if !bytes.Equal(decoded.Ciphertext, original.Ciphertext) {
		t.Errorf("ciphertext mismatch")
	}
}

func TestDecodeChunk_TruncatedIsError(t *testing.T) {
	if _, err := DecodeChunk([]byte{0, 0, 0, 1}); err == nil {
		t.Fatal("expected error on truncated chunk frame")
	}
}
