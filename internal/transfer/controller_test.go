package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beamline/beamline/internal/files"
)

func writeTempFile(t *testing.T, name string, content []byte) files.LocalFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return files.LocalFile{AbsPath: path, Name: name, Size: int64(len(content)), Type: "application/octet-stream"}
}

func startPair(t *testing.T) (*Controller, *Controller) {
	t.Helper()
	a, b := newFakeChannelPair()
	initiator := NewController(a, true)
	joiner := NewController(b, false)

	if err := initiator.Start(); err != nil {
		t.Fatalf("initiator.Start: %v", err)
	}
	if err := joiner.Start(); err != nil {
		t.Fatalf("joiner.Start: %v", err)
	}

	select {
	case <-joiner.keyReadyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("joiner never became key-ready")
	}

	return initiator, joiner
}

func acceptNextOffer(t *testing.T, receiver *Controller) {
	t.Helper()
	select {
	case offer := <-receiver.Offers:
		offer.Decision <- true
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for offer")
	}
}

func rejectNextOffer(t *testing.T, receiver *Controller) {
	t.Helper()
	select {
	case offer := <-receiver.Offers:
		offer.Decision <- false
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for offer")
	}
}

func TestController_SendReceiveRoundTrip(t *testing.T) {
	sender, receiver := startPair(t)

	content := bytes.Repeat([]byte{0x42}, ChunkSize*2+1234) // multiple chunks, short tail
	lf := writeTempFile(t, "hello.bin", content)

	if err := sender.Send([]files.LocalFile{lf}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	acceptNextOffer(t, receiver)

	select {
	case got := <-receiver.Received:
		if got.Info.Name != "hello.bin" {
			t.Fatalf("name mismatch: %q", got.Info.Name)
		}
		if !bytes.Equal(got.Data, content) {
			t.Fatalf("round trip mismatch: got %d bytes want %d bytes", len(got.Data), len(content))
		}
	case err := <-sender.SendErrors:
		t.Fatalf("unexpected sender error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for received file")
	}

	select {
	case <-sender.Complete:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for send completion")
	}
}

func TestController_ZeroByteFile(t *testing.T) {
	sender, receiver := startPair(t)

	lf := writeTempFile(t, "empty.bin", nil)
	if err := sender.Send([]files.LocalFile{lf}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	acceptNextOffer(t, receiver)

	select {
	case got := <-receiver.Received:
		if len(got.Data) != 0 {
			t.Fatalf("expected empty blob, got %d bytes", len(got.Data))
		}
		if got.Info.TotalChunks != 0 {
			t.Fatalf("expected totalChunks=0, got %d", got.Info.TotalChunks)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for zero-byte file")
	}
}

func TestController_ExactMultipleOfChunkSize(t *testing.T) {
	sender, receiver := startPair(t)

	content := bytes.Repeat([]byte{0x07}, ChunkSize*2)
	lf := writeTempFile(t, "exact.bin", content)
	if err := sender.Send([]files.LocalFile{lf}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	acceptNextOffer(t, receiver)

	select {
	case got := <-receiver.Received:
		if got.Info.TotalChunks != 2 {
			t.Fatalf("expected exactly 2 chunks, got %d", got.Info.TotalChunks)
		}
		if !bytes.Equal(got.Data, content) {
			t.Fatalf("content mismatch on exact-multiple file")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exact-multiple file")
	}
}

func TestController_RejectDiscardsQueueRemainder(t *testing.T) {
	sender, receiver := startPair(t)

	first := writeTempFile(t, "first.bin", []byte("one"))
	second := writeTempFile(t, "second.bin", []byte("two"))

	if err := sender.Send([]files.LocalFile{first, second}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	rejectNextOffer(t, receiver)

	select {
	case err := <-sender.SendErrors:
		if !errors.Is(err, ErrTransferDeclined) {
			t.Fatalf("expected a transfer-declined error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decline error")
	}

	// The second file must never be offered: the batch is cancelled.
	select {
	case offer := <-receiver.Offers:
		t.Fatalf("unexpected second offer after reject: %+v", offer.Info)
	case <-time.After(300 * time.Millisecond):
		// expected: no further offers
	}

	select {
	case <-sender.Complete:
		t.Fatal("Complete must not fire when the batch was cancelled")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestController_PacingRespectsBackpressure(t *testing.T) {
	ch := &pacingFakeChannel{}
	ch.buffered.Store(BufferFull + 1)

	c := NewController(ch, true)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.waitForWindow()
	}()

	select {
	case <-done:
		t.Fatal("waitForWindow returned before the buffer drained")
	case <-time.After(100 * time.Millisecond):
	}

	ch.buffered.Store(0)
	if ch.onLow == nil {
		t.Fatal("controller never registered a low-water callback")
	}
	ch.onLow()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waitForWindow: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waitForWindow never returned after low-water signal")
	}
}

func TestController_SecondOfferAutoRejectedWhileFirstPending(t *testing.T) {
	ch := &pacingFakeChannel{}
	c := NewController(ch, false)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first, _ := json.Marshal(FileInfo{ID: "first", Name: "a.bin", Size: 3, TotalChunks: 1})
	c.handleFileInfo(first)

	var offer *Offer
	select {
	case offer = <-c.Offers:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first offer")
	}

	// A second FILE_INFO while the first is still pending must be rejected
	// on the wire without ever reaching the application.
	second, _ := json.Marshal(FileInfo{ID: "other", Name: "x.bin", TotalChunks: 0})
	c.handleFileInfo(second)

	frames := ch.sentFrames()
	if len(frames) != 1 || frames[0][0] != TagFileReject {
		t.Fatalf("expected exactly one FILE_REJECT frame, got %d frames", len(frames))
	}
	select {
	case surplus := <-c.Offers:
		t.Fatalf("second offer must not surface, got %+v", surplus.Info)
	default:
	}

	// Resolving the pending offer still works: the accept goes out and the
	// first file becomes the active receive.
	offer.Decision <- true
	deadline := time.After(2 * time.Second)
	for {
		frames = ch.sentFrames()
		if len(frames) == 2 && frames[1][0] == TagFileAccept {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("FILE_ACCEPT never sent, frames: %d", len(frames))
		case <-time.After(10 * time.Millisecond):
		}
	}

	c.recvMu.Lock()
	active := c.active
	c.recvMu.Unlock()
	if active == nil || active.info.ID != "first" {
		t.Fatalf("expected first file to be the active receive, got %+v", active)
	}
}
