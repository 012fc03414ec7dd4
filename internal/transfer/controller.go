package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beamline/beamline/internal/cryptochan"
	"github.com/beamline/beamline/internal/files"
	"github.com/google/uuid"
)

// Controller is the per-session file transfer engine: it owns the
// key-exchange handshake, the outbound queue, and the inbound
// reassembly table for one open data channel. One Controller per
// session; not reusable once the channel closes.
type Controller struct {
	channel     Channel
	isInitiator bool

	engineMu sync.RWMutex
	engine   *cryptochan.Engine

	keyReady     atomic.Bool
	keyReadyCh   chan struct{}
	keyReadyOnce sync.Once

	writeMu sync.Mutex

	lowSignal    chan struct{}
	closedSignal chan struct{}
	closedOnce   sync.Once

	sendMu     sync.Mutex
	sending    atomic.Bool
	acceptWait chan bool

	recvMu       sync.Mutex
	pendingOffer *Offer
	active       *reassembly

	// Offers is where incoming FILE_INFO requests surface for the
	// application layer to accept or reject via Offer.Decision.
	Offers chan *Offer
	// Received delivers a fully reassembled inbound file.
	Received chan *ReceivedFile
	// QueueUpdates delivers informational QUEUE_INFO notices.
	QueueUpdates chan QueueInfo
	// Progress delivers throughput samples for both directions.
	Progress chan Progress
	// Complete fires once after the last file of an outbound batch
	// finishes.
	Complete chan struct{}
	// SendErrors surfaces batch-aborting outbound failures (receiver
	// declined, channel closed, local read error). When one arrives, the
	// remainder of the queue has already been discarded.
	SendErrors chan error
	// Errors surfaces inbound and session-level failures; callers
	// distinguish fatality by the wrapped sentinel.
	Errors chan error
}

type reassembly struct {
	info          FileInfo
	chunks        [][]byte
	bytesReceived int64
	startTime     time.Time
	lastSample    time.Time
	lastBytes     int64
}

func newReassembly(info FileInfo) *reassembly {
	now := time.Now()
	return &reassembly{
		info:       info,
		chunks:     make([][]byte, info.TotalChunks),
		startTime:  now,
		lastSample: now,
	}
}

type queuedFile struct {
	info  FileInfo
	local files.LocalFile
}

// NewController creates a Controller bound to an already-open channel.
// Call Start before sending or receiving anything.
func NewController(channel Channel, isInitiator bool) *Controller {
	return &Controller{
		channel:      channel,
		isInitiator:  isInitiator,
		keyReadyCh:   make(chan struct{}),
		lowSignal:    make(chan struct{}, 1),
		closedSignal: make(chan struct{}),
		Offers:       make(chan *Offer, 1),
		Received:     make(chan *ReceivedFile, 4),
		QueueUpdates: make(chan QueueInfo, 4),
		Progress:     make(chan Progress, 32),
		Complete:     make(chan struct{}, 1),
		SendErrors:   make(chan error, 1),
		Errors:       make(chan error, 32),
	}
}

// Start wires the channel's callbacks and, if this side is the
// initiator, generates and sends the session's AES-256-GCM key.
func (c *Controller) Start() error {
	c.channel.SetBufferedAmountLowThreshold(BufferLow)
	c.channel.OnBufferedAmountLow(func() {
		select {
		case c.lowSignal <- struct{}{}:
		default:
		}
	})
	c.channel.OnMessage(c.handleMessage)
	c.channel.OnClose(func() {
		c.closedOnce.Do(func() { close(c.closedSignal) })
		c.reportError(ErrPeerDisconnected)
	})

	if c.isInitiator {
		engine, key, err := cryptochan.NewEngine(cryptochan.RoleInitiator)
		if err != nil {
			return fmt.Errorf("transfer: generate session key: %w", err)
		}
		c.setEngine(engine)
		c.markKeyReady()
		if err := c.sendFrame(TagEncryptionKey, key); err != nil {
			return fmt.Errorf("transfer: send session key: %w", err)
		}
	}
	return nil
}

func (c *Controller) setEngine(e *cryptochan.Engine) {
	c.engineMu.Lock()
	c.engine = e
	c.engineMu.Unlock()
}

func (c *Controller) getEngine() *cryptochan.Engine {
	c.engineMu.RLock()
	defer c.engineMu.RUnlock()
	return c.engine
}

func (c *Controller) markKeyReady() {
	c.keyReady.Store(true)
	c.keyReadyOnce.Do(func() { close(c.keyReadyCh) })
}

func (c *Controller) reportError(err error) {
	select {
	case c.Errors <- err:
	default:
	}
}

func (c *Controller) reportSendError(err error) {
	select {
	case c.SendErrors <- err:
	default:
	}
}

func (c *Controller) sendFrame(tag byte, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.channel.Send(EncodeFrame(tag, payload))
}

// --- inbound dispatch ---

func (c *Controller) handleMessage(data []byte) {
	tag, payload, err := DecodeFrame(data)
	if err != nil {
		c.reportError(NewError("decode frame", err))
		return
	}

	switch tag {
	case TagEncryptionKey:
		c.handleEncryptionKey(payload)
	case TagQueueInfo:
		c.handleQueueInfo(payload)
	case TagFileInfo:
		c.handleFileInfo(payload)
	case TagFileAccept:
		c.handleAcceptReject(true)
	case TagFileReject:
		c.handleAcceptReject(false)
	case TagFileChunk:
		c.handleChunk(payload)
	case TagFileComplete:
		c.handleComplete()
	case TagProgress:
		// reserved, never emitted by either side
	default:
		c.reportError(NewError("handle message", ErrUnknownTag))
	}
}

func (c *Controller) handleEncryptionKey(payload []byte) {
	if c.keyReady.Load() {
		return // subsequent key messages are ignored
	}
	engine, err := cryptochan.ImportEngine(payload, cryptochan.RoleJoiner)
	if err != nil {
		c.reportError(NewError("import encryption key", ErrKeyImport))
		return
	}
	c.setEngine(engine)
	c.markKeyReady()
}

func (c *Controller) handleQueueInfo(payload []byte) {
	var info QueueInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		c.reportError(NewError("decode queue info", err))
		return
	}
	select {
	case c.QueueUpdates <- info:
	default:
	}
}

func (c *Controller) handleFileInfo(payload []byte) {
	c.recvMu.Lock()
	busy := c.pendingOffer != nil
	c.recvMu.Unlock()
	if busy {
		c.sendFrame(TagFileReject, nil)
		return
	}

	var info FileInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		c.reportError(NewError("decode file info", err))
		return
	}

	offer := &Offer{Info: info, Decision: make(chan bool, 1)}
	c.recvMu.Lock()
	c.pendingOffer = offer
	c.recvMu.Unlock()

	go func() {
		c.Offers <- offer
		accept := <-offer.Decision

		c.recvMu.Lock()
		if accept {
			c.active = newReassembly(info)
		}
		c.pendingOffer = nil
		c.recvMu.Unlock()

		if accept {
			c.sendFrame(TagFileAccept, nil)
		} else {
			c.sendFrame(TagFileReject, nil)
		}
	}()
}

func (c *Controller) handleAcceptReject(accepted bool) {
	c.sendMu.Lock()
	wait := c.acceptWait
	c.acceptWait = nil
	c.sendMu.Unlock()

	if wait != nil {
		select {
		case wait <- accepted:
		default:
		}
	}
}

func (c *Controller) handleChunk(payload []byte) {
	frame, err := DecodeChunk(payload)
	if err != nil {
		c.reportError(NewError("decode chunk", err))
		return
	}

	c.recvMu.Lock()
	active := c.active
	c.recvMu.Unlock()

	if active == nil || active.info.ID != frame.FileID {
		slog.Warn("transfer: chunk for unknown or inactive file, dropping", "fileId", frame.FileID)
		return
	}
	if int(frame.ChunkIndex) >= len(active.chunks) {
		c.reportError(WrapError("receive chunk", ErrChunkOutOfRange, active.info.Name))
		return
	}

	engine := c.getEngine()
	plaintext, err := engine.Decrypt(frame.IV, frame.Ciphertext)
	if err != nil {
		// Permissive default per protocol: log and surface, do not tear
		// down the session or the in-progress reassembly.
		c.reportError(NewFileError("decrypt chunk", active.info.Name, err))
		return
	}

	c.recvMu.Lock()
	active.chunks[frame.ChunkIndex] = plaintext
	active.bytesReceived += int64(len(plaintext))
	bytesDone := active.bytesReceived
	shouldSample := time.Since(active.lastSample) >= 100*time.Millisecond
	var sampleBytes int64
	var sampleElapsed time.Duration
	if shouldSample {
		sampleBytes = bytesDone - active.lastBytes
		sampleElapsed = time.Since(active.lastSample)
		active.lastSample = time.Now()
		active.lastBytes = bytesDone
	}
	c.recvMu.Unlock()

	if shouldSample {
		c.emitProgress(active.info.ID, bytesDone, active.info.Size, sampleBytes, sampleElapsed)
	}
}

func (c *Controller) handleComplete() {
	c.recvMu.Lock()
	active := c.active
	c.active = nil
	c.recvMu.Unlock()

	if active == nil {
		return
	}

	data := make([]byte, 0, active.info.Size)
	for _, chunk := range active.chunks {
		data = append(data, chunk...)
	}

	select {
	case c.Received <- &ReceivedFile{Info: active.info, Data: data}:
	default:
		slog.Warn("transfer: Received channel full, dropping delivered file", "fileId", active.info.ID)
	}
}

func (c *Controller) emitProgress(fileID string, bytesDone, total, sampleBytes int64, elapsed time.Duration) {
	var speed, eta float64
	if elapsed > 0 {
		speed = float64(sampleBytes) / elapsed.Seconds()
	}
	if speed > 0 {
		eta = float64(total-bytesDone) / speed
	}
	select {
	case c.Progress <- Progress{FileID: fileID, BytesDone: bytesDone, TotalBytes: total, BytesPerSec: speed, ETA: eta}:
	default:
	}
}

// --- outbound path ---

// Send queues an ordered batch of local files and streams them serially.
// Returns an error only if the batch is empty or a send is already in
// progress; per-file failures surface on SendErrors and Complete is never
// sent for that batch.
func (c *Controller) Send(batch []files.LocalFile) error {
	if len(batch) == 0 {
		return fmt.Errorf("transfer: empty batch")
	}
	if !c.sending.CompareAndSwap(false, true) {
		return fmt.Errorf("transfer: send already in progress")
	}

	queue := make([]queuedFile, len(batch))
	for i, f := range batch {
		totalChunks := 0
		if f.Size > 0 {
			totalChunks = int((f.Size + ChunkSize - 1) / ChunkSize)
		}
		queue[i] = queuedFile{
			info: FileInfo{
				ID:          uuid.NewString(),
				Name:        f.Name,
				Size:        f.Size,
				Type:        f.Type,
				TotalChunks: totalChunks,
				Path:        f.RelPath,
			},
			local: f,
		}
	}

	go c.runSend(queue)
	return nil
}

func (c *Controller) runSend(queue []queuedFile) {
	defer c.sending.Store(false)

	select {
	case <-c.keyReadyCh:
	case <-c.closedSignal:
		c.reportSendError(ErrChannelClosed)
		return
	}

	payload, _ := json.Marshal(QueueInfo{TotalFiles: len(queue), CurrentIndex: 0})
	if err := c.sendFrame(TagQueueInfo, payload); err != nil {
		c.reportSendError(NewError("send queue info", err))
		return
	}

	for _, qf := range queue {
		if err := c.sendOneFile(qf); err != nil {
			c.reportSendError(err)
			return // discard the remainder of the queue
		}
	}

	select {
	case c.Complete <- struct{}{}:
	default:
	}
}

func (c *Controller) sendOneFile(qf queuedFile) error {
	payload, err := json.Marshal(qf.info)
	if err != nil {
		return NewFileError("send", qf.info.Name, err)
	}
	if err := c.sendFrame(TagFileInfo, payload); err != nil {
		return NewFileError("send", qf.info.Name, err)
	}

	decision := make(chan bool, 1)
	c.sendMu.Lock()
	c.acceptWait = decision
	c.sendMu.Unlock()

	var accepted bool
	select {
	case accepted = <-decision:
	case <-c.closedSignal:
		return NewFileError("send", qf.info.Name, ErrChannelClosed)
	}
	if !accepted {
		return &TransferError{Op: "send", File: qf.info.Name, Err: ErrTransferDeclined}
	}

	if qf.info.TotalChunks > 0 {
		if err := c.streamChunks(qf); err != nil {
			return err
		}
	}

	if err := c.sendFrame(TagFileComplete, nil); err != nil {
		return NewFileError("send", qf.info.Name, err)
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (c *Controller) streamChunks(qf queuedFile) error {
	f, err := os.Open(qf.local.AbsPath)
	if err != nil {
		return NewFileError("send", qf.info.Name, err)
	}
	defer f.Close()

	engine := c.getEngine()
	buf := make([]byte, ChunkSize)
	lastSample := time.Now()
	var lastBytes int64

	for idx := 0; idx < qf.info.TotalChunks; idx++ {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return NewFileError("send", qf.info.Name, err)
		}

		if err := c.waitForWindow(); err != nil {
			return NewFileError("send", qf.info.Name, err)
		}

		iv, ciphertext := engine.Encrypt(buf[:n])
		frame := EncodeChunk(ChunkFrame{
			ChunkIndex: uint32(idx),
			FileID:     qf.info.ID,
			IV:         iv,
			Ciphertext: ciphertext,
		})
		if err := c.sendFrame(TagFileChunk, frame); err != nil {
			return NewFileError("send", qf.info.Name, err)
		}

		sent := int64(idx+1) * ChunkSize
		if sent > qf.info.Size {
			sent = qf.info.Size
		}
		if elapsed := time.Since(lastSample); elapsed >= 100*time.Millisecond {
			speed := float64(sent-lastBytes) / elapsed.Seconds()
			var eta float64
			if speed > 0 {
				eta = float64(qf.info.Size-sent) / speed
			}
			select {
			case c.Progress <- Progress{FileID: qf.info.ID, BytesDone: sent, TotalBytes: qf.info.Size, BytesPerSec: speed, ETA: eta}:
			default:
			}
			lastSample = time.Now()
			lastBytes = sent
		}

		runtime.Gosched() // yield between chunk sends, as the protocol requires
	}
	return nil
}

// waitForWindow pauses while the channel's buffered-byte count exceeds
// BufferFull, resuming on the low-water-mark event. This is the
// protocol's sole backpressure mechanism; it never spin-waits.
func (c *Controller) waitForWindow() error {
	for c.channel.BufferedAmount() > BufferFull {
		select {
		case <-c.lowSignal:
		case <-c.closedSignal:
			return ErrChannelClosed
		}
	}
	return nil
}
