package voice

import (
	"context"
	"encoding/base64"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/remotevibe/bridge/internal/bridge"
)

// rxSilenceTimeout ends a speaking session once no packets have arrived for
// this long.
const rxSilenceTimeout = 500 * time.Millisecond

// drainTimeout is how long Stop waits for the paced sender's loop to exit
// before logging a timeout. Packets still queued when Stop is called are
// dropped, not sent.
const drainTimeout = 2 * time.Second

// Worker runs one guild's realtime voice bridge: Discord audio in, the
// realtime model in the middle, Discord audio out. One Worker per voice
// connection.
type Worker struct {
	guildID   string
	channelID string
	directory string

	conn     voiceConn
	realtime *RealtimeSession
	tools    *ToolServer
	sender   *PacedSender

	decoder *OpusDecoder
	encoder *OpusEncoder

	logger *log.Logger

	sessionCounter uint64

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWorker wires a Worker's audio codecs and tool surface. The caller is
// responsible for opening conn and realtime and passing them in.
func NewWorker(guildID, channelID, directory string, conn voiceConn, realtime *RealtimeSession, agents bridge.AgentClients, gdb *gorm.DB, logger *log.Logger) (*Worker, error) {
	decoder, err := NewOpusDecoder()
	if err != nil {
		return nil, err
	}
	encoder, err := NewOpusEncoder()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	w := &Worker{
		guildID:   guildID,
		channelID: channelID,
		directory: directory,
		conn:      conn,
		realtime:  realtime,
		tools:     NewToolServer(agents, gdb, directory, channelID),
		decoder:   decoder,
		encoder:   encoder,
		logger:    logger,
		stop:      make(chan struct{}),
	}
	w.sender = NewPacedSender(conn)
	return w, nil
}

// Run starts the RX pipeline (Discord → model), the TX pipeline (model →
// Discord), and the paced sender, and blocks until Stop is called.
func (w *Worker) Run(ctx context.Context) {
	w.wg.Add(3)
	go func() { defer w.wg.Done(); w.sender.Run() }()
	go func() { defer w.wg.Done(); w.rxLoop(ctx) }()
	go func() { defer w.wg.Done(); w.txLoop(ctx) }()
	w.wg.Wait()
}

// rxLoop decodes Discord Opus packets, downmixes and frames them, and
// streams whole frames to the realtime model. A per-SSRC silence timeout
// ends the current speaking session and sends audioStreamEnd.
func (w *Worker) rxLoop(ctx context.Context) {
	downmixed := NewFramer()
	var activeSSRC uint32
	var haveActive bool

	timer := time.NewTimer(rxSilenceTimeout)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	endSession := func() {
		if !haveActive {
			return
		}
		downmixed.Flush()
		haveActive = false
		session := atomic.LoadUint64(&w.sessionCounter)
		if err := w.realtime.SendStreamEnd(); err != nil {
			w.logger.Printf("voice: send stream end (session %d): %v", session, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-timer.C:
			endSession()
		case packet, ok := <-w.conn.OpusRecv():
			if !ok {
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(rxSilenceTimeout)

			if !haveActive || packet.SSRC != activeSSRC {
				endSession()
				activeSSRC = packet.SSRC
				haveActive = true
				atomic.AddUint64(&w.sessionCounter, 1)
			}

			pcm, err := w.decoder.Decode(packet.Opus)
			if err != nil {
				w.logger.Printf("voice: opus decode: %v", err)
				continue
			}
			mono16k := Downmix48kStereoTo16kMono(pcm)
			for _, frame := range downmixed.Push(mono16k) {
				if err := w.realtime.SendAudioFrame(frame); err != nil {
					w.logger.Printf("voice: send audio frame: %v", err)
				}
			}
		}
	}
}

// txLoop consumes model events: audio deltas are resampled, encoded, and
// queued for the paced sender; tool calls are dispatched and their
// rendered result relayed back as a system message and spoken by the model.
func (w *Worker) txLoop(ctx context.Context) {
	upsampler := NewUpsampler()
	pcmFramer := NewPCMFramer()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.realtime.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case "response.audio.delta":
				w.handleAudioDelta(ev.AudioDelta, upsampler, pcmFramer)
			case "response.audio.interrupted":
				w.sender.Interrupt()
				pcmFramer.Flush()
			case "response.function_call":
				if ev.ToolCall != nil {
					w.handleToolCall(ctx, *ev.ToolCall)
				}
			}
		}
	}
}

func (w *Worker) handleAudioDelta(b64 string, upsampler *Upsampler, framer *PCMFramer) {
	if b64 == "" {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		w.logger.Printf("voice: decode audio delta: %v", err)
		return
	}
	pcm24k := bytesToInt16LE(raw)
	stereo48k := upsampler.ResampleMonoToStereo(pcm24k)
	for _, frame := range framer.Push(stereo48k) {
		packet, err := w.encoder.Encode(frame)
		if err != nil {
			w.logger.Printf("voice: opus encode: %v", err)
			continue
		}
		w.sender.Enqueue(packet)
	}
}

func (w *Worker) handleToolCall(ctx context.Context, call ToolCall) {
	result, err := w.tools.Dispatch(ctx, call)
	if err != nil {
		w.logger.Printf("voice: tool %s failed: %v", call.Name, err)
		result = "That failed: " + err.Error()
	}
	if err := w.realtime.SendToolResult(call.ID, result); err != nil {
		w.logger.Printf("voice: send tool result: %v", err)
		return
	}
	if result != "" {
		if err := w.realtime.SendSystemMessage(result); err != nil {
			w.logger.Printf("voice: send back-channel message: %v", err)
		}
	}
}

func bytesToInt16LE(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
	}
	return out
}

// Stop halts every pipeline goroutine, stops the paced sender without
// sending its queued packets (logging if its loop has not exited within
// drainTimeout), waits for the pipeline goroutines, closes the model
// session, and disconnects the voice connection.
func (w *Worker) Stop() {
	close(w.stop)

	drained := make(chan struct{})
	go func() {
		w.sender.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		w.logger.Printf("voice: sender drain timed out for guild %s", w.guildID)
	}

	w.wg.Wait()

	if err := w.realtime.Close(); err != nil {
		w.logger.Printf("voice: close realtime session: %v", err)
	}
	if err := w.conn.Disconnect(); err != nil {
		w.logger.Printf("voice: disconnect: %v", err)
	}
}
