// Package session implements the per-connection audio session.
//
// A session begins in an authentication phase: the first message must
// present a one-use ticket within the deadline, or the connection is
// closed with policy code 1008. After authentication the session
// consumes audio_chunk frames, segments the stream by client VAD
// boundaries into utterances, dispatches finished utterances to speech
// recognition, and feeds every frame to the archiver.
//
// Inbound messages are processed strictly in receive order by the
// session's read loop. Transcription and archival run on their own
// goroutines and never block frame handling; outbound writes from all
// producers are serialized by a mutex.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/earshot/earshot/pkg/asr"
	"github.com/earshot/earshot/pkg/audio/pcm"
	"github.com/earshot/earshot/pkg/audio/wav"
	"github.com/earshot/earshot/pkg/buffer"
	"github.com/earshot/earshot/pkg/ticket"
)

const (
	// frameMillis is the contractual cadence of one audio_chunk. The
	// stream clock advances by this amount per chunk regardless of the
	// payload size.
	frameMillis = 128

	// prerollCapacity is the look-behind window, 256ms of L16Mono16K.
	prerollCapacity = 8192

	// DefaultAuthTimeout is the deadline for the first valid auth
	// message.
	DefaultAuthTimeout = 5 * time.Second

	writeTimeout = 10 * time.Second
)

// TicketConsumer validates and consumes one-use tickets.
type TicketConsumer interface {
	Consume(ctx context.Context, id string) (string, error)
}

// Archiver receives the raw frame stream for background persistence.
// Implementations must not block the caller.
type Archiver interface {
	Process(payload []byte)
	ArchiveUtterance(segments [][]byte)
	Shutdown()
}

// Config carries the session collaborators.
type Config struct {
	// Tickets validates the ticket presented in the auth message.
	Tickets TicketConsumer

	// Transcriber handles utterance transcription. If nil, utterances
	// produce a transcription_error frame.
	Transcriber asr.Transcriber

	// NewArchiver constructs the per-session archiver after a
	// successful auth. May be nil to disable archival.
	NewArchiver func(sessionID string) Archiver

	// AuthTimeout overrides DefaultAuthTimeout. For tests.
	AuthTimeout time.Duration

	// DebugMode emits debug_audio frames before each ASR call.
	DebugMode bool

	Logger *slog.Logger
}

// Session is one WebSocket connection's state machine.
type Session struct {
	id   string
	conn *websocket.Conn
	cfg  Config
	log  *slog.Logger

	writeMu sync.Mutex

	// Session state. Owned by the read loop; never touched by the
	// background goroutines.
	authenticated bool
	subject       string
	connectedAt   time.Time
	frameCount    int64
	globalTimeMS  int64
	caching       bool
	cache         [][]byte
	preroll       *buffer.Ring
	speechStartMS int64
	dropPrefetch  bool

	deadline *time.Timer
	archiver Archiver
}

// New creates a session for an upgraded connection. Run must be called
// to start processing.
func New(id string, conn *websocket.Conn, cfg Config) *Session {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		id:          id,
		conn:        conn,
		cfg:         cfg,
		log:         log.With("session_id", id),
		connectedAt: time.Now(),
		preroll:     buffer.NewRing(prerollCapacity),
	}
}

// Run processes inbound messages until the connection closes. It owns
// the read side of the connection and must be called exactly once.
func (s *Session) Run() {
	s.log.Info("session opened", "remote", s.conn.RemoteAddr())
	s.deadline = time.AfterFunc(s.cfg.AuthTimeout, s.onAuthDeadline)
	defer s.shutdown()

	for {
		mt, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			s.send(protocolErrorMsg{
				Error:     "Binary frames are not supported",
				Timestamp: isoNow(),
			})
			continue
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.send(parseErrorMsg{
				Error:        "Failed to parse message as JSON",
				ParseError:   err.Error(),
				ReceivedData: truncate(string(raw), 100),
				Timestamp:    isoNow(),
			})
			continue
		}

		if !s.authenticated {
			if !s.handleAuth(msg) {
				return
			}
			continue
		}

		switch msg.Type {
		case typeAudioStreamStart:
			s.handleStreamStart()
		case typeAudioChunk:
			s.handleChunk(msg)
		case typeAudioStreamEnd:
			s.send(streamEndAckMsg{
				Type:           "audio_stream_end_ack",
				ReceivedChunks: s.frameCount,
				Timestamp:      isoNow(),
			})
		default:
			s.send(unknownTypeMsg{
				Error:           "Unknown message type received",
				UnknownType:     msg.Type,
				ReceivedMessage: truncate(string(raw), 200),
				Timestamp:       isoNow(),
			})
		}
	}
}

// handleAuth processes the single message allowed before
// authentication. It returns false when the connection must close.
func (s *Session) handleAuth(msg inbound) bool {
	if msg.Type != typeAuth {
		s.authFail("Must authenticate first with auth message", "Authentication required")
		return false
	}
	if msg.Ticket == "" {
		s.authFail("Missing ticket in authentication message", "Invalid authentication")
		return false
	}

	subject, err := s.cfg.Tickets.Consume(context.Background(), msg.Ticket)
	if err != nil {
		s.log.Warn("ticket rejected", "ticket", ticket.Redact(msg.Ticket), "error", err)
		s.authFail("Invalid or expired ticket", "Authentication failed")
		return false
	}

	s.deadline.Stop()
	s.subject = subject
	s.authenticated = true
	if s.cfg.NewArchiver != nil {
		s.archiver = s.cfg.NewArchiver(s.id)
	}
	s.log.Info("session authenticated", "subject", subject, "ticket", ticket.Redact(msg.Ticket))
	s.send(authSuccessMsg{
		Type:      "auth_success",
		UserID:    subject,
		Timestamp: isoNow(),
	})
	return true
}

// authFail sends a best-effort auth_error frame and closes with policy
// code 1008. Delivery of the frame before the close is not guaranteed.
func (s *Session) authFail(errMsg, closeReason string) {
	s.send(authErrorMsg{
		Type:      "auth_error",
		Error:     errMsg,
		Timestamp: isoNow(),
	})
	s.closeWith(websocket.ClosePolicyViolation, closeReason)
}

func (s *Session) onAuthDeadline() {
	s.log.Info("authentication deadline expired")
	s.authFail("Authentication timeout - connection closed", "Authentication timeout")
}

// handleStreamStart resets the stream clock and all utterance state.
func (s *Session) handleStreamStart() {
	s.frameCount = 0
	s.globalTimeMS = 0
	s.caching = false
	s.cache = nil
	s.preroll.Reset()
	s.speechStartMS = 0
	s.dropPrefetch = false
	s.send(streamStartAckMsg{
		Type:      "audio_stream_start_ack",
		Timestamp: isoNow(),
		UserID:    s.subject,
	})
}

// handleChunk processes one audio_chunk frame. Speech timestamps are
// computed from the stream clock as of the start of this frame; the
// clock itself advances by exactly frameMillis at the end, regardless
// of payload size.
func (s *Session) handleChunk(msg inbound) {
	base := s.globalTimeMS
	s.frameCount++

	var p []byte
	if msg.Data != "" {
		var err error
		p, err = base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			s.log.Warn("undecodable audio payload", "error", err)
			p = nil
		}
	}
	offset := int64(msg.VADOffsetMS)

	switch msg.VADState {
	case vadStart:
		s.caching = true
		s.cache = nil
		s.dropPrefetch = false
		s.speechStartMS = base + offset
		if offset < 0 {
			// Recover look-behind audio from the preroll window. If
			// the request exceeds what is buffered, take everything.
			need := pcm.L16Mono16K.BytesInMillis(-offset)
			if pre := s.preroll.Tail(int(need)); len(pre) > 0 {
				s.cache = append(s.cache, pre)
			}
		}
		s.send(vadCacheStartMsg{Type: "vad_cache_start"})

	case vadTrigger:
		if s.caching {
			speechEnd := base + offset
			// Prefetch covers the cache up to the trigger point: all
			// previous segments plus the current payload clamped at
			// the offset.
			segments := make([][]byte, len(s.cache), len(s.cache)+1)
			copy(segments, s.cache)
			if len(p) > 0 {
				segments = append(segments, clampPrefix(p, offset))
			}
			if s.dropPrefetch {
				s.dropPrefetch = false
				s.log.Debug("prefetch suppressed after drop", "speech_end_ms", speechEnd)
			} else {
				s.submitASR(segments, s.speechStartMS, speechEnd, true, msg.ASRPrompt)
			}
		}

	case vadDrop:
		if s.caching {
			s.dropPrefetch = true
		}

	case vadEnd:
		if s.caching {
			speechEnd := base + offset
			if len(p) > 0 {
				s.cache = append(s.cache, clampPrefix(p, offset))
			}
			s.caching = false
			segments := s.cache
			s.cache = nil
			s.dropPrefetch = false
			s.send(vadCacheEndMsg{Type: "vad_cache_end", Timestamp: isoNow()})
			s.submitASR(segments, s.speechStartMS, speechEnd, false, msg.ASRPrompt)
		}
	}

	// The utterance cache accumulates every in-speech payload; an end
	// frame contributed only its clamped prefix above.
	if s.caching && len(p) > 0 && msg.VADState != vadEnd {
		s.cache = append(s.cache, p)
	}
	if len(p) > 0 {
		s.preroll.Append(p)
	}
	if s.archiver != nil {
		s.archiver.Process(p)
	}

	s.globalTimeMS = base + frameMillis
}

// clampPrefix returns the prefix of p covering offset milliseconds of
// audio, the whole payload when the offset is unset, non-positive, or
// larger than the payload.
func clampPrefix(p []byte, offset int64) []byte {
	if offset <= 0 {
		return p
	}
	n := pcm.L16Mono16K.BytesInMillis(offset)
	if n >= int64(len(p)) {
		return p
	}
	return p[:n]
}

// submitASR dispatches one utterance to the transcription provider on
// its own goroutine. The segments slice must not be mutated afterwards.
// Replies are written back best-effort; if the socket is gone by then
// they are dropped.
func (s *Session) submitASR(segments [][]byte, startMS, endMS int64, prefetch bool, prompt string) {
	var total int
	for _, seg := range segments {
		total += len(seg)
	}
	if total == 0 {
		return
	}

	go func() {
		workerStart := time.Now()

		wavStart := time.Now()
		data := wav.Encode(pcm.L16Mono16K, segments)
		wavElapsed := time.Since(wavStart)

		if s.cfg.DebugMode {
			s.send(debugAudioMsg{
				Type:              "debug_audio",
				AudioData:         base64.StdEncoding.EncodeToString(data),
				SpeechStartTimeMS: startMS,
				SpeechEndTimeMS:   endMS,
				Timestamp:         isoNow(),
			})
		}

		if s.cfg.Transcriber == nil {
			s.send(transcriptionErrorMsg{
				Type:       "transcription_error",
				Error:      "No transcription provider configured",
				IsPrefetch: prefetch,
				Timestamp:  isoNow(),
			})
			return
		}

		// No cancellation on disconnect: in-flight requests run to
		// completion and their replies are dropped with the socket.
		res, err := s.cfg.Transcriber.Transcribe(context.Background(), data, prompt)
		if err != nil {
			s.log.Warn("transcription failed",
				"provider", s.cfg.Transcriber.Provider(),
				"prefetch", prefetch,
				"error", err)
			s.send(transcriptionErrorMsg{
				Type:       "transcription_error",
				Error:      "Transcription failed",
				Details:    err.Error(),
				IsPrefetch: prefetch,
				Timestamp:  isoNow(),
			})
			return
		}

		s.send(transcriptionResultMsg{
			Type:              "transcription_result",
			Text:              res.Text,
			SpeechStartTimeMS: startMS,
			SpeechEndTimeMS:   endMS,
			IsPrefetch:        prefetch,
			Timestamp:         isoNow(),
			Performance: performanceInfo{
				TotalProcessingMS: time.Since(workerStart).Milliseconds(),
				WAVCreationMS:     wavElapsed.Milliseconds(),
				APIFetchMS:        res.APIFetch.Milliseconds(),
				WorkerTimestamp:   workerStart.UTC().Format("2006-01-02T15:04:05.000Z"),
				Provider:          res.Provider,
			},
		})
	}()

	if s.archiver != nil && !prefetch {
		s.archiver.ArchiveUtterance(segments)
	}
}

// send writes one JSON text frame. Writes from the read loop, the ASR
// goroutines and the deadline timer all funnel through here.
func (s *Session) send(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		s.log.Debug("write failed", "error", err)
	}
}

// closeWith sends a close frame with the given code and reason, then
// closes the connection.
func (s *Session) closeWith(code int, reason string) {
	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	s.writeMu.Unlock()
	s.conn.Close()
}

// shutdown releases session resources after the read loop exits.
func (s *Session) shutdown() {
	s.deadline.Stop()
	if s.archiver != nil {
		s.archiver.Shutdown()
	}
	s.conn.Close()
	s.log.Info("session closed",
		"subject", s.subject,
		"frames", s.frameCount,
		"duration", time.Since(s.connectedAt).Round(time.Millisecond))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
