// Package archive persists a session's raw audio stream to object storage.
//
// Each authenticated session owns one Archiver. Frames are accumulated in
// a time-bounded sliding window; a periodic upload snapshots the window
// into a WAV object without clearing it, so adjacent chunks overlap by
// design and a crash loses at most one upload interval of audio. Archival
// is strictly best-effort: upload failures are counted and logged, never
// surfaced to the transcription path.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/earshot/earshot/pkg/audio/pcm"
	"github.com/earshot/earshot/pkg/audio/wav"
	"github.com/earshot/earshot/pkg/jsontime"
	"github.com/earshot/earshot/pkg/storage"
)

// KeyPrefix is the object-store namespace for archived audio.
const KeyPrefix = "audio-sessions/"

// cleanupInterval is how often the window is swept for expired entries
// independently of incoming frames.
const cleanupInterval = 30 * time.Second

// finalUploadTimeout bounds the synchronous flush performed by Shutdown.
const finalUploadTimeout = 15 * time.Second

// Config enumerates the archiver knobs. The zero value is completed by
// defaults: a 2-minute window uploaded every minute, capped at 10 MB.
type Config struct {
	// WindowSize is the time span of audio retained in memory.
	WindowSize time.Duration

	// UploadInterval is the cadence of scheduled uploads.
	UploadInterval time.Duration

	// MaxMemoryMB triggers an emergency upload when the window
	// outgrows it.
	MaxMemoryMB float64

	// StoreOriginalAudio archives the full raw stream.
	StoreOriginalAudio *bool

	// StoreVadSegments additionally archives each finished utterance
	// as its own object.
	StoreVadSegments bool
}

func (c Config) withDefaults() Config {
	if c.WindowSize <= 0 {
		c.WindowSize = 120 * time.Second
	}
	if c.UploadInterval <= 0 {
		c.UploadInterval = 60 * time.Second
	}
	if c.MaxMemoryMB <= 0 {
		c.MaxMemoryMB = 10
	}
	if c.StoreOriginalAudio == nil {
		t := true
		c.StoreOriginalAudio = &t
	}
	return c
}

// Stats is a snapshot of archiver counters.
type Stats struct {
	TotalChunks      int64          `json:"totalChunks"`
	UploadsCompleted int64          `json:"uploadsCompleted"`
	UploadsFailed    int64          `json:"uploadsFailed"`
	MemoryUsageMB    float64        `json:"memoryUsageMB"`
	LastUploadAt     jsontime.Milli `json:"lastUploadAt"`
}

type entry struct {
	ts      time.Time
	payload []byte
}

// Archiver accumulates one session's PCM frames and uploads rolling
// chunks to object storage.
type Archiver struct {
	sessionID string
	store     storage.ObjectStore
	cfg       Config
	log       *slog.Logger

	mu          sync.Mutex
	window      []entry
	windowBytes int64
	stats       Stats
	uploading   bool
	active      bool
	vadSeq      int64

	done chan struct{}
	wg   sync.WaitGroup

	// now is the clock; tests may replace it before frames arrive.
	now func() time.Time
}

// New creates an Archiver for the given session and starts its upload
// and cleanup schedulers.
func New(sessionID string, store storage.ObjectStore, cfg Config, log *slog.Logger) *Archiver {
	if log == nil {
		log = slog.Default()
	}
	a := &Archiver{
		sessionID: sessionID,
		store:     store,
		cfg:       cfg.withDefaults(),
		log:       log.With("component", "archiver", "session_id", sessionID),
		active:    true,
		done:      make(chan struct{}),
		now:       time.Now,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// SetClock replaces the clock used for window arithmetic. For tests.
func (a *Archiver) SetClock(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

func (a *Archiver) run() {
	defer a.wg.Done()
	upload := time.NewTicker(a.cfg.UploadInterval)
	cleanup := time.NewTicker(cleanupInterval)
	defer upload.Stop()
	defer cleanup.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-upload.C:
			a.upload(context.Background(), false)
		case <-cleanup.C:
			a.mu.Lock()
			a.evictLocked(a.now())
			a.mu.Unlock()
		}
	}
}

// Process appends one frame's payload to the sliding window. It is
// called by the session worker for every audio frame, independent of
// VAD state, and never blocks on storage.
func (a *Archiver) Process(payload []byte) {
	if len(payload) == 0 {
		return
	}
	a.mu.Lock()
	if !a.active || !*a.cfg.StoreOriginalAudio {
		a.mu.Unlock()
		return
	}
	now := a.now()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	a.window = append(a.window, entry{ts: now, payload: cp})
	a.windowBytes += int64(len(cp))
	a.stats.TotalChunks++
	a.evictLocked(now)
	over := a.stats.MemoryUsageMB > a.cfg.MaxMemoryMB
	a.mu.Unlock()

	if over {
		go a.upload(context.Background(), true)
	}
}

// ArchiveUtterance uploads a finished utterance as its own WAV object.
// No-op unless StoreVadSegments is enabled.
func (a *Archiver) ArchiveUtterance(segments [][]byte) {
	a.mu.Lock()
	if !a.active || !a.cfg.StoreVadSegments {
		a.mu.Unlock()
		return
	}
	a.vadSeq++
	seq := a.vadSeq
	now := a.now()
	a.mu.Unlock()

	data := wav.Encode(pcm.L16Mono16K, segments)
	key := fmt.Sprintf("%ssession_%s_vad_%d.wav", KeyPrefix, a.sessionID, seq)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), finalUploadTimeout)
		defer cancel()
		err := a.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
			ContentType: "audio/wav",
			Metadata: map[string]string{
				"sessionId":  a.sessionID,
				"audioType":  "vad",
				"uploadedAt": now.UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			a.log.Warn("vad segment upload failed", "key", key, "error", err)
		}
	}()
}

// Stats returns a snapshot of the archiver counters.
func (a *Archiver) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Shutdown stops the schedulers and performs one final synchronous
// upload of whatever remains in the window.
func (a *Archiver) Shutdown() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	a.active = false
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), finalUploadTimeout)
	defer cancel()
	a.uploadSnapshot(ctx, false)

	a.mu.Lock()
	a.window = nil
	a.windowBytes = 0
	a.stats.MemoryUsageMB = 0
	a.mu.Unlock()
}

// evictLocked drops entries older than the window span and recomputes
// the memory estimate. Caller holds a.mu.
func (a *Archiver) evictLocked(now time.Time) {
	cutoff := now.Add(-a.cfg.WindowSize)
	i := 0
	for i < len(a.window) && !a.window[i].ts.After(cutoff) {
		a.windowBytes -= int64(len(a.window[i].payload))
		i++
	}
	if i > 0 {
		a.window = append(a.window[:0:0], a.window[i:]...)
	}
	a.stats.MemoryUsageMB = float64(a.windowBytes) / (1024 * 1024)
}

// upload is the scheduler entry point; it enforces the single-uploader
// guard and delegates to uploadSnapshot.
func (a *Archiver) upload(ctx context.Context, emergency bool) {
	a.mu.Lock()
	if a.uploading || !a.active || len(a.window) == 0 {
		a.mu.Unlock()
		return
	}
	a.uploading = true
	a.mu.Unlock()

	a.uploadSnapshot(ctx, emergency)

	a.mu.Lock()
	a.uploading = false
	a.mu.Unlock()
}

// uploadSnapshot assembles the current window into a WAV object and
// PUTs it. The live window is not cleared on success; time-based
// eviction shrinks it naturally. An emergency upload additionally
// halves the window afterwards to shed memory.
func (a *Archiver) uploadSnapshot(ctx context.Context, emergency bool) {
	a.mu.Lock()
	if len(a.window) == 0 {
		a.mu.Unlock()
		return
	}
	snap := make([]entry, len(a.window))
	copy(snap, a.window)
	now := a.now()
	a.mu.Unlock()

	chunkIndex := now.UnixMilli() / a.cfg.UploadInterval.Milliseconds()
	key := ChunkKey(a.sessionID, chunkIndex)

	var pcmBytes int64
	segments := make([][]byte, len(snap))
	for i, e := range snap {
		segments[i] = e.payload
		pcmBytes += int64(len(e.payload))
	}
	data := wav.Encode(pcm.L16Mono16K, segments)
	duration := pcm.L16Mono16K.Duration(pcmBytes)

	err := a.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: "audio/wav",
		Metadata: map[string]string{
			"sessionId":       a.sessionID,
			"audioType":       "original",
			"chunkIndex":      strconv.FormatInt(chunkIndex, 10),
			"chunkCount":      strconv.Itoa(len(snap)),
			"startTimestamp":  snap[0].ts.UTC().Format(time.RFC3339Nano),
			"endTimestamp":    snap[len(snap)-1].ts.UTC().Format(time.RFC3339Nano),
			"durationSeconds": strconv.FormatFloat(duration.Seconds(), 'f', 3, 64),
			"uploadedAt":      now.UTC().Format(time.RFC3339),
		},
	})

	a.mu.Lock()
	if err != nil {
		a.stats.UploadsFailed++
	} else {
		a.stats.UploadsCompleted++
		a.stats.LastUploadAt = jsontime.Milli(now)
	}
	if emergency {
		// Shed the older half; keep the most recent ceil(n/2) entries.
		keep := (len(a.window) + 1) / 2
		drop := a.window[:len(a.window)-keep]
		for _, e := range drop {
			a.windowBytes -= int64(len(e.payload))
		}
		a.window = append(a.window[:0:0], a.window[len(a.window)-keep:]...)
		a.stats.MemoryUsageMB = float64(a.windowBytes) / (1024 * 1024)
	}
	a.mu.Unlock()

	if err != nil {
		a.log.Warn("chunk upload failed", "key", key, "error", err)
	} else {
		a.log.Debug("chunk uploaded", "key", key, "bytes", len(data), "duration", duration)
	}
}

// ChunkKey returns the object key for a session's rolling chunk.
func ChunkKey(sessionID string, chunkIndex int64) string {
	return fmt.Sprintf("%ssession_%s_original_%d.wav", KeyPrefix, sessionID, chunkIndex)
}
