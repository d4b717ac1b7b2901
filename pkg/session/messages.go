package session

import "time"

// Client → server message envelope. A single struct covers every
// inbound type; absent fields stay zero.
type inbound struct {
	Type        string `json:"type"`
	Ticket      string `json:"ticket,omitempty"`
	Data        string `json:"data,omitempty"`
	VADState    string `json:"vad_state,omitempty"`
	VADOffsetMS int    `json:"vad_offset_ms,omitempty"`
	ASRPrompt   string `json:"asr_prompt,omitempty"`
}

// Inbound message types.
const (
	typeAuth             = "auth"
	typeAudioStreamStart = "audio_stream_start"
	typeAudioChunk       = "audio_chunk"
	typeAudioStreamEnd   = "audio_stream_end"
)

// VAD states carried on audio_chunk.
const (
	vadStart   = "start"
	vadEnd     = "end"
	vadTrigger = "cache_asr_trigger"
	vadDrop    = "cache_asr_drop"
)

type authSuccessMsg struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

type authErrorMsg struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

type streamStartAckMsg struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"userId"`
}

type streamEndAckMsg struct {
	Type           string `json:"type"`
	ReceivedChunks int64  `json:"receivedChunks"`
	Timestamp      string `json:"timestamp"`
}

type vadCacheStartMsg struct {
	Type string `json:"type"`
}

type vadCacheEndMsg struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type transcriptionResultMsg struct {
	Type              string          `json:"type"`
	Text              string          `json:"text"`
	SpeechStartTimeMS int64           `json:"speechStartTimeMs"`
	SpeechEndTimeMS   int64           `json:"speechEndTimeMs"`
	IsPrefetch        bool            `json:"is_prefetch"`
	Timestamp         string          `json:"timestamp"`
	Performance       performanceInfo `json:"performance"`
}

type performanceInfo struct {
	TotalProcessingMS int64  `json:"total_processing_ms"`
	WAVCreationMS     int64  `json:"wav_creation_ms"`
	APIFetchMS        int64  `json:"api_fetch_ms"`
	WorkerTimestamp   string `json:"worker_timestamp"`
	Provider          string `json:"provider"`
}

type transcriptionErrorMsg struct {
	Type       string `json:"type"`
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	IsPrefetch bool   `json:"is_prefetch"`
	Timestamp  string `json:"timestamp"`
}

type debugAudioMsg struct {
	Type              string `json:"type"`
	AudioData         string `json:"audioData"`
	SpeechStartTimeMS int64  `json:"speechStartTimeMs"`
	SpeechEndTimeMS   int64  `json:"speechEndTimeMs"`
	Timestamp         string `json:"timestamp"`
}

type parseErrorMsg struct {
	Error        string `json:"error"`
	ParseError   string `json:"parseError"`
	ReceivedData string `json:"receivedData"`
	Timestamp    string `json:"timestamp"`
}

type unknownTypeMsg struct {
	Error           string `json:"error"`
	UnknownType     string `json:"unknownType"`
	ReceivedMessage string `json:"receivedMessage"`
	Timestamp       string `json:"timestamp"`
}

type protocolErrorMsg struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// isoNow formats the current instant the way browser clients expect,
// UTC with millisecond precision.
func isoNow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
