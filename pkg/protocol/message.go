// Package protocol defines the JSON envelopes exchanged with the Gemini Live
// BidiGenerateContent endpoint.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the top-level key of an envelope.
type MessageType string

const (
	// Client → server
	TypeSetup         MessageType = "setup"
	TypeRealtimeInput MessageType = "realtimeInput"

	// Server → client
	TypeSetupComplete MessageType = "setupComplete"
	TypeServerContent MessageType = "serverContent"
	TypeError         MessageType = "error"
	TypeGoAway        MessageType = "goAway"
	TypeUsage         MessageType = "usageMetadata"
	TypeUnknown       MessageType = ""
)

// =============================================================================
// Client → Server
// =============================================================================

// ClientMessage is an outbound envelope. Exactly one field is set.
type ClientMessage struct {
	Setup         *Setup         `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
}

// Setup is the first message of a session.
type Setup struct {
	Model                    string           `json:"model"`
	GenerationConfig         GenerationConfig `json:"generationConfig"`
	SystemInstruction        *Content         `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *AudioTranscribe `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *AudioTranscribe `json:"outputAudioTranscription,omitempty"`
}

// GenerationConfig selects the response modality and voice.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig selects the synthesized voice.
type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

// VoiceConfig wraps a prebuilt voice selection.
type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

// PrebuiltVoiceConfig names one of the service's stock voices.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// AudioTranscribe enables transcription. It has no fields on the wire.
type AudioTranscribe struct{}

// Content is a list of parts, used for the system instruction.
type Content struct {
	Parts []TextPart `json:"parts"`
}

// TextPart is a text-only content part.
type TextPart struct {
	Text string `json:"text"`
}

// RealtimeInput streams media to the model.
type RealtimeInput struct {
	Audio *Blob `json:"audio,omitempty"`
}

// Blob is base64 media with its MIME type.
type Blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// =============================================================================
// Server → Client
// =============================================================================

// ServerMessage is an inbound envelope. Only the fields present on the wire
// are non-nil.
type ServerMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	Error         *ServerError   `json:"error,omitempty"`
	GoAway        *GoAway        `json:"goAway,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Type reports which envelope tag is present, in precedence order.
func (m *ServerMessage) Type() MessageType {
	switch {
	case m.SetupComplete != nil:
		return TypeSetupComplete
	case m.Error != nil:
		return TypeError
	case m.ServerContent != nil:
		return TypeServerContent
	case m.GoAway != nil:
		return TypeGoAway
	case m.UsageMetadata != nil:
		return TypeUsage
	default:
		return TypeUnknown
	}
}

// ServerContent carries model output for the current turn.
type ServerContent struct {
	ModelTurn           *ModelTurn     `json:"modelTurn,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
}

// ModelTurn is one chunk of the model's response.
type ModelTurn struct {
	Parts []Part `json:"parts"`
}

// Part is a response part; audio arrives as InlineData.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData is base64 media embedded in a part.
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// Transcription is a transcript fragment.
type Transcription struct {
	Text string `json:"text"`
}

// GoAway warns that the server will close the connection soon.
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// UsageMetadata reports token accounting.
type UsageMetadata struct {
	PromptTokenCount   int `json:"promptTokenCount,omitempty"`
	ResponseTokenCount int `json:"responseTokenCount,omitempty"`
	TotalTokenCount    int `json:"totalTokenCount,omitempty"`
}

// ServerError is the payload of an upstream error envelope.
type ServerError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("protocol: server error %d (%s): %s", e.Code, e.Status, e.Message)
	}
	if e.Code != 0 {
		return fmt.Sprintf("protocol: server error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("protocol: server error: %s", e.Message)
}

// UnmarshalJSON accepts both an error object and a bare string.
func (e *ServerError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Message = s
		return nil
	}
	type plain ServerError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ServerError(p)
	return nil
}

// ParseServerMessage decodes an inbound envelope.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return &msg, nil
}
