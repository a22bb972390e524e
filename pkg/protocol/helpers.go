package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidMessage indicates an envelope that is not valid JSON.
var ErrInvalidMessage = errors.New("protocol: invalid message")

// AudioMimeType returns the MIME type for raw PCM16 at the given rate.
func AudioMimeType(sampleRate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(sampleRate)
}

// SetupOptions configures the setup envelope.
type SetupOptions struct {
	Model             string
	Voice             string
	SystemInstruction string
	Transcription     bool
}

// NewSetupMessage builds the session setup envelope.
func NewSetupMessage(opts SetupOptions) *ClientMessage {
	setup := &Setup{
		Model: opts.Model,
		GenerationConfig: GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	if opts.Voice != "" {
		setup.GenerationConfig.SpeechConfig = &SpeechConfig{
			VoiceConfig: VoiceConfig{
				PrebuiltVoiceConfig: PrebuiltVoiceConfig{VoiceName: opts.Voice},
			},
		}
	}
	if opts.SystemInstruction != "" {
		setup.SystemInstruction = &Content{Parts: []TextPart{{Text: opts.SystemInstruction}}}
	}
	if opts.Transcription {
		setup.InputAudioTranscription = &AudioTranscribe{}
		setup.OutputAudioTranscription = &AudioTranscribe{}
	}
	return &ClientMessage{Setup: setup}
}

// NewAudioMessage builds a realtimeInput envelope for one PCM16 chunk.
func NewAudioMessage(pcm []byte, sampleRate int) *ClientMessage {
	return &ClientMessage{
		RealtimeInput: &RealtimeInput{
			Audio: &Blob{
				Data:     EncodeBase64(pcm),
				MimeType: AudioMimeType(sampleRate),
			},
		},
	}
}

// Bytes returns the JSON encoding of the envelope.
func (m *ClientMessage) Bytes() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal envelope: %w", err)
	}
	return data, nil
}

// AppendAudioMessage appends the JSON realtimeInput envelope for pcm to dst.
// It produces the same bytes as NewAudioMessage(pcm, rate).Bytes() without
// intermediate allocations, for the capture hot path.
func AppendAudioMessage(dst, pcm []byte, sampleRate int) []byte {
	dst = append(dst, `{"realtimeInput":{"audio":{"data":"`...)
	dst = AppendBase64(dst, pcm)
	dst = append(dst, `","mimeType":"audio/pcm;rate=`...)
	dst = strconv.AppendInt(dst, int64(sampleRate), 10)
	dst = append(dst, `"}}}`...)
	return dst
}

// AudioParts returns the base64 payloads of all inline data parts, in order.
func (c *ServerContent) AudioParts() []string {
	if c == nil || c.ModelTurn == nil {
		return nil
	}
	var out []string
	for _, p := range c.ModelTurn.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			out = append(out, p.InlineData.Data)
		}
	}
	return out
}
