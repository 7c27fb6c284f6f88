package realtime

import (
	"github.com/bt-bridge/voicerag/shared"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/realtime"
)

const audioFormatPCM = "audio/pcm"

// NewSessionConfig builds the session sent with session.update when a
// conversation starts. Input transcription is only requested when enabled,
// the middle tier relays the resulting transcripts back to the client.
func NewSessionConfig(sc shared.SessionConfig, ac shared.AudioConfig) *realtime.RealtimeSessionCreateRequestParam {
	pcm := realtime.RealtimeAudioFormatsUnionParam{
		OfAudioPCM: &realtime.RealtimeAudioFormatsAudioPCMParam{
			Rate: int64(ac.SampleRate),
			Type: audioFormatPCM,
		},
	}
	input := realtime.RealtimeAudioConfigInputParam{
		Format: pcm,
	}
	if sc.VADEagerness != "" {
		input.TurnDetection = realtime.RealtimeAudioInputTurnDetectionUnionParam{
			OfSemanticVad: &realtime.RealtimeAudioInputTurnDetectionSemanticVadParam{
				CreateResponse:    param.NewOpt(true),
				InterruptResponse: param.NewOpt(true),
				Eagerness:         sc.VADEagerness,
			},
		}
	}
	if sc.EnableInputAudioTranscription {
		input.Transcription = realtime.AudioTranscriptionParam{
			Model: realtime.AudioTranscriptionModel(sc.TranscriptionModel),
		}
		if sc.TranscriptionLanguage != "" {
			input.Transcription.Language = param.NewOpt(sc.TranscriptionLanguage)
		}
	}

	output := realtime.RealtimeAudioConfigOutputParam{
		Format: pcm,
	}
	if sc.Voice != "" {
		output.Voice = realtime.RealtimeAudioConfigOutputVoice(sc.Voice)
	}
	if sc.OutputSpeed > 0 {
		output.Speed = param.NewOpt(sc.OutputSpeed)
	}

	cfg := &realtime.RealtimeSessionCreateRequestParam{
		Audio: realtime.RealtimeAudioConfigParam{
			Input:  input,
			Output: output,
		},
	}
	if sc.Instructions != "" {
		cfg.Instructions = param.NewOpt(sc.Instructions)
	}
	if sc.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = realtime.RealtimeSessionCreateRequestMaxOutputTokensUnionParam{
			OfInt: param.NewOpt(sc.MaxOutputTokens),
		}
	}
	return cfg
}
