package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumikit/go-companion/pkg/wav"
)

// speechPayload is the synthesis server's request shape.
type speechPayload struct {
	Text         string `json:"text"`
	TextLanguage string `json:"text_language"`
}

// SynthesizeSpeech posts text to the synthesis endpoint and decodes the
// binary response into normalized sample data. A body that is not a valid
// audio container surfaces as ErrAudioDecodeFailed.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, endpoint string) (*wav.PCM, error) {
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}

	body, err := c.post(ctx, endpoint, speechPayload{
		Text:         text,
		TextLanguage: speechLanguage,
	}, "")
	if err != nil {
		return nil, err
	}

	pcm, err := wav.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioDecodeFailed, err)
	}

	c.logger.Debug("speech synthesized",
		"chars", len(text),
		"samples", len(pcm.Samples),
		"rate", pcm.SampleRate,
		"channels", pcm.Channels,
	)
	return pcm, nil
}

// IsDecodeFailure reports whether err is a synthesis audio decode failure.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, ErrAudioDecodeFailed)
}
