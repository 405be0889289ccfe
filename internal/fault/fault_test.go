package fault

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesSentinelOfKind(t *testing.T) {
	err := E(KindTranscription, "openai transcribe", io.ErrUnexpectedEOF)

	assert.ErrorIs(t, err, ErrTranscription)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrGeneration)
}

func TestError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", E(KindClassification, "hosted classify", errors.New("bad json")))

	assert.ErrorIs(t, err, ErrClassification)
	assert.Equal(t, KindClassification, KindOf(err))
	assert.Equal(t, "pipeline: classification: hosted classify: bad json", err.Error())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"provider failure", E(KindGeneration, "openai chat", errors.New("429")), UnavailableMessage},
		{"plain error", errors.New("boom"), UnavailableMessage},
		{"invalid input keeps detail", Errorf(KindInvalidInput, "", "message has no audio and no text"), "message has no audio and no text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
