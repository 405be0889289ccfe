package reply

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/intent"
	"github.com/nadzzz/voicedesk/internal/llm"
	"github.com/nadzzz/voicedesk/internal/message"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Name() string { return "mock" }

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestGenerate(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return strings.HasPrefix(r.System, SystemInstruction) &&
			strings.Contains(r.System, "Card Block") &&
			strings.Contains(r.System, ": hi.") &&
			!r.JSON &&
			r.MaxTokens == 300 &&
			len(r.Messages) == 1 && r.Messages[0].Content == "mujhe apna card block karna hai"
	})).Return("  Aap app se card turant block kar sakte hain.  ", nil).Once()

	g := New(m, Options{Temperature: 0.3})
	out, err := g.Generate(context.Background(), message.NewUtterance("mujhe apna card block karna hai", "", ""), intent.CardBlock, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Aap app se card turant block kar sakte hain.", out)
	m.AssertExpectations(t)
}

func TestGenerate_Failures(t *testing.T) {
	boom := errors.New("503")

	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).Return("", boom).Once()
	m.On("Complete", mock.Anything, mock.Anything).Return("   ", nil).Once()
	g := New(m, Options{})

	_, err := g.Generate(context.Background(), message.NewUtterance("hi", "", ""), intent.GeneralQuery, "en")
	assert.ErrorIs(t, err, fault.ErrGeneration)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, fault.UnavailableMessage, fault.UserMessage(err))

	_, err = g.Generate(context.Background(), message.NewUtterance("hi", "", ""), intent.GeneralQuery, "en")
	assert.ErrorIs(t, err, fault.ErrGeneration)
	assert.ErrorIs(t, err, llm.ErrEmptyReply)
}

func TestSystemInstructionCompliance(t *testing.T) {
	for _, must := range []string{"financial", "guarantee", "PIN", "OTP", "same language"} {
		assert.Contains(t, SystemInstruction, must)
	}
}
