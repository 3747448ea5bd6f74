package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumikit/go-companion/pkg/backend"
)

func TestSessionSeedsPersona(t *testing.T) {
	s := NewSession("你是洛天依", 3)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, backend.RoleSystem, msgs[0].Role)
	assert.Equal(t, "你是洛天依", msgs[0].Content)
	assert.NotEmpty(t, s.ID())
}

func TestSessionLimit(t *testing.T) {
	s := NewSession("p", 3)
	assert.Equal(t, 7, s.Limit())

	for i := 0; i < 3; i++ {
		s.Append(backend.RoleUser, "q")
		assert.False(t, s.AtLimit())
		s.Append(backend.RoleAssistant, "a")
	}
	assert.True(t, s.AtLimit())
}

func TestSessionResetIssuesFreshID(t *testing.T) {
	s := NewSession("p", 3)
	s.Append(backend.RoleUser, "q")
	old := s.ID()

	s.Reset()

	assert.NotEqual(t, old, s.ID())
	assert.Equal(t, 1, s.Len())
}

func TestSessionDefaultRounds(t *testing.T) {
	s := NewSession("p", 0)
	assert.Equal(t, 1+2*DefaultMaxRounds, s.Limit())
}

func TestMessagesSnapshotIsIsolated(t *testing.T) {
	s := NewSession("p", 3)
	s.Append(backend.RoleUser, "q")

	snap := s.Messages()
	snap[0].Content = "mutated"

	assert.Equal(t, "p", s.Messages()[0].Content)
}
