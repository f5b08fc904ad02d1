package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeerKind_String(t *testing.T) {
	tests := []struct {
		kind PeerKind
		want string
	}{
		{PeerUser, "user"},
		{PeerChat, "chat"},
		{PeerChannel, "channel"},
		{PeerKind(0), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestRawMessage_ZeroValueHasNoOptionalFields(t *testing.T) {
	var m RawMessage

	assert.Nil(t, m.Text)
	assert.Nil(t, m.From)
	assert.Nil(t, m.Chat)
	assert.Nil(t, m.Views)
	assert.Nil(t, m.ReplyToID)
	assert.Nil(t, m.Forward)
	assert.Empty(t, m.Entities)
	assert.False(t, m.Private)
}
