package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:3000", "ws://localhost:3000/api/ws"},
		{"https://chat.example.com/", "wss://chat.example.com/api/ws"},
		{"https://example.com/chatsync", "wss://example.com/chatsync/api/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := channelURL(tt.server)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
