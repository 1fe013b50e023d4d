package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slacktip/tipbot/pkg/config"
)

func TestDirectMessage(t *testing.T) {
	var posted struct {
		Channel string `json:"channel"`
		Text    string `json:"text"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/conversations.open":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":      true,
				"channel": map[string]string{"id": "D123"},
			})
		case "/chat.postMessage":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	n := NewSlackNotifier(&config.SlackConfig{BotToken: "xoxb-test", APIURL: server.URL}, zap.NewNop())

	err := n.DirectMessage(context.Background(), "U123", "hello there")
	require.NoError(t, err)
	require.Equal(t, "D123", posted.Channel)
	require.Equal(t, "hello there", posted.Text)
}

func TestDirectMessage_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "user_not_found"})
	}))
	defer server.Close()

	n := NewSlackNotifier(&config.SlackConfig{BotToken: "xoxb-test", APIURL: server.URL}, zap.NewNop())

	err := n.DirectMessage(context.Background(), "U999", "hello")
	require.ErrorContains(t, err, "user_not_found")
}
