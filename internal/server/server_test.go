package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatbot-parser/internal/chatbot"
	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/conversation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestServer(t *testing.T, checks ...Check) *Server {
	svc := conversation.NewService(chatbot.NewDefaultParser(), logger.NewTestLogger(t))
	return New(config.ServerConfig{Address: ":0"}, svc, logger.NewTestLogger(t), checks...)
}

func doJSON(t *testing.T, s *Server, method, path, body string) (int, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// ==========================
// Chat endpoints
// ==========================

func TestChat(t *testing.T) {
	s := newTestServer(t)

	status, body := doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"userMessage":"What's the weather in Paris?"}`)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["sessionId"])
	assert.Equal(t, "askAboutWeather", body["intent"])
	assert.Equal(t, "Let me check the current weather in Paris.", body["chatbotResponse"])
	assert.Equal(t, map[string]interface{}{"location": "Paris"}, body["entities"])

	sessionID := body["sessionId"].(string)
	status, body = doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"sessionId":"`+sessionID+`","userMessage":"thanks"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["conversationHistory"], 4)

	status, body = doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+sessionID+"/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["conversationHistory"], 4)

	status, _ = doJSON(t, s, http.MethodDelete, "/api/v1/sessions/"+sessionID, "")
	assert.Equal(t, http.StatusNoContent, status)

	_, body = doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+sessionID+"/history", "")
	assert.Empty(t, body["conversationHistory"])
}

func TestChat_EmptyMessageIsValid(t *testing.T) {
	s := newTestServer(t)

	status, body := doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"userMessage":""}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "unknown", body["intent"])
	assert.Equal(t, chatbot.DefaultFallback, body["chatbotResponse"])
}

func TestParse(t *testing.T) {
	s := newTestServer(t)

	status, body := doJSON(t, s, http.MethodPost, "/api/v1/parse", `{"userMessage":"book a flight to Paris tomorrow"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bookFlight", body["intent"])
	assert.Equal(t, map[string]interface{}{"destination": "Paris", "date": "tomorrow"}, body["entities"])
}

func TestRespond(t *testing.T) {
	s := newTestServer(t)

	status, body := doJSON(t, s, http.MethodPost, "/api/v1/respond",
		`{"intent":"cancelFlight","entities":{"bookingReference":"AB12CD"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Your booking AB12CD will be cancelled. You'll receive a confirmation shortly.", body["chatbotResponse"])

	status, body = doJSON(t, s, http.MethodPost, "/api/v1/respond", `{"intent":"orderPizza"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, chatbot.DefaultFallback, body["chatbotResponse"])
}

func TestMalformedJSON(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/chat", "/api/v1/parse", "/api/v1/respond"} {
		t.Run(path, func(t *testing.T) {
			status, body := doJSON(t, s, http.MethodPost, path, `{"userMessage":`)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "invalid request body", body["error"])
		})
	}
}

// ==========================
// Operational endpoints
// ==========================

func TestHealthAndReady(t *testing.T) {
	healthy := newTestServer(t, Check{Name: "redis", Ping: func(context.Context) error { return nil }})

	status, body := doJSON(t, healthy, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = doJSON(t, healthy, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"redis": "ok"}, body["checks"])

	broken := newTestServer(t, Check{Name: "postgres", Ping: func(context.Context) error { return errors.New("refused") }})
	status, body = doJSON(t, broken, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, map[string]interface{}{"postgres": "refused"}, body["checks"])
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s, http.MethodPost, "/api/v1/parse", `{"userMessage":"hello"}`)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "chatbot_messages_parsed_total")
}

func TestListen_LogsAddressOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := logger.NewZapAdapter(zap.New(core))
	svc := conversation.NewService(chatbot.NewDefaultParser(), log)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(config.ServerConfig{Address: addr}, svc, log)

	done := make(chan error, 1)
	go func() { done <- s.Listen() }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return after shutdown")
	}

	entries := logs.FilterMessage("http server listening").All()
	require.Len(t, entries, 1)
	assert.Equal(t, addr, entries[0].ContextMap()["address"])
}
