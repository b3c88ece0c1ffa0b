package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatbot-parser/internal/chatbot"
	chaterrors "chatbot-parser/internal/common/errors"
	commonhttp "chatbot-parser/internal/common/http"
	"chatbot-parser/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	body    string
	err     error
	path    string
	payload interface{}
}

func (f *fakePoster) PostJSON(_ context.Context, path string, payload interface{}) ([]byte, error) {
	f.path = path
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

type constClassifier chatbot.Intent

func (c constClassifier) Classify([]string) chatbot.Intent { return chatbot.Intent(c) }

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		minConf  float64
		expected chatbot.Intent
	}{
		{name: "remote intent", body: `{"intent":"askAboutWeather","confidence":0.93}`, expected: chatbot.IntentAskAboutWeather},
		{name: "snake case intent", body: `{"intent":"book_flight"}`, expected: chatbot.IntentBookFlight},
		{name: "nested intent", body: `{"intentAnalysis":{"primaryIntent":"greet"}}`, expected: chatbot.IntentGreet},
		{name: "unrecognised intent is unknown", body: `{"intent":"order_pizza"}`, expected: chatbot.IntentUnknown},
		{name: "missing intent falls back", body: `{"foo":1}`, expected: chatbot.IntentCancelFlight},
		{name: "non-string intent falls back", body: `{"intent":7}`, expected: chatbot.IntentCancelFlight},
		{name: "low confidence falls back", body: `{"intent":"greet","confidence":0.2}`, minConf: 0.5, expected: chatbot.IntentCancelFlight},
		{name: "transport error falls back", err: errors.New("connection refused"), expected: chatbot.IntentCancelFlight},
		{name: "garbage body falls back", body: `<html>`, expected: chatbot.IntentCancelFlight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poster := &fakePoster{body: tt.body, err: tt.err}
			c := NewClassifier(poster, time.Second, logger.NewTestLogger(t),
				WithClassifierFallback(constClassifier(chatbot.IntentCancelFlight)),
				WithMinConfidence(tt.minConf),
			)

			assert.Equal(t, tt.expected, c.Classify([]string{"is", "it", "raining"}))
			assert.Equal(t, ParseIntentPath, poster.path)
		})
	}
}

func TestClassifier_NilFallbackIsUnknown(t *testing.T) {
	c := NewClassifier(&fakePoster{err: errors.New("down")}, time.Second, logger.NewNoOpLogger(),
		WithClassifierFallback(nil))
	assert.Equal(t, chatbot.IntentUnknown, c.Classify([]string{"hello"}))
}

func TestClassifier_ClassifyContext_ReturnsStandardError(t *testing.T) {
	c := NewClassifier(&fakePoster{err: errors.New("down")}, time.Second, logger.NewNoOpLogger())
	_, err := c.ClassifyContext(context.Background(), []string{"hello"})
	require.Error(t, err)

	stdErr, ok := chaterrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, chaterrors.ErrCodeClassifierUnavailable, stdErr.Code)
}

func TestGenerator_GenerateResponse(t *testing.T) {
	t.Run("remote reply", func(t *testing.T) {
		poster := &fakePoster{body: `{"response":"  Sunny in Oslo.  "}`}
		g := NewGenerator(poster, nil, time.Second, logger.NewTestLogger(t))

		out := g.GenerateResponse(chatbot.IntentAskAboutWeather, map[string]string{chatbot.SlotLocation: "Oslo"})
		assert.Equal(t, "Sunny in Oslo.", out)
		assert.Equal(t, GeneratePath, poster.path)

		payload := poster.payload.(map[string]interface{})
		assert.Equal(t, chatbot.IntentAskAboutWeather, payload["intent"])
	})

	t.Run("blank reply falls back", func(t *testing.T) {
		g := NewGenerator(&fakePoster{body: `{"response":"   "}`}, nil, time.Second, logger.NewTestLogger(t))
		assert.Equal(t, chatbot.DefaultFallback, g.GenerateResponse(chatbot.IntentUnknown, nil))
	})

	t.Run("error falls back to templates", func(t *testing.T) {
		g := NewGenerator(&fakePoster{err: errors.New("timeout")}, chatbot.MustDefaultGenerator(), time.Second, logger.NewTestLogger(t))
		out := g.GenerateResponse(chatbot.IntentGreet, map[string]string{chatbot.SlotName: "Ana"})
		assert.Equal(t, "Hello Ana! How can I help you today?", out)
	})
}

func TestClassifier_AgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Query  string   `json:"query"`
			Tokens []string `json:"tokens"`
		}
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "cancel my booking", req.Query)
		assert.Equal(t, []string{"cancel", "my", "booking"}, req.Tokens)
		_, _ = w.Write([]byte(`{"intent":"cancelFlight","confidence":0.99}`))
	}))
	defer srv.Close()

	client := commonhttp.NewClient(commonhttp.Options{
		Name:          "genai",
		BaseURL:       srv.URL,
		Timeout:       time.Second,
		RetryAttempts: 2,
	}, logger.NewTestLogger(t))

	parser := chatbot.NewParser(NewClassifier(client, time.Second, logger.NewTestLogger(t)), nil)
	result := parser.ParseUserMessage("cancel my booking")
	assert.Equal(t, chatbot.IntentCancelFlight, result.Intent)
}
