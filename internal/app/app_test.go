package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homework-watcher/internal/config"
	"homework-watcher/internal/service"
)

type chatRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (c *chatRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		c.mu.Lock()
		c.texts = append(c.texts, body["text"])
		c.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func testConfig(apiURL, chatURL string) *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{Interval: 10 * time.Minute},
		Practicum: config.PracticumConfig{Endpoint: apiURL, Token: "p", AuthScheme: "OAuth", RequestTimeout: time.Second},
		Alerting: config.AlertingConfig{Telegram: config.TelegramConfig{
			Driver: config.DriverHTTP, BotToken: "b", ChatID: "1", APIBase: chatURL, RequestTimeout: time.Second,
		}},
	}
}

func TestCheckNotifiesOnStatusChange(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"hw1","status":"reviewing"}],"current_date":1000}`))
	}))
	defer api.Close()
	chat := &chatRecorder{}
	chatSrv := httptest.NewServer(chat.handler())
	defer chatSrv.Close()

	a := NewApp(testConfig(api.URL, chatSrv.URL), zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, a.Check(context.Background(), &out))
	assert.Contains(t, out.String(), "outcome: notified")
	require.Len(t, chat.texts, 1)
	assert.Contains(t, chat.texts[0], `"hw1"`)
}

func TestCheckDoesNotReportFailures(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()
	chat := &chatRecorder{}
	chatSrv := httptest.NewServer(chat.handler())
	defer chatSrv.Close()

	a := NewApp(testConfig(api.URL, chatSrv.URL), zerolog.Nop())

	var out bytes.Buffer
	require.Error(t, a.Check(context.Background(), &out))
	assert.Contains(t, out.String(), "kind: fetch")
	assert.Empty(t, chat.texts)
}

func TestSimulateNotify(t *testing.T) {
	chat := &chatRecorder{}
	chatSrv := httptest.NewServer(chat.handler())
	defer chatSrv.Close()

	a := NewApp(testConfig("http://127.0.0.1:1", chatSrv.URL), zerolog.Nop())

	out, err := a.SimulateNotify(context.Background(), SimulateOptions{Name: "X", Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, service.StateNotified, out.State)
	require.Len(t, chat.texts, 1)
	assert.Equal(t, `Changed review status for "X". The work has been reviewed: the reviewer liked everything. Hooray!`, chat.texts[0])

	_, err = a.SimulateNotify(context.Background(), SimulateOptions{Name: "X", Status: "lost"})
	require.Error(t, err)
	assert.Len(t, chat.texts, 1)
}

func TestNewNotifierTelebotNeedsNumericChat(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.Alerting.Telegram.Driver = config.DriverTelebot
	cfg.Alerting.Telegram.ChatID = "@channel"

	_, err := NewApp(cfg, zerolog.Nop()).newNotifier()
	require.Error(t, err)
}
