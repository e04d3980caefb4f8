package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alert_bot/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []tgbot.MessageConfig
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(c tgbot.Chattable) (tgbot.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbot.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbot.Message{}, f.err
}

func TestTelegram_Send(t *testing.T) {
	s := &fakeSender{}
	n := NewTelegram(s, 0)

	require.NoError(t, n.Send(context.Background(), 77, "hello"))
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(77), s.sent[0].ChatID)
	assert.Equal(t, "hello", s.sent[0].Text)
}

func TestTelegram_SendError(t *testing.T) {
	n := NewTelegram(&fakeSender{err: errors.New("chat not found")}, 0)

	err := n.Send(context.Background(), 1, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUpstreamFetch))
}

func TestTelegram_SendTimeout(t *testing.T) {
	s := &fakeSender{block: make(chan struct{})}
	defer close(s.block)
	n := NewTelegram(s, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := n.Send(ctx, 1, "x")
	assert.True(t, errors.Is(err, models.ErrUpstreamFetch))
	assert.Less(t, time.Since(start), time.Second)
}

func TestTelegram_RateLimitHonoursContext(t *testing.T) {
	n := NewTelegram(&fakeSender{}, 0.001)
	require.NoError(t, n.Send(context.Background(), 1, "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := n.Send(ctx, 1, "second")
	assert.True(t, errors.Is(err, models.ErrUpstreamFetch))
}

func TestStdout_Send(t *testing.T) {
	assert.NoError(t, NewStdout().Send(context.Background(), 1, "x"))
}

func TestSendBot_RequestBoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	bot := NewSendBot(&tgbot.BotAPI{Token: "test-token"}, srv.URL+"/bot%s/%s", 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := bot.Send(tgbot.NewMessage(1, "hi"))
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("send outlived the client timeout")
	}
	assert.Equal(t, "/bottest-token/sendMessage", path.Load())
}

func TestSendBot_Delivers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":77,"type":"private"},"text":"hello"}}`))
	}))
	defer srv.Close()

	n := NewTelegram(NewSendBot(&tgbot.BotAPI{Token: "t"}, srv.URL+"/bot%s/%s", time.Second), 0)
	require.NoError(t, n.Send(context.Background(), 77, "hello"))
}
