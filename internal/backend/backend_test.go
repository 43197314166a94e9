package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_Success(t *testing.T) {
	var gotPrompt string
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPrompt = body["prompt"]

		_ = json.NewEncoder(w).Encode(map[string]string{"reply": "why did the gopher cross the road"})
	})

	s := NewSession(Options{})
	s.SetBackend(srv.URL + "/")

	reply, err := s.Send(context.Background(), "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, "why did the gopher cross the road", reply)
	assert.Equal(t, "tell me a joke", gotPrompt)
	assert.True(t, s.Status().Online)
}

func TestSend_MissingReplyField(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"other": 1}`))
	})

	s := NewSession(Options{})
	s.SetBackend(srv.URL)

	reply, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestSend_Unset(t *testing.T) {
	s := NewSession(Options{})

	_, err := s.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrBackendUnset)
}

func TestSend_StatusError(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model overloaded"}`))
	})

	s := NewSession(Options{})
	s.SetBackend(srv.URL)

	_, err := s.Send(context.Background(), "hi")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "model overloaded", se.Body)
}

func TestSend_MalformedBody(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy page</html>"))
	})

	s := NewSession(Options{})
	s.SetBackend(srv.URL)

	_, err := s.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSend_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + lis.Addr().String()
	require.NoError(t, lis.Close())

	s := NewSession(Options{})
	s.SetBackend(url)
	s.MarkReachable(url, true)

	_, err = s.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrBackendUnreachable)
	assert.False(t, s.Status().Online, "transport failure marks the session offline")
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	s := NewSession(Options{SendTimeout: 100 * time.Millisecond})
	s.SetBackend(srv.URL)

	start := time.Now()
	_, err := s.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrBackendUnreachable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReachable_UsesCacheWhileFresh(t *testing.T) {
	var calls atomic.Int32
	s := NewSession(Options{
		ProbeInterval: time.Minute,
		Probe: func(ctx context.Context, url string, timeout time.Duration) bool {
			calls.Add(1)
			return true
		},
	})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.SetBackend("http://backend")
	assert.True(t, s.Reachable(context.Background()))
	assert.True(t, s.Reachable(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Minute)
	assert.True(t, s.Reachable(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestReachable_NoBackendNeverProbes(t *testing.T) {
	s := NewSession(Options{
		Probe: func(ctx context.Context, url string, timeout time.Duration) bool {
			t.Fatal("probe must not be called without a backend")
			return false
		},
	})
	assert.False(t, s.Reachable(context.Background()))
}

func TestReachable_CancelledCallerNotCached(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {})

	s := NewSession(Options{ProbeInterval: time.Minute})
	s.SetBackend(srv.URL)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, s.Reachable(cancelled))
	assert.True(t, s.Status().CheckedAt.IsZero(), "an aborted check must not be cached")
	assert.True(t, s.Reachable(context.Background()))
	assert.True(t, s.Status().Online)
}

func TestSend_CancelledCallerKeepsOnline(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"reply": "hi"})
	})

	s := NewSession(Options{})
	s.SetBackend(srv.URL)
	s.MarkReachable(srv.URL, true)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Send(cancelled, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.Status().Online, "a caller abort must not mark the backend offline")
}

func TestSetBackend_ResetsReachability(t *testing.T) {
	s := NewSession(Options{})
	s.SetBackend("http://a")
	s.MarkReachable("http://a", true)
	require.True(t, s.Status().Online)

	s.SetBackend("http://b")
	assert.False(t, s.Status().Online)
	assert.True(t, s.Status().CheckedAt.IsZero())

	s.SetBackend("")
	_, ok := s.Backend()
	assert.False(t, ok)
}

func TestMarkReachable_DropsStaleURL(t *testing.T) {
	s := NewSession(Options{})
	s.SetBackend("http://new")

	s.MarkReachable("http://old", true)
	assert.False(t, s.Status().Online)
	assert.Equal(t, "http://new", s.Status().URL)
}

func TestSession_ConcurrentAccess(t *testing.T) {
	s := NewSession(Options{
		Probe: func(ctx context.Context, url string, timeout time.Duration) bool { return true },
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Reachable(context.Background())
				s.Status()
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%2 == 0 {
					s.SetBackend("http://a")
				} else {
					s.SetBackend("")
				}
			}
		}(i)
	}
	wg.Wait()
}
