package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// saveFreshToken кладет в стор непросроченный токен, чтобы oauth2-транспорт
// не ходил на refresh.
func saveFreshToken(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Save(&oauth2.Token{
		AccessToken: "access-123",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))
}

func newTestClient(s *Store, uploadURL string) *Client {
	c := NewClient(s, nil, zap.NewNop())
	c.uploadURL = uploadURL
	c.limiter = rate.NewLimiter(rate.Inf, 1) // тестам лимит не нужен
	return c
}

func TestUpload_Success(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)
	saveFreshToken(t, s)

	var gotContentType, gotQuery, gotAuth string
	driveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{
			"id":          "drive-file-1",
			"webViewLink": "https://drive.example/view/drive-file-1",
		})
	}))
	defer driveSrv.Close()

	c := newTestClient(s, driveSrv.URL)
	res, err := c.Upload(context.Background(), "project.zip", "folder-9", bytes.NewReader([]byte("PK\x03\x04zipdata")))
	require.NoError(t, err)

	assert.Equal(t, "drive-file-1", res.ID)
	assert.Equal(t, "https://drive.example/view/drive-file-1", res.ViewLink)
	assert.Contains(t, gotContentType, "multipart/related")
	assert.Contains(t, gotQuery, "uploadType=multipart")
	assert.Equal(t, "Bearer access-123", gotAuth)
}

func TestUpload_NotConnected(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p) // credential не сохранен

	c := newTestClient(s, "http://drive.invalid")
	_, err := c.Upload(context.Background(), "project.zip", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrDriveNotConnected)
}

func TestUpload_ProviderErrorIsSynchronous(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)
	saveFreshToken(t, s)

	var calls int32
	driveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"backendError"}`, http.StatusInternalServerError)
	}))
	defer driveSrv.Close()

	c := newTestClient(s, driveSrv.URL)
	_, err := c.Upload(context.Background(), "project.zip", "", strings.NewReader("x"))
	require.Error(t, err)

	// Никаких ретраев: один вызов — один поход к провайдеру
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUpload_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)
	saveFreshToken(t, s)

	var calls int32
	driveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer driveSrv.Close()

	c := newTestClient(s, driveSrv.URL)

	// ReadyToTrip срабатывает после шестой подряд ошибки
	for i := 0; i < 6; i++ {
		_, err := c.Upload(context.Background(), "project.zip", "", strings.NewReader("x"))
		require.Error(t, err)
	}
	hits := atomic.LoadInt32(&calls)

	_, err := c.Upload(context.Background(), "project.zip", "", strings.NewReader("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	// Разомкнутый предохранитель до провайдера не доходит
	assert.Equal(t, hits, atomic.LoadInt32(&calls))
}
