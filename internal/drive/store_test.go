package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// fakeProvider — минимальный OAuth-провайдер: коды одноразовые,
// повторный обмен того же кода отклоняется, как у настоящего.
type fakeProvider struct {
	mu    sync.Mutex
	used  map[string]bool
	srv   *httptest.Server
	token oauth2.Token
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	p := &fakeProvider{
		used: make(map[string]bool),
		token: oauth2.Token{
			AccessToken:  "access-123",
			RefreshToken: "refresh-456",
			TokenType:    "Bearer",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		code := r.FormValue("code")

		p.mu.Lock()
		replayed := p.used[code]
		p.used[code] = true
		p.mu.Unlock()

		if code == "" || replayed {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  p.token.AccessToken,
			"refresh_token": p.token.RefreshToken,
			"token_type":    p.token.TokenType,
			"expires_in":    3600,
		})
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func newTestStore(t *testing.T, p *fakeProvider) *Store {
	t.Helper()

	oc := &oauth2.Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost/callback",
		Scopes:       []string{driveFileScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.srv.URL + "/auth",
			TokenURL: p.srv.URL + "/token",
		},
	}
	path := filepath.Join(t.TempDir(), "data", "token.json")
	return newStoreWithConfig(oc, path, zap.NewNop())
}

func TestNewStore_ConfigMissing(t *testing.T) {
	_, err := NewStore(infra.GoogleConfig{ClientSecret: "s", RedirectURL: "r"}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigMissing)

	_, err = NewStore(infra.GoogleConfig{
		ClientID: "id", ClientSecret: "s", RedirectURL: "r",
	}, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrConfigMissing) // нет token_file
}

func TestConsentURL_OfflineForcedPrompt(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	u := s.ConsentURL("state-xyz")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent+select_account")
	assert.Contains(t, u, "state=state-xyz")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	expiry := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	original := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}
	require.NoError(t, s.Save(original))

	loaded, err := s.loadToken()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, original.AccessToken, loaded.AccessToken)
	assert.Equal(t, original.RefreshToken, loaded.RefreshToken)
	assert.Equal(t, original.TokenType, loaded.TokenType)
	assert.True(t, loaded.Expiry.Equal(expiry))

	// Файл закрыт от чужих глаз
	info, err := os.Stat(s.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadSaved_NoCredential(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	client, ok := s.LoadSaved(context.Background())
	assert.False(t, ok)
	assert.Nil(t, client)
	assert.False(t, s.Authorized())
}

func TestLoadSaved_CorruptFile(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	require.NoError(t, os.MkdirAll(filepath.Dir(s.path), 0o700))
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o600))

	// Битый файл — это "none", а не падение
	client, ok := s.LoadSaved(context.Background())
	assert.False(t, ok)
	assert.Nil(t, client)
}

func TestLoadSaved_MissingTokenField(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	require.NoError(t, os.MkdirAll(filepath.Dir(s.path), 0o700))
	require.NoError(t, os.WriteFile(s.path, []byte(`{"scopes":["x"]}`), 0o600))

	_, ok := s.LoadSaved(context.Background())
	assert.False(t, ok)
}

func TestCompleteConsent_PersistsCredential(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	client, err := s.CompleteConsent(context.Background(), "one-time-code")
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.True(t, s.Authorized())
	loaded, err := s.loadToken()
	require.NoError(t, err)
	assert.Equal(t, "access-123", loaded.AccessToken)
	assert.Equal(t, "refresh-456", loaded.RefreshToken)
}

func TestCompleteConsent_CodeReplayRejected(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	_, err := s.CompleteConsent(context.Background(), "one-time-code")
	require.NoError(t, err)

	// Второй обмен того же кода отклоняет провайдер
	_, err = s.CompleteConsent(context.Background(), "one-time-code")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTokenExchange)
}

func TestSave_Overwrite(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	require.NoError(t, s.Save(&oauth2.Token{AccessToken: "first", TokenType: "Bearer"}))
	require.NoError(t, s.Save(&oauth2.Token{AccessToken: "second", TokenType: "Bearer"}))

	loaded, err := s.loadToken()
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.AccessToken)

	// Временных огрызков после перезаписи не остается
	entries, err := os.ReadDir(filepath.Dir(s.path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClient_UnauthenticatedFallback(t *testing.T) {
	p := newFakeProvider(t)
	s := newTestStore(t, p)

	// Без сохраненного credential Client не блокируется и не падает
	client := s.Client(context.Background())
	assert.NotNil(t, client)
}
