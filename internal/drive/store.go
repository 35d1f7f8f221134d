// Package drive управляет единственным сервисным OAuth2-credential для
// Google Drive и загрузкой архивов проектов на него.
//
// Credential Set один на весь процесс (общий аккаунт диска, без
// мультитенантности). Consent — внешний человеческий шаг: оператор один раз
// проходит по ссылке согласия, store только персистит и перечитывает результат.
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Единственный запрашиваемый scope: доступ только к файлам, созданным приложением.
const driveFileScope = "https://www.googleapis.com/auth/drive.file"

// Права файла токена: только владелец.
const (
	tokenFilePerms = 0o600
	tokenDirPerms  = 0o700
)

// credentialFile — формат файла на диске. Токен оборачивается в конверт,
// чтобы рядом хранить выданные scope.
type credentialFile struct {
	Token  *oauth2.Token `json:"token"`
	Scopes []string      `json:"scopes,omitempty"`
}

// Store — синглтон-ресурс поверх одного персистентного Credential Set.
// Конкурентные Save — это last-writer-wins без блокировок: обновление
// credential — редкое, ручное событие. Цикл load-modify-save атомарным НЕ
// является, и код нигде не должен делать вид, что является.
type Store struct {
	cfg    *oauth2.Config
	path   string
	logger *zap.Logger
}

// NewStore строит стор из статической конфигурации клиента.
// Возвращает domain.ErrConfigMissing, если регистрация клиента неполна.
func NewStore(cfg infra.GoogleConfig, logger *zap.Logger) (*Store, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("%w: client_id, client_secret and redirect_url are required", domain.ErrConfigMissing)
	}
	if cfg.TokenFile == "" {
		return nil, fmt.Errorf("%w: token_file path is required", domain.ErrConfigMissing)
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{driveFileScope},
	}

	return newStoreWithConfig(oc, cfg.TokenFile, logger), nil
}

// newStoreWithConfig принимает готовый oauth2.Config — тесты подставляют
// сюда endpoint фейкового провайдера.
func newStoreWithConfig(oc *oauth2.Config, path string, logger *zap.Logger) *Store {
	return &Store{
		cfg:    oc,
		path:   path,
		logger: logger.Named("drive-store"),
	}
}

// ConsentURL возвращает ссылку согласия для оператора.
// access_type=offline — чтобы получить refresh token;
// prompt=consent select_account — каждый визит проходит согласие заново,
// чтобы повторная привязка не переиспользовала молча старый grant.
func (s *Store) ConsentURL(state string) string {
	return s.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent select_account"),
	)
}

// CompleteConsent обменивает одноразовый authorization code на токен,
// персистит его и возвращает авторизованный клиент.
// Повторное использование кода локально не отслеживается: провайдер сам
// отклонит replay, и это вернется как domain.ErrTokenExchange.
func (s *Store) CompleteConsent(ctx context.Context, code string) (*http.Client, error) {
	tok, err := s.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}

	if err := s.Save(tok); err != nil {
		return nil, err
	}

	s.logger.Info("drive credential stored",
		zap.Time("expiry", tok.Expiry),
	)

	return s.cfg.Client(ctx, tok), nil
}

// LoadSaved читает персистентный Credential Set и возвращает клиент с ним.
// Отсутствие файла — это не ошибка, а "none". Нечитаемый или битый файл
// тоже деградирует в "none" с warn-логом: сервис должен подняться и дать
// оператору пройти consent заново, а не падать.
func (s *Store) LoadSaved(ctx context.Context) (*http.Client, bool) {
	tok, err := s.loadToken()
	if err != nil {
		s.logger.Warn("saved credential unreadable, treating as absent", zap.Error(err))
		return nil, false
	}
	if tok == nil {
		return nil, false
	}

	return s.cfg.Client(ctx, tok), true
}

// Authorized сообщает, есть ли пригодный сохраненный credential.
func (s *Store) Authorized() bool {
	tok, err := s.loadToken()
	return err == nil && tok != nil
}

// Client возвращает LoadSaved-клиент, если credential есть, иначе —
// неавторизованный клиент. Интерактивного consent здесь нет и не будет:
// вызывающий обязан сам проверять состояние авторизации.
func (s *Store) Client(ctx context.Context) *http.Client {
	if c, ok := s.LoadSaved(ctx); ok {
		return c
	}
	return &http.Client{}
}

// loadToken возвращает (nil, nil), если файл не существует.
func (s *Store) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var cf credentialFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	if cf.Token == nil || cf.Token.AccessToken == "" {
		return nil, fmt.Errorf("%s missing token field", s.path)
	}

	return cf.Token, nil
}

// Save сериализует Credential Set и атомарно пишет его на диск:
// временный файл в той же директории, fsync, rename. Читатель никогда не
// увидит полфайла. Ошибка записи — domain.ErrPersist.
func (s *Store) Save(tok *oauth2.Token) error {
	cf := credentialFile{Token: tok, Scopes: s.cfg.Scopes}

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", domain.ErrPersist, err)
	}

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, tokenDirPerms); mkErr != nil {
		return fmt.Errorf("%w: creating directory %s: %v", domain.ErrPersist, dir, mkErr)
	}

	// Временный файл в той же директории — гарантия одной файловой системы для rename(2)
	tmp, err := os.CreateTemp(dir, ".credential-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", domain.ErrPersist, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, tokenFilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: setting permissions: %v", domain.ErrPersist, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing: %v", domain.ErrPersist, err)
	}

	// fsync до rename: потеря питания между close и rename не должна
	// оставить по финальному пути пустой или частичный файл
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing: %v", domain.ErrPersist, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing: %v", domain.ErrPersist, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: renaming: %v", domain.ErrPersist, err)
	}

	success = true
	return nil
}
