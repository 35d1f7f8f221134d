package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/printhub-backend/internal/domain"
	"github.com/xela07ax/printhub-backend/internal/drive"
	"github.com/xela07ax/printhub-backend/internal/handler"
	"github.com/xela07ax/printhub-backend/internal/infra/auth"
	"github.com/xela07ax/printhub-backend/internal/service"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- In-memory хранилища: один набор фейков на весь e2e-стенд ---

type memUsers struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*domain.User{}, byID: map[string]*domain.User{}}
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.byEmail[email], nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	return m.byID[id], nil
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	if _, exists := m.byEmail[u.Email]; exists {
		return domain.ErrEmailTaken
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.DisplayName = upd.DisplayName
	u.Phone = upd.Phone
	return nil
}

func (m *memUsers) ListStaff(_ context.Context) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range m.byID {
		if u.Role != domain.RoleUser {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsers) UpdateRole(_ context.Context, id string, role domain.Role) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byEmail, u.Email)
	delete(m.byID, id)
	return nil
}

type memOrders struct {
	orders map[string]*domain.Order
}

func newMemOrders() *memOrders { return &memOrders{orders: map[string]*domain.Order{}} }

func (m *memOrders) Create(_ context.Context, o *domain.Order) error {
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrders) AttachFile(_ context.Context, f *domain.ProjectFile) error {
	if o, ok := m.orders[f.OrderID]; ok {
		o.Files = append(o.Files, *f)
	}
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOrders) Search(_ context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	return nil
}

func (m *memOrders) UpdateUserNote(_ context.Context, id, userID, note string) error {
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return domain.ErrNotFound
	}
	o.Note = &note
	return nil
}

func (m *memOrders) CancelUserOrder(_ context.Context, id, userID string) error {
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return domain.ErrNotFound
	}
	if o.Status != domain.StatusSubmitted {
		return domain.ErrInvalidTransition
	}
	o.Status = domain.StatusCancelled
	return nil
}

func (m *memOrders) CreatePayment(_ context.Context, _ *domain.Payment) error { return nil }

type noopUploader struct{}

func (noopUploader) Upload(_ context.Context, name, _ string, r io.Reader) (*drive.UploadResult, error) {
	_, _ = io.Copy(io.Discard, r)
	return &drive.UploadResult{ID: "drive-" + name, ViewLink: "https://drive.example/" + name}, nil
}

type stubConsent struct{}

func (stubConsent) ConsentURL(state string) string {
	return "https://accounts.example/consent?state=" + state
}

func (stubConsent) CompleteConsent(_ context.Context, _ string) (*http.Client, error) {
	return &http.Client{}, nil
}

type allowAll struct{}

func (allowAll) Allow(_ context.Context, _ string) bool { return true }

// testStand — полный API-стенд на in-memory хранилищах.
type testStand struct {
	srv   *httptest.Server
	users *memUsers
}

func newTestStand(t *testing.T) *testStand {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	logger := zap.NewNop()
	users := newMemUsers()
	orders := newMemOrders()

	authSvc := service.NewAuthService(users, key, time.Hour, 7*24*time.Hour, 4)
	orderSvc := service.NewOrderService(orders, noopUploader{}, "folder-1", logger)
	staffSvc := service.NewStaffService(users, 4)

	s := NewServer(
		logger,
		auth.NewBaseValidator(&key.PublicKey),
		nil,
		handler.NewAuthHandler(authSvc, allowAll{}, logger),
		handler.NewOAuthHandler(stubConsent{}, logger),
		handler.NewProfileHandler(authSvc),
		handler.NewOrderHandler(orderSvc, logger),
		handler.NewStaffHandler(staffSvc),
	)

	stand := &testStand{srv: httptest.NewServer(s), users: users}
	t.Cleanup(stand.srv.Close)
	return stand
}

// seedUser заводит учетку напрямую в хранилище, минуя /register,
// чтобы тесты могли получить учетки с ролями Administrator и Owner.
func (s *testStand) seedUser(t *testing.T, email string, role domain.Role) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), 4)
	require.NoError(t, err)
	u := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  strings.Split(email, "@")[0],
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, s.users.Create(context.Background(), u))
	return s.login(t, email, "secret1")
}

func (s *testStand) login(t *testing.T, email, password string) string {
	t.Helper()
	body, resp := s.do(t, http.MethodPost, "/login", "",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	require.Equal(t, http.StatusOK, resp.StatusCode, "login body: %s", body)

	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	return envelope.Data.AccessToken
}

func (s *testStand) do(t *testing.T, method, path, token, body string) (string, *http.Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw), resp
}

func TestAPI_RegisterLoginProfile(t *testing.T) {
	stand := newTestStand(t)

	body, resp := stand.do(t, http.MethodPost, "/register", "",
		`{"email":"a@b.com","password":"secret1","display_name":"Alice"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	token := stand.login(t, "a@b.com", "secret1")

	body, resp = stand.do(t, http.MethodGet, "/user/profile", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"display_name":"Alice"`)
	assert.Contains(t, body, `"role":"User"`)
	assert.NotContains(t, body, "password", "хэш пароля не должен утекать в ответ")
}

func TestAPI_NoTokenIs401(t *testing.T) {
	stand := newTestStand(t)

	for _, path := range []string{"/user/profile", "/user/orders", "/staff/orders", "/staff/members"} {
		_, resp := stand.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestAPI_RoleGates(t *testing.T) {
	stand := newTestStand(t)

	userToken := stand.seedUser(t, "user@b.com", domain.RoleUser)
	adminToken := stand.seedUser(t, "admin@b.com", domain.RoleAdministrator)
	ownerToken := stand.seedUser(t, "owner@b.com", domain.RoleOwner)

	// Клиентская роль не проходит ни один staff-гейт
	_, resp := stand.do(t, http.MethodGet, "/staff/orders", userToken, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_, resp = stand.do(t, http.MethodGet, "/staff/members", userToken, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Administrator проходит гейт заказов, но не members
	_, resp = stand.do(t, http.MethodGet, "/staff/orders", adminToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, resp = stand.do(t, http.MethodGet, "/staff/members", adminToken, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Owner проходит оба гейта: роль перечислена в обоих allowlist
	_, resp = stand.do(t, http.MethodGet, "/staff/orders", ownerToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, resp = stand.do(t, http.MethodGet, "/staff/members", ownerToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_CatalogueAvailableToUsers(t *testing.T) {
	stand := newTestStand(t)
	token := stand.seedUser(t, "user@b.com", domain.RoleUser)

	body, resp := stand.do(t, http.MethodGet, "/user/book", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"paper":"A4-80g"`)
	assert.Contains(t, body, `"binding":"hardcover"`)
}

func TestAPI_OrderLifecycle(t *testing.T) {
	stand := newTestStand(t)
	userToken := stand.seedUser(t, "user@b.com", domain.RoleUser)
	adminToken := stand.seedUser(t, "admin@b.com", domain.RoleAdministrator)

	// Мультипарт без архива хендлер принимает и как чистый JSON не умеет,
	// поэтому собираем форму с одним полем project.
	body, resp := stand.doMultipart(t, "/user/book", userToken, map[string]string{
		"project": `{"title":"Диплом","items":[{"name":"Блок","paper":"A4-80g","color":"bw","binding":"staple","copies":1,"page_count":10}]}`,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	var created struct {
		Data domain.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	orderID := created.Data.ID
	require.NotEmpty(t, orderID)
	assert.Equal(t, int64(80), created.Data.TotalPrice)

	// Владелец видит свой заказ
	body, resp = stand.do(t, http.MethodGet, "/user/orders", userToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, orderID)

	// Staff двигает статус по графу
	body, resp = stand.do(t, http.MethodPatch, "/staff/orders/"+orderID+"/status", adminToken,
		`{"status":"IN_PROGRESS"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	// Недопустимый скачок отклоняется
	body, resp = stand.do(t, http.MethodPatch, "/staff/orders/"+orderID+"/status", adminToken,
		`{"status":"COMPLETED"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)

	// Отмена после запуска в работу запрещена
	body, resp = stand.do(t, http.MethodPatch, "/user/orders/"+orderID, userToken,
		`{"cancel":true}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)
}

func TestAPI_StaffMembersCRUD(t *testing.T) {
	stand := newTestStand(t)
	ownerToken := stand.seedUser(t, "owner@b.com", domain.RoleOwner)

	body, resp := stand.do(t, http.MethodPost, "/staff/members", ownerToken,
		`{"email":"new-admin@b.com","password":"secret1","display_name":"New Admin"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	var created struct {
		Data domain.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.Equal(t, domain.RoleAdministrator, created.Data.Role)

	// Новая учетка проходит staff-гейт заказов
	adminToken := stand.login(t, "new-admin@b.com", "secret1")
	_, resp = stand.do(t, http.MethodGet, "/staff/orders", adminToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Смена роли и удаление
	body, resp = stand.do(t, http.MethodPatch, "/staff/members/"+created.Data.ID+"/role", ownerToken,
		`{"role":"Owner"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"role":"Owner"`)

	_, resp = stand.do(t, http.MethodDelete, "/staff/members/"+created.Data.ID, ownerToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	stand := newTestStand(t)
	_, resp := stand.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func (s *testStand) doMultipart(t *testing.T, path, token string, fields map[string]string) (string, *http.Response) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw), resp
}
