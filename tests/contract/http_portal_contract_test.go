package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	httpadapter "github.com/PykeW/update-all/internal/adapters/http"
	"github.com/PykeW/update-all/internal/application"
	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

type successEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type harness struct {
	router   http.Handler
	service  *application.Service
	software *memSoftware
	users    *memUsers
}

func newHarness() *harness {
	software := &memSoftware{entries: map[uuid.UUID]domain.SoftwareEntry{}}
	users := &memUsers{byID: map[uuid.UUID]domain.User{}, byUsername: map[string]uuid.UUID{}, byDingTalk: map[string]uuid.UUID{}}
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			OnDemandURLTTL:  time.Hour,
			PublishURLTTL:   7 * 24 * time.Hour,
			SweepHorizon:    72 * time.Hour,
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			DefaultPageSize: 10,
			MaxPageSize:     100,
			MaxUploadBytes:  1 << 20,
		},
		Software:    software,
		Downloads:   &memDownloads{},
		Users:       users,
		Store:       &memStore{},
		SSO:         memSSO{},
		Hasher:      memHasher{},
		TokenSigner: &memSigner{tokens: map[string]ports.AuthClaims{}},
		Revocations: &memRevocations{revoked: map[uuid.UUID]bool{}},
	})
	return &harness{
		router:   httpadapter.NewRouter(httpadapter.NewHandler(svc)),
		service:  svc,
		software: software,
		users:    users,
	}
}

// login provisions an account with the given role and returns a bearer token.
func (h *harness) login(t *testing.T, role string) string {
	t.Helper()
	username := fmt.Sprintf("acct-%s", uuid.NewString()[:8])
	user := domain.User{
		UserID:       uuid.New(),
		Username:     username,
		PasswordHash: "hashed:secret-pass",
		Role:         role,
		IsActive:     true,
	}
	if err := h.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	rr := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "secret-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var env successEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode login envelope: %v", err)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode login payload: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatalf("login returned no access token: %s", rr.Body.String())
	}
	return payload.AccessToken
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, rr.Body.String())
	}
	if env.Status != "error" {
		t.Fatalf("envelope status = %q, want error", env.Status)
	}
	return env
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness()
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := h.do(t, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", path, rr.Code)
		}
	}
}

func TestCatalogRequiresBearerToken(t *testing.T) {
	h := newHarness()
	rr := h.do(t, http.MethodGet, "/api/v1/software", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rr.Code)
	}
	if env := decodeError(t, rr); env.Code != "UNAUTHORIZED" {
		t.Fatalf("code = %q, want UNAUTHORIZED", env.Code)
	}
}

func TestPublishAndDownloadFlow(t *testing.T) {
	h := newHarness()
	adminToken := h.login(t, domain.RoleAdmin)
	userToken := h.login(t, domain.RoleUser)

	createRR := h.do(t, http.MethodPost, "/api/v1/software", adminToken, map[string]any{
		"name":         "Editor",
		"version":      "2.1.0",
		"platforms":    []string{"windows"},
		"oss_key":      "software/editor-2.1.0.exe",
		"is_published": true,
	})
	if createRR.Code != http.StatusCreated {
		t.Fatalf("create software: status=%d body=%s", createRR.Code, createRR.Body.String())
	}
	var createEnv successEnvelope
	if err := json.Unmarshal(createRR.Body.Bytes(), &createEnv); err != nil {
		t.Fatalf("decode create envelope: %v", err)
	}
	var created struct {
		SoftwareID string `json:"software_id"`
	}
	if err := json.Unmarshal(createEnv.Data, &created); err != nil {
		t.Fatalf("decode created entry: %v", err)
	}

	listRR := h.do(t, http.MethodGet, "/api/v1/software", userToken, nil)
	if listRR.Code != http.StatusOK {
		t.Fatalf("list software: status=%d body=%s", listRR.Code, listRR.Body.String())
	}

	dlRR := h.do(t, http.MethodGet, "/api/v1/software/"+created.SoftwareID+"/download", userToken, nil)
	if dlRR.Code != http.StatusOK {
		t.Fatalf("download: status=%d body=%s", dlRR.Code, dlRR.Body.String())
	}
	// The download endpoint keeps the portal's legacy flat shape.
	var grant struct {
		Success     bool      `json:"success"`
		DownloadURL string    `json:"downloadUrl"`
		Filename    string    `json:"filename"`
		Expires     time.Time `json:"expires"`
	}
	if err := json.Unmarshal(dlRR.Body.Bytes(), &grant); err != nil {
		t.Fatalf("decode download payload: %v", err)
	}
	if !grant.Success || grant.DownloadURL == "" || grant.Filename != "editor-2.1.0.exe" {
		t.Fatalf("unexpected download payload: %s", dlRR.Body.String())
	}

	statsRR := h.do(t, http.MethodGet, "/api/v1/software/"+created.SoftwareID+"/stats", adminToken, nil)
	if statsRR.Code != http.StatusOK {
		t.Fatalf("stats: status=%d body=%s", statsRR.Code, statsRR.Body.String())
	}
	var statsEnv successEnvelope
	if err := json.Unmarshal(statsRR.Body.Bytes(), &statsEnv); err != nil {
		t.Fatalf("decode stats envelope: %v", err)
	}
	var stats struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(statsEnv.Data, &stats); err != nil {
		t.Fatalf("decode stats payload: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("stats total = %d, want 1", stats.Total)
	}
}

func TestPublishRequiresAdminRole(t *testing.T) {
	h := newHarness()
	userToken := h.login(t, domain.RoleUser)

	rr := h.do(t, http.MethodPost, "/api/v1/software", userToken, map[string]any{
		"name":    "Editor",
		"version": "1.0.0",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rr.Code)
	}
	if env := decodeError(t, rr); env.Code != "FORBIDDEN" {
		t.Fatalf("code = %q, want FORBIDDEN", env.Code)
	}
}

func TestDownloadWithoutPackageIsConflict(t *testing.T) {
	h := newHarness()
	adminToken := h.login(t, domain.RoleAdmin)

	createRR := h.do(t, http.MethodPost, "/api/v1/software", adminToken, map[string]any{
		"name":         "Draft",
		"version":      "0.1.0",
		"is_published": true,
	})
	if createRR.Code != http.StatusCreated {
		t.Fatalf("create software: status=%d body=%s", createRR.Code, createRR.Body.String())
	}
	var env successEnvelope
	_ = json.Unmarshal(createRR.Body.Bytes(), &env)
	var created struct {
		SoftwareID string `json:"software_id"`
	}
	_ = json.Unmarshal(env.Data, &created)

	rr := h.do(t, http.MethodGet, "/api/v1/software/"+created.SoftwareID+"/download", adminToken, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409; body=%s", rr.Code, rr.Body.String())
	}
	if got := decodeError(t, rr); got.Code != "PACKAGE_UNAVAILABLE" {
		t.Fatalf("code = %q, want PACKAGE_UNAVAILABLE", got.Code)
	}
}

func TestDingTalkCallbackRedirectsToFrontend(t *testing.T) {
	h := newHarness()

	rr := h.do(t, http.MethodGet, "/api/v1/auth/dingtalk/callback?code=tmp-auth-123", "", nil)
	if rr.Code != http.StatusFound {
		t.Fatalf("status=%d, want 302; body=%s", rr.Code, rr.Body.String())
	}
	location := rr.Header().Get("Location")
	if !strings.HasSuffix(location, "/login/callback?code=tmp-auth-123") {
		t.Fatalf("Location = %q, want frontend login callback with code", location)
	}

	missing := h.do(t, http.MethodGet, "/api/v1/auth/dingtalk/callback", "", nil)
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400 without a code", missing.Code)
	}
}

func TestUnpublishedDownloadForbiddenForUsers(t *testing.T) {
	h := newHarness()
	adminToken := h.login(t, domain.RoleAdmin)
	userToken := h.login(t, domain.RoleUser)

	createRR := h.do(t, http.MethodPost, "/api/v1/software", adminToken, map[string]any{
		"name":         "Beta Build",
		"version":      "0.9.0",
		"oss_key":      "software/beta-0.9.0.exe",
		"is_published": false,
	})
	if createRR.Code != http.StatusCreated {
		t.Fatalf("create software: status=%d body=%s", createRR.Code, createRR.Body.String())
	}
	var env successEnvelope
	_ = json.Unmarshal(createRR.Body.Bytes(), &env)
	var created struct {
		SoftwareID string `json:"software_id"`
	}
	_ = json.Unmarshal(env.Data, &created)

	rr := h.do(t, http.MethodGet, "/api/v1/software/"+created.SoftwareID+"/download", userToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403; body=%s", rr.Code, rr.Body.String())
	}
	if got := decodeError(t, rr); got.Code != "FORBIDDEN" {
		t.Fatalf("code = %q, want FORBIDDEN", got.Code)
	}

	adminRR := h.do(t, http.MethodGet, "/api/v1/software/"+created.SoftwareID+"/download", adminToken, nil)
	if adminRR.Code != http.StatusOK {
		t.Fatalf("admin draft download: status=%d body=%s", adminRR.Code, adminRR.Body.String())
	}
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	h := newHarness()
	adminToken := h.login(t, domain.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/software", strings.NewReader(`{"name": `))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
	if env := decodeError(t, rr); env.Code != "VALIDATION_ERROR" {
		t.Fatalf("code = %q, want VALIDATION_ERROR", env.Code)
	}
}

type memSoftware struct {
	mu      sync.Mutex
	entries map[uuid.UUID]domain.SoftwareEntry
}

func (s *memSoftware) Create(_ context.Context, row domain.SoftwareEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[row.SoftwareID] = row
	return nil
}

func (s *memSoftware) GetByID(_ context.Context, id uuid.UUID) (*domain.SoftwareEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := row
	return &copied, nil
}

func (s *memSoftware) List(_ context.Context, q ports.SoftwareQuery) ([]domain.SoftwareEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SoftwareEntry
	for _, row := range s.entries {
		if q.Published != nil && row.IsPublished != *q.Published {
			continue
		}
		out = append(out, row)
	}
	return out, int64(len(out)), nil
}

func (s *memSoftware) Search(_ context.Context, keyword string, publishedOnly bool, _, _ int) ([]domain.SoftwareEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SoftwareEntry
	for _, row := range s.entries {
		if publishedOnly && !row.IsPublished {
			continue
		}
		if strings.Contains(strings.ToLower(row.Name), strings.ToLower(keyword)) {
			out = append(out, row)
		}
	}
	return out, int64(len(out)), nil
}

func (s *memSoftware) ListRecommended(_ context.Context, limit int) ([]domain.SoftwareEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SoftwareEntry
	for _, row := range s.entries {
		if row.IsRecommended && row.IsPublished && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memSoftware) Update(_ context.Context, id uuid.UUID, upd ports.SoftwareUpdate, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.Name != nil {
		row.Name = *upd.Name
	}
	if upd.Version != nil {
		row.Version = *upd.Version
	}
	if upd.OSSKey != nil {
		row.OSSKey = *upd.OSSKey
	}
	if upd.IsPublished != nil {
		row.IsPublished = *upd.IsPublished
	}
	if upd.IsRecommended != nil {
		row.IsRecommended = *upd.IsRecommended
	}
	if upd.ClearDownloadURL {
		row.DownloadURL = ""
		row.DownloadURLExpires = nil
	}
	row.UpdatedAt = at
	s.entries[id] = row
	return nil
}

func (s *memSoftware) SetDownloadURL(_ context.Context, id uuid.UUID, url string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.DownloadURL = url
	row.DownloadURLExpires = &expires
	s.entries[id] = row
	return nil
}

func (s *memSoftware) IncrementDownloads(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.Downloads++
	s.entries[id] = row
	return nil
}

func (s *memSoftware) ListExpiring(_ context.Context, threshold time.Time, limit int) ([]domain.SoftwareEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SoftwareEntry
	for _, row := range s.entries {
		if row.OSSKey == "" || len(out) >= limit {
			continue
		}
		if row.DownloadURLExpires == nil || row.DownloadURLExpires.Before(threshold) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memSoftware) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

type memDownloads struct {
	mu     sync.Mutex
	events []domain.DownloadEvent
}

func (d *memDownloads) Append(_ context.Context, row domain.DownloadEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, row)
	return nil
}

func (d *memDownloads) ListBySoftware(_ context.Context, softwareID uuid.UUID, _, _ int) ([]domain.DownloadEvent, int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.DownloadEvent
	for _, ev := range d.events {
		if ev.SoftwareID == softwareID {
			out = append(out, ev)
		}
	}
	return out, int64(len(out)), nil
}

func (d *memDownloads) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]domain.DownloadEvent, int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.DownloadEvent
	for _, ev := range d.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, int64(len(out)), nil
}

func (d *memDownloads) Count(_ context.Context, softwareID *uuid.UUID, since *time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, ev := range d.events {
		if ev.Status != domain.DownloadStatusSuccess {
			continue
		}
		if softwareID != nil && ev.SoftwareID != *softwareID {
			continue
		}
		if since != nil && ev.CreatedAt.Before(*since) {
			continue
		}
		n++
	}
	return n, nil
}

type memUsers struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]domain.User
	byUsername map[string]uuid.UUID
	byDingTalk map[string]uuid.UUID
}

func (u *memUsers) Create(_ context.Context, row domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byUsername[row.Username]; ok {
		return domain.ErrConflict
	}
	u.byID[row.UserID] = row
	u.byUsername[row.Username] = row.UserID
	if row.DingTalkID != "" {
		u.byDingTalk[row.DingTalkID] = row.UserID
	}
	return nil
}

func (u *memUsers) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	row, ok := u.byID[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return row, nil
}

func (u *memUsers) GetByDingTalkID(_ context.Context, dingtalkID string) (domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	id, ok := u.byDingTalk[dingtalkID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.byID[id], nil
}

func (u *memUsers) GetByUsername(_ context.Context, username string) (domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	id, ok := u.byUsername[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.byID[id], nil
}

func (u *memUsers) List(_ context.Context, _, _ int) ([]domain.User, int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []domain.User
	for _, row := range u.byID {
		out = append(out, row)
	}
	return out, int64(len(out)), nil
}

func (u *memUsers) Update(_ context.Context, id uuid.UUID, upd ports.UserUpdate, at time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	row, ok := u.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.DisplayName != nil {
		row.DisplayName = *upd.DisplayName
	}
	if upd.Role != nil {
		row.Role = *upd.Role
	}
	if upd.IsActive != nil {
		row.IsActive = *upd.IsActive
	}
	row.UpdatedAt = at
	u.byID[id] = row
	return nil
}

func (u *memUsers) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	row, ok := u.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.LastLoginAt = &at
	u.byID[id] = row
	return nil
}

func (u *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	row, ok := u.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(u.byID, id)
	delete(u.byUsername, row.Username)
	delete(u.byDingTalk, row.DingTalkID)
	return nil
}

type memStore struct {
	mu    sync.Mutex
	signs int
}

func (s *memStore) Put(_ context.Context, key string, _ io.Reader, _ string) (ports.PutResult, error) {
	return ports.PutResult{Key: key, ETag: "etag-1"}, nil
}

func (s *memStore) SignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signs++
	return fmt.Sprintf("https://cdn.example.com/%s?sig=%d", key, s.signs), nil
}

func (s *memStore) Delete(_ context.Context, _ string) error { return nil }

type memSSO struct{}

func (memSSO) ExchangeCode(_ context.Context, _ string) (ports.SSOProfile, error) {
	return ports.SSOProfile{}, domain.ErrSSOExchange
}

type memHasher struct{}

func (memHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (memHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type memSigner struct {
	mu     sync.Mutex
	seq    int
	tokens map[string]ports.AuthClaims
}

func (s *memSigner) Sign(claims ports.AuthClaims) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	token := fmt.Sprintf("token-%d", s.seq)
	s.tokens[token] = claims
	return token, nil
}

func (s *memSigner) ParseAndValidate(raw string) (ports.AuthClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims, ok := s.tokens[raw]
	if !ok {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[uuid.UUID]bool
}

func (r *memRevocations) MarkRevoked(_ context.Context, tokenID uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = true
	return nil
}

func (r *memRevocations) IsRevoked(_ context.Context, tokenID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[tokenID], nil
}
