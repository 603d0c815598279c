package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/nobreverify/internal/discord"
	"github.com/punchamoorthee/nobreverify/internal/domain"
	"github.com/punchamoorthee/nobreverify/internal/service"
	"github.com/punchamoorthee/nobreverify/internal/store"
)

// --- mocks ---

type mockCommerce struct {
	mu       sync.Mutex
	calls    int
	tokenErr error
	emails   []string
}

func (m *mockCommerce) GetAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return "tok", nil
}

func (m *mockCommerce) FetchOrders(ctx context.Context, token string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	orders := make([]domain.Order, 0, len(m.emails))
	for _, e := range m.emails {
		orders = append(orders, domain.Order{Customer: &domain.Customer{Email: e}})
	}
	return orders, nil
}

type mockChat struct {
	mu     sync.Mutex
	grants []string
	dms    []string
}

func (m *mockChat) GrantRole(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants = append(m.grants, userID+":"+roleID)
	return nil
}

func (m *mockChat) SendDirectMessage(ctx context.Context, userID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dms = append(m.dms, userID)
	return nil
}

type fixture struct {
	router   http.Handler
	priv     ed25519.PrivateKey
	ledger   *store.FileLedger
	commerce *mockCommerce
	chat     *mockChat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	checker, err := discord.NewVerifier(hex.EncodeToString(pub))
	require.NoError(t, err)

	ledger, err := store.NewFileLedger(filepath.Join(t.TempDir(), "used_emails"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{priv: priv, ledger: ledger, commerce: &mockCommerce{}, chat: &mockChat{}}
	svc := service.NewVerificationService(ledger, f.commerce, f.chat, "role-1", "welcome", logger)
	f.router = NewRouter(NewHandler(svc, logger), checker, NewAdminHandler(ledger, "admin-secret"), logger)
	return f
}

func (f *fixture) post(t *testing.T, body string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		ts := "1700000000"
		req.Header.Set(discord.HeaderTimestamp, ts)
		req.Header.Set(discord.HeaderSignature, discord.Sign(f.priv, ts, []byte(body)))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) domain.InteractionResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.InteractionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func verifyPayload(email string) string {
	return `{"type":2,"member":{"user":{"id":"user-1"}},"data":{"name":"verificar","options":[{"name":"email_ou_id","value":"` + email + `"}]}}`
}

// --- tests ---

func TestPing(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{"type":1}`, `{"type":1,"data":{"name":"verificar"}}`} {
		rec := f.post(t, body, true)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"type":1}`, rec.Body.String())
	}
	assert.Zero(t, f.commerce.calls)
}

func TestInvalidSignatureNeverReachesHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, verifyPayload("a@b.com"), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := verifyPayload("a@b.com")
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(discord.HeaderTimestamp, "1700000000")
	req.Header.Set(discord.HeaderSignature, discord.Sign(f.priv, "1700000000", []byte(`{"type":1}`)))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, f.commerce.calls)
	assert.Empty(t, f.chat.grants)
	assert.Empty(t, f.chat.dms)
}

func TestEcho(t *testing.T) {
	f := newFixture(t)

	resp := decode(t, f.post(t, `{"type":2,"data":{"name":"echo","options":[{"name":"msg","value":"hi"}]}}`, true))
	assert.Equal(t, domain.ResponseChannelMessageWithSource, resp.Type)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "Echoing: hi", resp.Data.Content)

	resp = decode(t, f.post(t, `{"type":2,"data":{"name":"echo"}}`, true))
	assert.Equal(t, "Echoing: ", resp.Data.Content)
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	resp := decode(t, f.post(t, `{"type":2,"data":{"name":"dance"}}`, true))
	assert.Equal(t, domain.ResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, UnsupportedCommandMessage, resp.Data.Content)

	resp = decode(t, f.post(t, `{"type":2}`, true))
	assert.Equal(t, UnsupportedCommandMessage, resp.Data.Content)
}

func TestMalformedJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, `{"type":`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify_MissingIdentifier(t *testing.T) {
	f := newFixture(t)

	body := `{"type":2,"member":{"user":{"id":"user-1"}},"data":{"name":"verificar","options":[{"name":"other","value":"x"}]}}`
	resp := decode(t, f.post(t, body, true))
	assert.Equal(t, service.StatusMissingIdentity.Message(), resp.Data.Content)
	assert.Zero(t, f.commerce.calls)
	assert.Empty(t, f.chat.grants)
}

func TestVerify_TokenFailure(t *testing.T) {
	f := newFixture(t)
	f.commerce.tokenErr = errors.New("401")
	f.commerce.emails = []string{"a@b.com"}

	resp := decode(t, f.post(t, verifyPayload("a@b.com"), true))
	assert.Equal(t, service.StatusAuthError.Message(), resp.Data.Content)

	ids, err := f.ledger.Identities()
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.chat.grants)
}

func TestVerify_NotAssociated(t *testing.T) {
	f := newFixture(t)
	f.commerce.emails = []string{"c@d.com"}

	resp := decode(t, f.post(t, verifyPayload("a@b.com"), true))
	assert.Equal(t, service.StatusNotPurchaser.Message(), resp.Data.Content)
	assert.Empty(t, f.chat.grants)
	assert.Empty(t, f.chat.dms)
}

func TestVerify_SuccessThenAlreadyUsed(t *testing.T) {
	f := newFixture(t)
	f.commerce.emails = []string{"a@b.com"}

	resp := decode(t, f.post(t, verifyPayload("a@b.com"), true))
	assert.Equal(t, service.StatusVerified.Message(), resp.Data.Content)
	assert.Equal(t, []string{"user-1:role-1"}, f.chat.grants)
	assert.Equal(t, []string{"user-1"}, f.chat.dms)

	ids, err := f.ledger.Identities()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.com"}, ids)

	resp = decode(t, f.post(t, verifyPayload("a@b.com"), true))
	assert.Equal(t, service.StatusAlreadyUsed.Message(), resp.Data.Content)
	assert.Len(t, f.chat.grants, 1)
	assert.Len(t, f.chat.dms, 1)
}

func TestRequestBodyTooLarge(t *testing.T) {
	f := newFixture(t)
	big := bytes.Repeat([]byte("a"), maxInteractionBody+1)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(big))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdminIdentityLookup(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Append(context.Background(), "a@b.com"))

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, get("/admin/identities/a@b.com", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/admin/identities/a@b.com", "wrong").Code)

	rec := get("/admin/identities/A@B.com", "admin-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identity":"a@b.com","used":true}`, rec.Body.String())

	rec = get("/admin/identities/x@y.com", "admin-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identity":"x@y.com","used":false}`, rec.Body.String())
}

type recordingLedger struct {
	*store.FileLedger
	records map[string]time.Time
	getErr  error
}

func (l *recordingLedger) Get(ctx context.Context, identity string) (*domain.IdentityRecord, error) {
	if l.getErr != nil {
		return nil, l.getErr
	}
	at, ok := l.records[identity]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &domain.IdentityRecord{Identity: identity, CreatedAt: at}, nil
}

func TestAdminIdentityLookup_IncludesCreatedAt(t *testing.T) {
	file, err := store.NewFileLedger(filepath.Join(t.TempDir(), "used_emails"))
	require.NoError(t, err)
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	ledger := &recordingLedger{FileLedger: file, records: map[string]time.Time{"a@b.com": at}}
	require.NoError(t, ledger.Append(context.Background(), "a@b.com"))
	require.NoError(t, ledger.Append(context.Background(), "legacy@b.com"))
	admin := NewAdminHandler(ledger, "admin-secret")

	get := func(identity string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/identities/"+identity, nil)
		req.Header.Set("Authorization", "Bearer admin-secret")
		req = mux.SetURLVars(req, map[string]string{"identity": identity})
		rec := httptest.NewRecorder()
		admin.GetIdentity(rec, req)
		return rec
	}

	rec := get("a@b.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identity":"a@b.com","used":true,"created_at":"2026-03-01T12:30:00Z"}`, rec.Body.String())

	rec = get("legacy@b.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identity":"legacy@b.com","used":true}`, rec.Body.String())

	rec = get("x@y.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identity":"x@y.com","used":false}`, rec.Body.String())

	ledger.getErr = errors.New("connection reset")
	assert.Equal(t, http.StatusInternalServerError, get("a@b.com").Code)
}

func TestInvokerResolution(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Interaction
		want string
	}{
		{"guild member", domain.Interaction{Member: &domain.Member{User: &domain.User{ID: "m"}}, User: &domain.User{ID: "u"}, Data: &domain.CommandData{ID: "d"}}, "m"},
		{"direct message", domain.Interaction{User: &domain.User{ID: "u"}, Data: &domain.CommandData{ID: "d"}}, "u"},
		{"data id", domain.Interaction{Data: &domain.CommandData{ID: "d"}}, "d"},
		{"none", domain.Interaction{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.InvokerID())
		})
	}
}
