package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinrush/internal/config"
	"coinrush/internal/economy"
	"coinrush/internal/telegram"
	"coinrush/internal/token"
)

// stubVerify treats initData as "<telegramID>:<username>" so tests can
// log in without real Telegram signatures.
func stubVerify(initData, _ string) (telegram.InitUser, bool) {
	var id int64
	var username string
	if n, err := fmt.Sscanf(initData, "%d:%s", &id, &username); err != nil || n != 2 {
		return telegram.InitUser{}, false
	}
	return telegram.InitUser{ID: id, Username: username}, true
}

type testEnv struct {
	store   *economy.MemoryStore
	engine  *economy.Engine
	server  *Server
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		BotToken:      "test-token",
		JWTSecret:     "test-secret",
		StartingCoins: 1000,
		MaxTaps:       1000,
	}
	store := economy.NewMemoryStore()
	engine := economy.New(store, economy.DefaultRules())
	srv := NewServer(cfg, store, engine, nil, nil, token.NewIssuer(cfg.JWTSecret, time.Hour))
	srv.SetVerifier(stubVerify)
	return &testEnv{store: store, engine: engine, server: srv, handler: srv.Router()}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, telegramID int64, username, referralCode string) (string, *economy.User) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth", "", map[string]string{
		"initData":     fmt.Sprintf("%d:%s", telegramID, username),
		"referralCode": referralCode,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	require.NotNil(t, res.User)
	return res.Token, res.User
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	out := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthCreatesUserOnce(t *testing.T) {
	env := newTestEnv(t)

	_, first := env.login(t, 42, "alice", "")
	assert.Equal(t, "42", first.TelegramID)
	assert.Equal(t, int64(1000), first.Coins)
	assert.Equal(t, float64(1000), first.Taps)

	_, second := env.login(t, 42, "alice_renamed", "")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice_renamed", second.Username)

	users, err := env.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestAuthRejectsBadInitData(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth", "", map[string]string{"initData": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, string(body["error"]), "UNAUTHORIZED")
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) ReferralMilestone(_ context.Context, telegramID string, count, spins int64) {
	n.calls = append(n.calls, fmt.Sprintf("%s:%d:%d", telegramID, count, spins))
}

func TestAuthReferralMilestone(t *testing.T) {
	env := newTestEnv(t)
	notifier := &recordingNotifier{}
	env.server.SetNotifier(notifier)

	_, referrer := env.login(t, 900, "referrer", "")

	for i := int64(1); i <= 5; i++ {
		env.login(t, 900+i, "friend"+strconv.FormatInt(i, 10), referrer.TelegramID)
	}

	after, err := env.store.FindUserByID(context.Background(), referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), after.ReferralCount)
	assert.Equal(t, int64(1), after.FreeSpins)
	assert.Equal(t, []string{"900:5:1"}, notifier.calls)
}

func TestPlayerRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/cards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cards", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPurchaseAndUpgradeFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cards", "", economy.Card{
		Name:           "Exchange",
		Category:       "MARKETS",
		BaseProfit:     60,
		ProfitIncrease: 1.25,
		MaxLevel:       2,
		BaseCost:       100,
		CostIncrease:   1.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var card economy.Card
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))

	tok, user := env.login(t, 42, "alice", "")

	rec = env.do(t, http.MethodPost, "/api/cards/purchase", tok, map[string]string{
		"userId": user.ID,
		"cardId": card.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Buying the same card twice conflicts.
	rec = env.do(t, http.MethodPost, "/api/cards/purchase", tok, map[string]string{
		"userId": user.ID,
		"cardId": card.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/cards/upgrade", tok, map[string]string{
		"userId": user.ID,
		"cardId": card.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Level 2 is the cap for this card.
	rec = env.do(t, http.MethodPost, "/api/cards/upgrade", tok, map[string]string{
		"userId": user.ID,
		"cardId": card.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, string(body["error"]), "MAX_LEVEL_REACHED")
}

func TestCardsByCategoryDecoratesOwnership(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cards", "", economy.Card{
		Name: "Exchange", Category: "MARKETS",
		BaseProfit: 60, ProfitIncrease: 1.25, MaxLevel: 5,
		BaseCost: 100, CostIncrease: 1.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var card economy.Card
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))

	tok, user := env.login(t, 42, "alice", "")
	rec = env.do(t, http.MethodPost, "/api/cards/purchase", tok, map[string]string{
		"userId": user.ID, "cardId": card.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cards/category/MARKETS?userId="+user.ID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var states []economy.CardState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 1)
	assert.Equal(t, 1, states[0].Level)
	assert.True(t, states[0].Owned)
}

func TestClaimTaskFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/api/tasks", "", economy.Task{
		Category:    economy.TaskCategoryChallenge,
		Description: "Join the channel",
		Reward:      500,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	var task economy.Task
	require.NoError(t, json.Unmarshal(body["task"], &task))

	tok, user := env.login(t, 42, "alice", "")
	_, err := env.store.CreateUserTask(ctx, user.ID, task.ID)
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/api/tasks/claim", tok, map[string]string{
		"userId": user.TelegramID,
		"taskId": task.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	after, err := env.store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), after.Coins)

	rec = env.do(t, http.MethodPost, "/api/tasks/claim", tok, map[string]string{
		"userId": user.TelegramID,
		"taskId": task.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody(t, rec)
	assert.Contains(t, string(body["error"]), "ALREADY_CLAIMED")
}

func TestRefillEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tok, user := env.login(t, 42, "alice", "")

	// Fresh users are at full allowance, so the first call is a no-op.
	rec := env.do(t, http.MethodPost, "/api/user/refill", tok, map[string]string{"userId": user.TelegramID})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "false", string(body["applied"]))

	taps := 0.0
	past := time.Now().Add(-2 * time.Hour)
	_, err := env.store.UpdateUser(ctx, user.ID, economy.UserPatch{Taps: &taps, LastRefillTime: &past})
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/api/user/refill", tok, map[string]string{"userId": user.TelegramID})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "true", string(body["applied"]))

	after, err := env.store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, float64(after.MaxTaps), after.Taps, 1e-6)
}

func TestBalanceEndpoint(t *testing.T) {
	env := newTestEnv(t)

	tok, user := env.login(t, 42, "alice", "")

	rec := env.do(t, http.MethodPut, "/api/balance/"+user.TelegramID, tok, map[string]int64{"amount": 250})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "1250", string(body["coins"]))

	rec = env.do(t, http.MethodPut, "/api/balance/"+user.TelegramID, tok, map[string]int64{"amount": -5000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)

	tok, user := env.login(t, 42, "alice", "")

	rec := env.do(t, http.MethodGet, "/api/profile/"+user.TelegramID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got economy.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, user.ID, got.ID)

	rec = env.do(t, http.MethodPut, "/api/profile/"+user.TelegramID, tok, map[string]any{"username": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "renamed", got.Username)

	rec = env.do(t, http.MethodPut, "/api/profile/"+user.TelegramID, tok, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/profile/999999", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
