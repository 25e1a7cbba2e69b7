package telegram

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "12345:test-bot-token"

func signedInitData(t *testing.T, botToken string, authDate time.Time, userJSON string) string {
	t.Helper()
	vals := url.Values{}
	vals.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	vals.Set("query_id", "AAF3test")
	if userJSON != "" {
		vals.Set("user", userJSON)
	}
	hash := signDataCheckString(dataCheckString(vals), botToken)
	vals.Set("hash", hash)
	return vals.Encode()
}

func TestVerifyInitData(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data := signedInitData(t, testBotToken, now, `{"id":42,"username":"alice","first_name":"Alice"}`)

	user, ok := verifyInitDataAt(data, testBotToken, now)
	require.True(t, ok)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice", user.FirstName)
}

func TestVerifyInitDataWrongToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data := signedInitData(t, "other:token", now, `{"id":42}`)

	_, ok := verifyInitDataAt(data, testBotToken, now)
	assert.False(t, ok)
}

func TestVerifyInitDataTampered(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data := signedInitData(t, testBotToken, now, `{"id":42}`)

	vals, err := url.ParseQuery(data)
	require.NoError(t, err)
	vals.Set("user", `{"id":43}`)

	_, ok := verifyInitDataAt(vals.Encode(), testBotToken, now)
	assert.False(t, ok)
}

func TestVerifyInitDataStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data := signedInitData(t, testBotToken, now.Add(-25*time.Hour), `{"id":42}`)

	_, ok := verifyInitDataAt(data, testBotToken, now)
	assert.False(t, ok)
}

func TestVerifyInitDataMissingUser(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data := signedInitData(t, testBotToken, now, "")

	_, ok := verifyInitDataAt(data, testBotToken, now)
	assert.False(t, ok)
}

func TestVerifyInitDataEmpty(t *testing.T) {
	_, ok := VerifyInitData("", testBotToken)
	assert.False(t, ok)

	_, ok = VerifyInitData("auth_date=1&hash=zz", "")
	assert.False(t, ok)
}
