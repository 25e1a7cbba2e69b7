package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// InitUser is the Telegram account parsed out of WebApp initData.
type InitUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// MaxInitDataAge rejects initData whose auth_date is older than this.
// Telegram clients re-issue initData on every launch, so a day of slack
// is generous.
const MaxInitDataAge = 24 * time.Hour

// VerifyInitData checks the WebApp initData signature against the bot
// token and returns the embedded user. Returns ok=false on any mismatch,
// stale auth_date or malformed payload.
func VerifyInitData(initData, botToken string) (InitUser, bool) {
	return verifyInitDataAt(initData, botToken, time.Now())
}

func verifyInitDataAt(initData, botToken string, now time.Time) (InitUser, bool) {
	initData = strings.TrimSpace(initData)
	if initData == "" || botToken == "" {
		return InitUser{}, false
	}

	vals, err := url.ParseQuery(initData)
	if err != nil {
		return InitUser{}, false
	}
	providedHash := vals.Get("hash")
	if providedHash == "" {
		return InitUser{}, false
	}
	vals.Del("hash")

	expected := signDataCheckString(dataCheckString(vals), botToken)
	if !hmac.Equal([]byte(expected), []byte(providedHash)) {
		return InitUser{}, false
	}

	if authDate := vals.Get("auth_date"); authDate != "" {
		ts, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return InitUser{}, false
		}
		if now.Sub(time.Unix(ts, 0)) > MaxInitDataAge {
			return InitUser{}, false
		}
	}

	userRaw := vals.Get("user")
	if userRaw == "" {
		return InitUser{}, false
	}
	var user InitUser
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil || user.ID == 0 {
		return InitUser{}, false
	}
	return user, true
}

// dataCheckString is key=value pairs sorted by key, joined with \n.
func dataCheckString(vals url.Values) string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+vals.Get(k))
	}
	return strings.Join(parts, "\n")
}

func signDataCheckString(dataCheck, botToken string) string {
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheck))
	return hex.EncodeToString(mac.Sum(nil))
}
