package economy

import "time"

// Task categories. INVITE tasks unlock from the referral counter,
// CHALLENGE tasks are assigned externally (game milestones etc).
const (
	TaskCategoryInvite    = "INVITE"
	TaskCategoryChallenge = "CHALLENGE"
)

type User struct {
	ID             string    `json:"id"`
	TelegramID     string    `json:"telegramId"`
	Username       string    `json:"username"`
	Coins          int64     `json:"coins"`
	ProfitPerHour  int64     `json:"profitPerHour"`
	Taps           float64   `json:"taps"`
	MaxTaps        int64     `json:"maxTaps"`
	LastRefillTime time.Time `json:"lastRefillTime"`
	ReferralCount  int64     `json:"referralCount"`
	FreeSpins      int64     `json:"freeSpins"`
	ReferredBy     string    `json:"referredBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Card is an immutable catalog entry. Cost and profit grow geometrically
// with the owned level, see CostAtLevel / ProfitAtLevel.
type Card struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	BaseProfit     int64   `json:"baseProfit"`
	ProfitIncrease float64 `json:"profitIncrease"`
	MaxLevel       int     `json:"maxLevel"`
	BaseCost       int64   `json:"baseCost"`
	CostIncrease   float64 `json:"costIncrease"`
	Requires       string  `json:"requires,omitempty"`
	ImagePath      string  `json:"imagePath,omitempty"`
	CoinIcon       string  `json:"coinIcon,omitempty"`
}

// CardPurchase is the ownership record of one card for one user.
// At most one exists per (user, card) pair.
type CardPurchase struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	CardID string `json:"cardId"`
	Level  int    `json:"level"`
}

type Task struct {
	ID              string `json:"id"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	LevelName       string `json:"levelName,omitempty"`
	Reward          int64  `json:"reward"`
	RequiredInvites int64  `json:"requiredInvites,omitempty"`
}

// UserTask tracks reward claim state. Claimed flips false->true exactly once.
type UserTask struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	TaskID  string `json:"taskId"`
	Claimed bool   `json:"claimed"`
}

// Referral is the edge recording that ReferrerID caused ReferredID's signup.
type Referral struct {
	ID         int64     `json:"id"`
	ReferrerID string    `json:"referrerId"`
	ReferredID string    `json:"referredId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewUser carries the initial state for a first-time registration.
type NewUser struct {
	TelegramID string
	Username   string
	ReferredBy string
	Coins      int64
	MaxTaps    int64
}

// UserPatch is a partial user update. Nil fields are left untouched.
type UserPatch struct {
	Username       *string
	Coins          *int64
	ProfitPerHour  *int64
	Taps           *float64
	MaxTaps        *int64
	LastRefillTime *time.Time
	FreeSpins      *int64
}

// CardPatch is a partial card catalog update. Nil fields are left untouched.
type CardPatch struct {
	Name           *string
	Category       *string
	BaseProfit     *int64
	ProfitIncrease *float64
	MaxLevel       *int
	BaseCost       *int64
	CostIncrease   *float64
	Requires       *string
	ImagePath      *string
	CoinIcon       *string
}
