package economy

import "time"

// Rules are the tunable economy constants.
type Rules struct {
	// RefillWindow is how long a full tap allowance takes to regenerate.
	RefillWindow time.Duration
	// ReferralMilestone grants one free spin each time the referral count
	// reaches an exact multiple of it.
	ReferralMilestone int64
	// RebaseProfitOnUpgrade switches upgrade accounting from adding the
	// full next-level profit on top of earlier contributions to replacing
	// this card's prior contribution with the new one. Off by default so
	// balances stay compatible with clients tuned to the additive curve.
	RebaseProfitOnUpgrade bool
}

func DefaultRules() Rules {
	return Rules{
		RefillWindow:      time.Hour,
		ReferralMilestone: 5,
	}
}

// Engine implements the economy operations over an injected Store.
// It holds no state of its own; every call is one store transaction.
type Engine struct {
	store Store
	rules Rules
	now   func() time.Time
}

func New(store Store, rules Rules) *Engine {
	if rules.RefillWindow <= 0 {
		rules.RefillWindow = time.Hour
	}
	if rules.ReferralMilestone <= 0 {
		rules.ReferralMilestone = 5
	}
	return &Engine{store: store, rules: rules, now: time.Now}
}

// WithClock replaces the engine's time source. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Rules() Rules { return e.rules }
