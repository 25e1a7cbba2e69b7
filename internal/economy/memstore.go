package economy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local tooling.
// Atomic takes the store lock for the whole callback, which gives the
// same "one operation at a time per store" guarantee the SQL backend
// gets from row locks.
type MemoryStore struct {
	mu sync.Mutex

	users     map[string]*User
	cards     map[string]*Card
	purchases map[string]*CardPurchase
	tasks     map[string]*Task
	userTasks map[string]*UserTask
	referrals []Referral
	refSeq    int64

	inTx bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     map[string]*User{},
		cards:     map[string]*Card{},
		purchases: map[string]*CardPurchase{},
		tasks:     map[string]*Task{},
		userTasks: map[string]*UserTask{},
	}
}

func (m *MemoryStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &MemoryStore{
		users:     m.users,
		cards:     m.cards,
		purchases: m.purchases,
		tasks:     m.tasks,
		userTasks: m.userTasks,
		referrals: m.referrals,
		refSeq:    m.refSeq,
		inTx:      true,
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.referrals = tx.referrals
	m.refSeq = tx.refSeq
	return nil
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) FindUserByTelegramID(ctx context.Context, telegramID string) (*User, error) {
	defer m.lock()()
	for _, u := range m.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	defer m.lock()()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) UpsertUser(ctx context.Context, nu NewUser) (*User, bool, error) {
	defer m.lock()()
	for _, u := range m.users {
		if u.TelegramID == nu.TelegramID {
			u.Username = nu.Username
			cp := *u
			return &cp, false, nil
		}
	}
	now := time.Now()
	u := &User{
		ID:             uuid.NewString(),
		TelegramID:     nu.TelegramID,
		Username:       nu.Username,
		Coins:          nu.Coins,
		Taps:           float64(nu.MaxTaps),
		MaxTaps:        nu.MaxTaps,
		LastRefillTime: now,
		ReferredBy:     nu.ReferredBy,
		CreatedAt:      now,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, true, nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error) {
	defer m.lock()()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("memstore: user %s: %w", id, ErrNotFound)
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Coins != nil {
		u.Coins = *patch.Coins
	}
	if patch.ProfitPerHour != nil {
		u.ProfitPerHour = *patch.ProfitPerHour
	}
	if patch.Taps != nil {
		u.Taps = *patch.Taps
	}
	if patch.MaxTaps != nil {
		u.MaxTaps = *patch.MaxTaps
	}
	if patch.LastRefillTime != nil {
		u.LastRefillTime = *patch.LastRefillTime
	}
	if patch.FreeSpins != nil {
		u.FreeSpins = *patch.FreeSpins
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	defer m.lock()()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) IncrementReferralCount(ctx context.Context, id string) (int64, error) {
	defer m.lock()()
	u, ok := m.users[id]
	if !ok {
		return 0, fmt.Errorf("memstore: user %s: %w", id, ErrNotFound)
	}
	u.ReferralCount++
	return u.ReferralCount, nil
}

func (m *MemoryStore) IncrementFreeSpins(ctx context.Context, id string, delta int64) error {
	defer m.lock()()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("memstore: user %s: %w", id, ErrNotFound)
	}
	u.FreeSpins += delta
	return nil
}

func (m *MemoryStore) CreateCard(ctx context.Context, c Card) (*Card, error) {
	defer m.lock()()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := c
	m.cards[c.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) UpdateCard(ctx context.Context, id string, patch CardPatch) (*Card, error) {
	defer m.lock()()
	c, ok := m.cards[id]
	if !ok {
		return nil, nil
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Category != nil {
		c.Category = *patch.Category
	}
	if patch.BaseProfit != nil {
		c.BaseProfit = *patch.BaseProfit
	}
	if patch.ProfitIncrease != nil {
		c.ProfitIncrease = *patch.ProfitIncrease
	}
	if patch.MaxLevel != nil {
		c.MaxLevel = *patch.MaxLevel
	}
	if patch.BaseCost != nil {
		c.BaseCost = *patch.BaseCost
	}
	if patch.CostIncrease != nil {
		c.CostIncrease = *patch.CostIncrease
	}
	if patch.Requires != nil {
		c.Requires = *patch.Requires
	}
	if patch.ImagePath != nil {
		c.ImagePath = *patch.ImagePath
	}
	if patch.CoinIcon != nil {
		c.CoinIcon = *patch.CoinIcon
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) DeleteCard(ctx context.Context, id string) error {
	defer m.lock()()
	delete(m.cards, id)
	return nil
}

func (m *MemoryStore) FindCard(ctx context.Context, id string) (*Card, error) {
	defer m.lock()()
	c, ok := m.cards[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListCards(ctx context.Context, category string) ([]Card, error) {
	defer m.lock()()
	out := make([]Card, 0, len(m.cards))
	for _, c := range m.cards {
		if category != "" && c.Category != category {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) FindCardPurchase(ctx context.Context, userID, cardID string) (*CardPurchase, error) {
	defer m.lock()()
	for _, p := range m.purchases {
		if p.UserID == userID && p.CardID == cardID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListCardPurchases(ctx context.Context, userID string) ([]CardPurchase, error) {
	defer m.lock()()
	var out []CardPurchase
	for _, p := range m.purchases {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateCardPurchase(ctx context.Context, userID, cardID string, level int) (*CardPurchase, error) {
	defer m.lock()()
	for _, p := range m.purchases {
		if p.UserID == userID && p.CardID == cardID {
			return nil, fmt.Errorf("memstore: purchase exists: %w", ErrAlreadyOwned)
		}
	}
	p := &CardPurchase{ID: uuid.NewString(), UserID: userID, CardID: cardID, Level: level}
	m.purchases[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) UpdateCardPurchaseLevel(ctx context.Context, id string, level int) error {
	defer m.lock()()
	p, ok := m.purchases[id]
	if !ok {
		return fmt.Errorf("memstore: purchase %s: %w", id, ErrNotFound)
	}
	p.Level = level
	return nil
}

func (m *MemoryStore) CreateTask(ctx context.Context, t Task) (*Task, error) {
	defer m.lock()()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := t
	m.tasks[t.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) FindTask(ctx context.Context, id string) (*Task, error) {
	defer m.lock()()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) ListTasks(ctx context.Context, category string) ([]Task, error) {
	defer m.lock()()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out, nil
}

func (m *MemoryStore) FindUserTask(ctx context.Context, userID, taskID string) (*UserTask, error) {
	defer m.lock()()
	for _, ut := range m.userTasks {
		if ut.UserID == userID && ut.TaskID == taskID {
			cp := *ut
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) CreateUserTask(ctx context.Context, userID, taskID string) (*UserTask, error) {
	defer m.lock()()
	ut := &UserTask{ID: uuid.NewString(), UserID: userID, TaskID: taskID}
	m.userTasks[ut.ID] = ut
	cp := *ut
	return &cp, nil
}

func (m *MemoryStore) MarkUserTaskClaimed(ctx context.Context, id string) error {
	defer m.lock()()
	ut, ok := m.userTasks[id]
	if !ok {
		return fmt.Errorf("memstore: user task %s: %w", id, ErrNotFound)
	}
	ut.Claimed = true
	return nil
}

func (m *MemoryStore) ListUserTasks(ctx context.Context, userID string) ([]UserTask, error) {
	defer m.lock()()
	var out []UserTask
	for _, ut := range m.userTasks {
		if ut.UserID == userID {
			out = append(out, *ut)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateReferral(ctx context.Context, referrerID, referredID string) error {
	defer m.lock()()
	for _, r := range m.referrals {
		if r.ReferredID == referredID {
			return fmt.Errorf("memstore: referral exists for %s", referredID)
		}
	}
	m.refSeq++
	m.referrals = append(m.referrals, Referral{
		ID:         m.refSeq,
		ReferrerID: referrerID,
		ReferredID: referredID,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (m *MemoryStore) ListReferralsByUser(ctx context.Context, referrerID string) ([]Referral, error) {
	defer m.lock()()
	var out []Referral
	for _, r := range m.referrals {
		if r.ReferrerID == referrerID {
			out = append(out, r)
		}
	}
	return out, nil
}
