package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"coinrush/internal/economy"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(normalizeDatabaseURL(databaseURL))
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 5
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// normalizeDatabaseURL accepts the connection strings hosting providers
// hand out, including `psql 'postgresql://...'` examples and URLs with
// params pgx treats as runtime settings.
func normalizeDatabaseURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if i := strings.Index(s, "postgresql://"); i >= 0 {
		s = s[i:]
	} else if i := strings.Index(s, "postgres://"); i >= 0 {
		s = s[i:]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		s = strings.Trim(s[:i], `"'`)
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	q := u.Query()
	q.Del("channel_binding")
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *DB) Migrate(ctx context.Context) error {
	sql := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  telegram_id TEXT NOT NULL UNIQUE,
  username TEXT,
  coins BIGINT NOT NULL DEFAULT 0,
  profit_per_hour BIGINT NOT NULL DEFAULT 0,
  taps DOUBLE PRECISION NOT NULL DEFAULT 0,
  max_taps BIGINT NOT NULL DEFAULT 0,
  last_refill_time TIMESTAMPTZ NOT NULL DEFAULT now(),
  referral_count BIGINT NOT NULL DEFAULT 0,
  free_spins BIGINT NOT NULL DEFAULT 0,
  referred_by TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cards (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  base_profit BIGINT NOT NULL,
  profit_increase DOUBLE PRECISION NOT NULL,
  max_level INT NOT NULL,
  base_cost BIGINT NOT NULL,
  cost_increase DOUBLE PRECISION NOT NULL,
  requires TEXT NOT NULL DEFAULT '',
  image_path TEXT NOT NULL DEFAULT '',
  coin_icon TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS cards_category_idx ON cards(category);

CREATE TABLE IF NOT EXISTS card_purchases (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  card_id TEXT NOT NULL REFERENCES cards(id),
  level INT NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (user_id, card_id)
);
CREATE INDEX IF NOT EXISTS card_purchases_user_idx ON card_purchases(user_id);

CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  category TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  level_name TEXT NOT NULL DEFAULT '',
  reward BIGINT NOT NULL DEFAULT 0,
  required_invites BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS tasks_category_idx ON tasks(category);

CREATE TABLE IF NOT EXISTS user_tasks (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  task_id TEXT NOT NULL REFERENCES tasks(id),
  claimed BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (user_id, task_id)
);
CREATE INDEX IF NOT EXISTS user_tasks_user_idx ON user_tasks(user_id);

CREATE TABLE IF NOT EXISTS referrals (
  id BIGSERIAL PRIMARY KEY,
  referrer_id TEXT NOT NULL,
  referred_id TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS referrals_referrer_idx ON referrals(referrer_id);
`
	_, err := d.Pool.Exec(ctx, sql)
	return err
}

// Store returns the economy.Store view over this database.
func (d *DB) Store() economy.Store {
	return &pgStore{q: d.Pool, pool: d.Pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgStore implements economy.Store. Inside Atomic the store is bound to
// an open transaction and precondition reads of mutable rows append
// FOR UPDATE, so concurrent operations on the same rows serialize.
type pgStore struct {
	q    querier
	pool *pgxpool.Pool
	inTx bool
}

func (s *pgStore) Atomic(ctx context.Context, fn func(economy.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(&pgStore{q: tx, pool: s.pool, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *pgStore) forUpdate() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}

const userCols = `id, telegram_id, username, coins, profit_per_hour, taps, max_taps, last_refill_time, referral_count, free_spins, referred_by, created_at`

func scanUser(row pgx.Row) (*economy.User, error) {
	var u economy.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.Coins, &u.ProfitPerHour, &u.Taps,
		&u.MaxTaps, &u.LastRefillTime, &u.ReferralCount, &u.FreeSpins, &u.ReferredBy, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *pgStore) FindUserByTelegramID(ctx context.Context, telegramID string) (*economy.User, error) {
	return scanUser(s.q.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE telegram_id=$1`+s.forUpdate(), telegramID))
}

func (s *pgStore) FindUserByID(ctx context.Context, id string) (*economy.User, error) {
	return scanUser(s.q.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id=$1`+s.forUpdate(), id))
}

func (s *pgStore) UpsertUser(ctx context.Context, nu economy.NewUser) (*economy.User, bool, error) {
	// xmax=0 distinguishes a fresh insert from a conflict update.
	var created bool
	row := s.q.QueryRow(ctx, `
INSERT INTO users (id, telegram_id, username, coins, taps, max_taps, referred_by)
VALUES (gen_random_uuid()::text, $1, $2, $3, $4, $4, $5)
ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username
RETURNING `+userCols+`, (xmax = 0)
`, nu.TelegramID, nu.Username, nu.Coins, nu.MaxTaps, nu.ReferredBy)

	var u economy.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.Coins, &u.ProfitPerHour, &u.Taps,
		&u.MaxTaps, &u.LastRefillTime, &u.ReferralCount, &u.FreeSpins, &u.ReferredBy, &u.CreatedAt, &created)
	if err != nil {
		return nil, false, err
	}
	return &u, created, nil
}

func (s *pgStore) UpdateUser(ctx context.Context, id string, p economy.UserPatch) (*economy.User, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Username != nil {
		add("username", *p.Username)
	}
	if p.Coins != nil {
		add("coins", *p.Coins)
	}
	if p.ProfitPerHour != nil {
		add("profit_per_hour", *p.ProfitPerHour)
	}
	if p.Taps != nil {
		add("taps", *p.Taps)
	}
	if p.MaxTaps != nil {
		add("max_taps", *p.MaxTaps)
	}
	if p.LastRefillTime != nil {
		add("last_refill_time", *p.LastRefillTime)
	}
	if p.FreeSpins != nil {
		add("free_spins", *p.FreeSpins)
	}
	if len(sets) == 0 {
		return s.FindUserByID(ctx, id)
	}
	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING `+userCols,
		strings.Join(sets, ", "), len(args))
	u, err := scanUser(s.q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("db: update user %s: %w", id, economy.ErrNotFound)
	}
	return u, nil
}

func (s *pgStore) ListUsers(ctx context.Context) ([]economy.User, error) {
	rows, err := s.q.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.User
	for rows.Next() {
		var u economy.User
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.Username, &u.Coins, &u.ProfitPerHour, &u.Taps,
			&u.MaxTaps, &u.LastRefillTime, &u.ReferralCount, &u.FreeSpins, &u.ReferredBy, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *pgStore) IncrementReferralCount(ctx context.Context, id string) (int64, error) {
	var count int64
	err := s.q.QueryRow(ctx,
		`UPDATE users SET referral_count = referral_count + 1 WHERE id=$1 RETURNING referral_count`,
		id).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("db: increment referral count %s: %w", id, economy.ErrNotFound)
	}
	return count, err
}

func (s *pgStore) IncrementFreeSpins(ctx context.Context, id string, delta int64) error {
	tag, err := s.q.Exec(ctx, `UPDATE users SET free_spins = free_spins + $1 WHERE id=$2`, delta, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("db: increment free spins %s: %w", id, economy.ErrNotFound)
	}
	return nil
}

const cardCols = `id, name, category, base_profit, profit_increase, max_level, base_cost, cost_increase, requires, image_path, coin_icon`

func scanCard(row pgx.Row) (*economy.Card, error) {
	var c economy.Card
	err := row.Scan(&c.ID, &c.Name, &c.Category, &c.BaseProfit, &c.ProfitIncrease, &c.MaxLevel,
		&c.BaseCost, &c.CostIncrease, &c.Requires, &c.ImagePath, &c.CoinIcon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *pgStore) CreateCard(ctx context.Context, c economy.Card) (*economy.Card, error) {
	return scanCard(s.q.QueryRow(ctx, `
INSERT INTO cards (id, name, category, base_profit, profit_increase, max_level, base_cost, cost_increase, requires, image_path, coin_icon)
VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING `+cardCols,
		c.ID, c.Name, c.Category, c.BaseProfit, c.ProfitIncrease, c.MaxLevel, c.BaseCost, c.CostIncrease,
		c.Requires, c.ImagePath, c.CoinIcon))
}

func (s *pgStore) UpdateCard(ctx context.Context, id string, p economy.CardPatch) (*economy.Card, error) {
	sets := make([]string, 0, 10)
	args := make([]any, 0, 11)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Category != nil {
		add("category", *p.Category)
	}
	if p.BaseProfit != nil {
		add("base_profit", *p.BaseProfit)
	}
	if p.ProfitIncrease != nil {
		add("profit_increase", *p.ProfitIncrease)
	}
	if p.MaxLevel != nil {
		add("max_level", *p.MaxLevel)
	}
	if p.BaseCost != nil {
		add("base_cost", *p.BaseCost)
	}
	if p.CostIncrease != nil {
		add("cost_increase", *p.CostIncrease)
	}
	if p.Requires != nil {
		add("requires", *p.Requires)
	}
	if p.ImagePath != nil {
		add("image_path", *p.ImagePath)
	}
	if p.CoinIcon != nil {
		add("coin_icon", *p.CoinIcon)
	}
	if len(sets) == 0 {
		return s.FindCard(ctx, id)
	}
	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE cards SET %s WHERE id = $%d RETURNING `+cardCols,
		strings.Join(sets, ", "), len(args))
	return scanCard(s.q.QueryRow(ctx, sql, args...))
}

func (s *pgStore) DeleteCard(ctx context.Context, id string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM cards WHERE id=$1`, id)
	return err
}

func (s *pgStore) FindCard(ctx context.Context, id string) (*economy.Card, error) {
	return scanCard(s.q.QueryRow(ctx, `SELECT `+cardCols+` FROM cards WHERE id=$1`, id))
}

func (s *pgStore) ListCards(ctx context.Context, category string) ([]economy.Card, error) {
	sql := `SELECT ` + cardCols + ` FROM cards`
	args := []any{}
	if category != "" {
		sql += ` WHERE category=$1`
		args = append(args, category)
	}
	sql += ` ORDER BY name`
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.Card
	for rows.Next() {
		var c economy.Card
		if err := rows.Scan(&c.ID, &c.Name, &c.Category, &c.BaseProfit, &c.ProfitIncrease, &c.MaxLevel,
			&c.BaseCost, &c.CostIncrease, &c.Requires, &c.ImagePath, &c.CoinIcon); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgStore) FindCardPurchase(ctx context.Context, userID, cardID string) (*economy.CardPurchase, error) {
	var p economy.CardPurchase
	err := s.q.QueryRow(ctx,
		`SELECT id, user_id, card_id, level FROM card_purchases WHERE user_id=$1 AND card_id=$2`+s.forUpdate(),
		userID, cardID).Scan(&p.ID, &p.UserID, &p.CardID, &p.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) ListCardPurchases(ctx context.Context, userID string) ([]economy.CardPurchase, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, user_id, card_id, level FROM card_purchases WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.CardPurchase
	for rows.Next() {
		var p economy.CardPurchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.CardID, &p.Level); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgStore) CreateCardPurchase(ctx context.Context, userID, cardID string, level int) (*economy.CardPurchase, error) {
	var p economy.CardPurchase
	err := s.q.QueryRow(ctx, `
INSERT INTO card_purchases (id, user_id, card_id, level)
VALUES (gen_random_uuid()::text, $1, $2, $3)
RETURNING id, user_id, card_id, level
`, userID, cardID, level).Scan(&p.ID, &p.UserID, &p.CardID, &p.Level)
	if err != nil {
		return nil, mapPurchaseConflict(err)
	}
	return &p, nil
}

// mapPurchaseConflict turns the UNIQUE (user_id, card_id) violation into
// ErrAlreadyOwned. Two purchases of the same card racing past the
// precondition read both see "unowned"; the loser hits the constraint
// and must surface as a conflict, not an internal error.
func mapPurchaseConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("db: purchase exists: %w", economy.ErrAlreadyOwned)
	}
	return err
}

func (s *pgStore) UpdateCardPurchaseLevel(ctx context.Context, id string, level int) error {
	tag, err := s.q.Exec(ctx, `UPDATE card_purchases SET level=$1 WHERE id=$2`, level, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("db: update purchase %s: %w", id, economy.ErrNotFound)
	}
	return nil
}

const taskCols = `id, category, description, level_name, reward, required_invites`

func scanTask(row pgx.Row) (*economy.Task, error) {
	var t economy.Task
	err := row.Scan(&t.ID, &t.Category, &t.Description, &t.LevelName, &t.Reward, &t.RequiredInvites)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *pgStore) CreateTask(ctx context.Context, t economy.Task) (*economy.Task, error) {
	return scanTask(s.q.QueryRow(ctx, `
INSERT INTO tasks (id, category, description, level_name, reward, required_invites)
VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6)
RETURNING `+taskCols,
		t.ID, t.Category, t.Description, t.LevelName, t.Reward, t.RequiredInvites))
}

func (s *pgStore) FindTask(ctx context.Context, id string) (*economy.Task, error) {
	return scanTask(s.q.QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=$1`, id))
}

func (s *pgStore) ListTasks(ctx context.Context, category string) ([]economy.Task, error) {
	sql := `SELECT ` + taskCols + ` FROM tasks`
	args := []any{}
	if category != "" {
		sql += ` WHERE category=$1`
		args = append(args, category)
	}
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.Task
	for rows.Next() {
		var t economy.Task
		if err := rows.Scan(&t.ID, &t.Category, &t.Description, &t.LevelName, &t.Reward, &t.RequiredInvites); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *pgStore) FindUserTask(ctx context.Context, userID, taskID string) (*economy.UserTask, error) {
	var ut economy.UserTask
	err := s.q.QueryRow(ctx,
		`SELECT id, user_id, task_id, claimed FROM user_tasks WHERE user_id=$1 AND task_id=$2`+s.forUpdate(),
		userID, taskID).Scan(&ut.ID, &ut.UserID, &ut.TaskID, &ut.Claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ut, nil
}

func (s *pgStore) CreateUserTask(ctx context.Context, userID, taskID string) (*economy.UserTask, error) {
	var ut economy.UserTask
	err := s.q.QueryRow(ctx, `
INSERT INTO user_tasks (id, user_id, task_id, claimed)
VALUES (gen_random_uuid()::text, $1, $2, FALSE)
ON CONFLICT (user_id, task_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id, user_id, task_id, claimed
`, userID, taskID).Scan(&ut.ID, &ut.UserID, &ut.TaskID, &ut.Claimed)
	if err != nil {
		return nil, err
	}
	return &ut, nil
}

func (s *pgStore) MarkUserTaskClaimed(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `UPDATE user_tasks SET claimed=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("db: claim user task %s: %w", id, economy.ErrNotFound)
	}
	return nil
}

func (s *pgStore) ListUserTasks(ctx context.Context, userID string) ([]economy.UserTask, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, user_id, task_id, claimed FROM user_tasks WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.UserTask
	for rows.Next() {
		var ut economy.UserTask
		if err := rows.Scan(&ut.ID, &ut.UserID, &ut.TaskID, &ut.Claimed); err != nil {
			return nil, err
		}
		out = append(out, ut)
	}
	return out, rows.Err()
}

func (s *pgStore) CreateReferral(ctx context.Context, referrerID, referredID string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO referrals (referrer_id, referred_id) VALUES ($1, $2)`, referrerID, referredID)
	return err
}

func (s *pgStore) ListReferralsByUser(ctx context.Context, referrerID string) ([]economy.Referral, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, referrer_id, referred_id, created_at FROM referrals WHERE referrer_id=$1 ORDER BY id`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.Referral
	for rows.Next() {
		var r economy.Referral
		if err := rows.Scan(&r.ID, &r.ReferrerID, &r.ReferredID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
