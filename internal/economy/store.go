package economy

import "context"

// Store is the persistence boundary of the economy engine. Find methods
// return (nil, nil) when the record does not exist; any other error is a
// storage failure and surfaces to callers as internal.
//
// Atomic runs fn against a transactional view of the store. Inside a
// transaction, user and ownership reads take row locks, so concurrent
// operations on the same user serialize instead of double-spending.
type Store interface {
	Atomic(ctx context.Context, fn func(Store) error) error

	FindUserByTelegramID(ctx context.Context, telegramID string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	// UpsertUser creates the user on first registration or refreshes the
	// username on a repeat login. The bool reports whether a row was created.
	UpsertUser(ctx context.Context, nu NewUser) (*User, bool, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// IncrementReferralCount is a true atomic increment returning the
	// post-increment value. Concurrent signups referring the same user
	// must not lose updates.
	IncrementReferralCount(ctx context.Context, id string) (int64, error)
	IncrementFreeSpins(ctx context.Context, id string, delta int64) error

	CreateCard(ctx context.Context, c Card) (*Card, error)
	UpdateCard(ctx context.Context, id string, patch CardPatch) (*Card, error)
	DeleteCard(ctx context.Context, id string) error
	FindCard(ctx context.Context, id string) (*Card, error)
	// ListCards with an empty category returns the whole catalog.
	ListCards(ctx context.Context, category string) ([]Card, error)

	FindCardPurchase(ctx context.Context, userID, cardID string) (*CardPurchase, error)
	ListCardPurchases(ctx context.Context, userID string) ([]CardPurchase, error)
	CreateCardPurchase(ctx context.Context, userID, cardID string, level int) (*CardPurchase, error)
	UpdateCardPurchaseLevel(ctx context.Context, id string, level int) error

	CreateTask(ctx context.Context, t Task) (*Task, error)
	FindTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, category string) ([]Task, error)
	FindUserTask(ctx context.Context, userID, taskID string) (*UserTask, error)
	CreateUserTask(ctx context.Context, userID, taskID string) (*UserTask, error)
	MarkUserTaskClaimed(ctx context.Context, id string) error
	ListUserTasks(ctx context.Context, userID string) ([]UserTask, error)

	CreateReferral(ctx context.Context, referrerID, referredID string) error
	ListReferralsByUser(ctx context.Context, referrerID string) ([]Referral, error)
}
