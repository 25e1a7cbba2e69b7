package economy

import "context"

type ClaimRequest struct {
	UserID string `json:"userId"`
	TaskID string `json:"taskId"`
}

type ClaimResult struct {
	Reward int64     `json:"reward"`
	Task   *UserTask `json:"task"`
	User   *User     `json:"user"`
}

// UserTaskState joins a claim record with its task definition.
type UserTaskState struct {
	UserTask
	Task Task `json:"task"`
}

// ClaimTask credits a task's reward exactly once. The unclaimed record
// is the precondition: a second claim finds it already flipped and is
// rejected without touching the balance.
func (e *Engine) ClaimTask(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	if req.UserID == "" || req.TaskID == "" {
		return nil, ErrInvalidInput
	}

	var res ClaimResult
	err := e.store.Atomic(ctx, func(s Store) error {
		user, err := s.FindUserByID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}

		ut, err := s.FindUserTask(ctx, user.ID, req.TaskID)
		if err != nil {
			return err
		}
		if ut == nil {
			return ErrNotFound
		}
		if ut.Claimed {
			return ErrAlreadyClaimed
		}

		task, err := s.FindTask(ctx, ut.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return ErrNotFound
		}

		coins := user.Coins + task.Reward
		updated, err := s.UpdateUser(ctx, user.ID, UserPatch{Coins: &coins})
		if err != nil {
			return err
		}
		if err := s.MarkUserTaskClaimed(ctx, ut.ID); err != nil {
			return err
		}

		ut.Claimed = true
		res = ClaimResult{Reward: task.Reward, Task: ut, User: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListUserTasks returns the user's task board. Invite tasks whose
// threshold the user's referral count has reached are materialized as
// unclaimed records on the way, so reaching a milestone makes the reward
// claimable without a separate assignment step.
func (e *Engine) ListUserTasks(ctx context.Context, userID string) ([]UserTaskState, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	var out []UserTaskState
	err := e.store.Atomic(ctx, func(s Store) error {
		user, err := s.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}

		invites, err := s.ListTasks(ctx, TaskCategoryInvite)
		if err != nil {
			return err
		}
		for _, t := range invites {
			if t.RequiredInvites <= 0 || user.ReferralCount < t.RequiredInvites {
				continue
			}
			existing, err := s.FindUserTask(ctx, user.ID, t.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				if _, err := s.CreateUserTask(ctx, user.ID, t.ID); err != nil {
					return err
				}
			}
		}

		records, err := s.ListUserTasks(ctx, user.ID)
		if err != nil {
			return err
		}
		out = make([]UserTaskState, 0, len(records))
		for _, ut := range records {
			task, err := s.FindTask(ctx, ut.TaskID)
			if err != nil {
				return err
			}
			if task == nil {
				continue
			}
			out = append(out, UserTaskState{UserTask: ut, Task: *task})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
