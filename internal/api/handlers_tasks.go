package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"coinrush/internal/economy"
)

func validateTask(t economy.Task) error {
	category := strings.ToUpper(t.Category)
	if category != economy.TaskCategoryInvite && category != economy.TaskCategoryChallenge {
		return badRequest("category must be INVITE or CHALLENGE")
	}
	if t.Reward < 0 {
		return badRequest("reward must be non-negative")
	}
	return nil
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task economy.Task
	if err := decodeJSON(r, &task); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := validateTask(task); err != nil {
		s.respondError(w, r, err)
		return
	}
	task.Category = strings.ToUpper(task.Category)

	created, err := s.store.CreateTask(r.Context(), task)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "task created successfully",
		"task":    created,
	})
}

type taskBatchRequest struct {
	Tasks []economy.Task `json:"tasks"`
}

func (s *Server) handleCreateTaskBatch(w http.ResponseWriter, r *http.Request) {
	var req taskBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Tasks) == 0 {
		s.respondError(w, r, badRequest("no tasks provided"))
		return
	}
	for _, t := range req.Tasks {
		if err := validateTask(t); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	created := make([]economy.Task, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		t.Category = strings.ToUpper(t.Category)
		out, err := s.store.CreateTask(r.Context(), t)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		created = append(created, *out)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "tasks created successfully",
		"tasks":   created,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	category := strings.ToUpper(r.URL.Query().Get("category"))
	tasks, err := s.store.ListTasks(r.Context(), category)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

type claimTaskRequest struct {
	UserID string `json:"userId"`
	TaskID string `json:"taskId"`
}

func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	var req claimTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	user, err := s.resolveUser(r, req.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.engine.ClaimTask(r.Context(), economy.ClaimRequest{UserID: user.ID, TaskID: req.TaskID})
	s.observe("claim", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "reward claimed successfully",
		"reward":  res.Reward,
		"task":    res.Task,
		"user":    res.User,
	})
}

func (s *Server) handleUserTasks(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r, chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	tasks, err := s.engine.ListUserTasks(r.Context(), user.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userTasks": tasks})
}
