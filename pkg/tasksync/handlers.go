package tasksync

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/tasksync/tasksync/pkg/client"
	"github.com/tasksync/tasksync/pkg/models"
)

// Task handlers implement the mutation API. Each mutating handler commits to
// the store first and broadcasts only after the commit succeeds; broadcast
// delivery is best-effort and never changes the HTTP response.

func (a *App) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.store.ListTasks(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	respondJSON(w, http.StatusOK, tasks)
}

func (a *App) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req client.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	task := &models.Task{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		IsComplete:  false,
		CreatedAt:   time.Now().UTC(),
	}

	if err := a.store.CreateTask(r.Context(), task); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(models.NewChangeNotification(task, models.ActionCreated))
	a.logMutation(r, "task created", task)

	respondJSON(w, http.StatusCreated, task)
}

func (a *App) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParseTaskID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req client.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.ID != id {
		respondError(w, http.StatusBadRequest, "Task ID in URL must match ID in body")
		return
	}

	ctx := r.Context()
	task, err := a.store.GetTask(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}

	task.Title = req.Title
	task.Description = req.Description
	task.IsComplete = req.IsComplete
	task.DueDate = req.DueDate

	if err := a.store.UpdateTask(ctx, task); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(models.NewChangeNotification(task, models.ActionUpdated))
	a.logMutation(r, "task updated", task)

	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParseTaskID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	ctx := r.Context()
	task, err := a.store.GetTask(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}

	if err := a.store.DeleteTask(ctx, id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(models.NewChangeNotification(task, models.ActionDeleted))
	a.logMutation(r, "task deleted", task)

	respondJSON(w, http.StatusNoContent, nil)
}

// handleWebSocket authenticates the realtime handshake and hands the request
// to the hub. The browser websocket API cannot set an Authorization header,
// so the credential arrives as an access_token query parameter; a bearer
// header is accepted too for non-browser clients. An invalid or expired
// credential refuses the upgrade and never enters the live set.
func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Missing credential")
		return
	}

	claims, err := a.issuer.Validate(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired credential")
		return
	}

	if err := a.hub.HandleUpgrade(w, r, claims.UserID); err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// logMutation records a committed mutation with the acting user, when known.
func (a *App) logMutation(r *http.Request, msg string, task *models.Task) {
	if claims := claimsFromContext(r.Context()); claims != nil {
		a.logger.Debug(msg, "task_id", task.ID.String(), "user_id", claims.UserID.String())
		return
	}
	a.logger.Debug(msg, "task_id", task.ID.String())
}

// respondJSON sends a JSON response with the given status. A nil payload
// sends an empty body.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

// respondError sends {"error": message} with the given status.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
