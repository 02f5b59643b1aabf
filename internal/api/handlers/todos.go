package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/database/models"
	"gorm.io/gorm"
)

type TodoRequest struct {
	Title      *string `json:"title,omitempty"`
	Completed  *bool   `json:"completed,omitempty"`
	Priority   *string `json:"priority,omitempty"`
	DueDate    *string `json:"due_date,omitempty"`
	Position   *int    `json:"position,omitempty"`
	TaskListID *string `json:"task_list_id,omitempty"`
}

// parseDueDate accepts RFC 3339 or a bare date. Empty clears the date.
func parseDueDate(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, true
	}
	if t, err := time.Parse(models.CheckInDateLayout, raw); err == nil {
		return &t, true
	}
	return nil, false
}

func (r TodoRequest) Validate(creating bool) map[string]string {
	errs := make(map[string]string)
	if creating && r.Title == nil {
		errs["title"] = "Title is required"
	}
	if r.Title != nil {
		if strings.TrimSpace(*r.Title) == "" {
			errs["title"] = "Title cannot be empty"
		} else if len(*r.Title) > 500 {
			errs["title"] = "Title must be at most 500 characters"
		}
	}
	if r.Priority != nil && !models.TodoPriority(*r.Priority).Valid() {
		errs["priority"] = "Priority must be one of: low, medium, high"
	}
	if r.DueDate != nil {
		if _, ok := parseDueDate(*r.DueDate); !ok {
			errs["due_date"] = "Due date must be RFC 3339 or YYYY-MM-DD"
		}
	}
	if r.Position != nil && *r.Position < 0 {
		errs["position"] = "Position cannot be negative"
	}
	return errs
}

type TodoResponse struct {
	ID         string  `json:"id"`
	BookmarkID string  `json:"bookmark_id"`
	TaskListID *string `json:"task_list_id,omitempty"`
	Title      string  `json:"title"`
	Completed  bool    `json:"completed"`
	Priority   string  `json:"priority"`
	DueDate    *string `json:"due_date,omitempty"`
	Position   int     `json:"position"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func toTodoResponse(t models.TodoItem) TodoResponse {
	return TodoResponse{
		ID:         t.ID.String(),
		BookmarkID: t.BookmarkID.String(),
		TaskListID: idString(t.TaskListID),
		Title:      t.Title,
		Completed:  t.Completed,
		Priority:   string(t.Priority),
		DueDate:    formatTimePtr(t.DueDate),
		Position:   t.Position,
		CreatedAt:  formatTime(t.CreatedAt),
		UpdatedAt:  formatTime(t.UpdatedAt),
	}
}

// taskListOn checks that id names a task list on the same bookmark.
func (h *ToolHandler) taskListOn(r *http.Request, bookmarkID, id uuid.UUID) error {
	var count int64
	if err := h.db.WithContext(r.Context()).Model(&models.TaskList{}).
		Where("id = ? AND bookmark_id = ?", id, bookmarkID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.NotFound("Task list")
	}
	return nil
}

// ListTodos handles GET /api/v1/todos/{bookmarkID}
func (h *ToolHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var listID *uuid.UUID
	if raw := q.Get("task_list_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, h.logger, apperr.Invalid("Invalid task_list_id"))
			return
		}
		listID = &id
	}

	todos, err := listChildren[models.TodoItem](h, r, "completed ASC, position ASC, created_at ASC", func(db *gorm.DB) *gorm.DB {
		if listID != nil {
			db = db.Where("task_list_id = ?", *listID)
		}
		if c := q.Get("completed"); c != "" {
			db = db.Where("completed = ?", c == "true")
		}
		return db
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]TodoResponse, len(todos))
	for i, t := range todos {
		response[i] = toTodoResponse(t)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateTodo handles POST /api/v1/todos/{bookmarkID}
func (h *ToolHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	_, bookmark, err := h.parent(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req TodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	errs := req.Validate(true)
	listID := parseOptionalID(req.TaskListID, "task_list_id", errs)
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if listID != nil {
		if err := h.taskListOn(r, bookmark.ID, *listID); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	todo := models.TodoItem{
		BookmarkID: bookmark.ID,
		TaskListID: listID,
		Title:      strings.TrimSpace(*req.Title),
		Priority:   models.PriorityMedium,
	}
	if req.Priority != nil {
		todo.Priority = models.TodoPriority(*req.Priority)
	}
	if req.Completed != nil {
		todo.Completed = *req.Completed
	}
	if req.DueDate != nil {
		todo.DueDate, _ = parseDueDate(*req.DueDate)
	}
	if req.Position != nil {
		todo.Position = *req.Position
	}

	if err := h.db.WithContext(r.Context()).Create(&todo).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTodoResponse(todo))
}

// UpdateTodo handles PATCH /api/v1/todos/{bookmarkID}/{id}
func (h *ToolHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	bookmark, todo, err := child[models.TodoItem](h, r, "Todo")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req TodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	errs := req.Validate(false)
	listID := parseOptionalID(req.TaskListID, "task_list_id", errs)
	if len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	if listID != nil {
		if err := h.taskListOn(r, bookmark.ID, *listID); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Completed != nil {
		updates["completed"] = *req.Completed
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.DueDate != nil {
		due, _ := parseDueDate(*req.DueDate)
		updates["due_date"] = due
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if req.TaskListID != nil {
		updates["task_list_id"] = listID
	}

	if err := h.saveChild(r, todo, updates); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toTodoResponse(*todo))
}

// DeleteTodo handles DELETE /api/v1/todos/{bookmarkID}/{id}
func (h *ToolHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	deleteChild[models.TodoItem](h, w, r, "Todo")
}

type TaskListRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (r TaskListRequest) Validate(creating bool) map[string]string {
	errs := make(map[string]string)
	if creating && r.Name == nil {
		errs["name"] = "Name is required"
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errs["name"] = "Name cannot be empty"
	}
	return errs
}

type TaskListResponse struct {
	ID          string         `json:"id"`
	BookmarkID  string         `json:"bookmark_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Items       []TodoResponse `json:"items"`
	CreatedAt   string         `json:"created_at"`
}

func toTaskListResponse(l models.TaskList) TaskListResponse {
	resp := TaskListResponse{
		ID:          l.ID.String(),
		BookmarkID:  l.BookmarkID.String(),
		Name:        l.Name,
		Description: l.Description,
		Items:       make([]TodoResponse, len(l.Items)),
		CreatedAt:   formatTime(l.CreatedAt),
	}
	for i, item := range l.Items {
		resp.Items[i] = toTodoResponse(item)
	}
	return resp
}

// ListTaskLists handles GET /api/v1/tasklists/{bookmarkID}
func (h *ToolHandler) ListTaskLists(w http.ResponseWriter, r *http.Request) {
	lists, err := listChildren[models.TaskList](h, r, "created_at ASC", func(db *gorm.DB) *gorm.DB {
		return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		})
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]TaskListResponse, len(lists))
	for i, l := range lists {
		response[i] = toTaskListResponse(l)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateTaskList handles POST /api/v1/tasklists/{bookmarkID}
func (h *ToolHandler) CreateTaskList(w http.ResponseWriter, r *http.Request) {
	_, bookmark, err := h.parent(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req TaskListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	list := models.TaskList{BookmarkID: bookmark.ID, Name: strings.TrimSpace(*req.Name)}
	if req.Description != nil {
		list.Description = *req.Description
	}

	if err := h.db.WithContext(r.Context()).Create(&list).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskListResponse(list))
}

// UpdateTaskList handles PATCH /api/v1/tasklists/{bookmarkID}/{id}
func (h *ToolHandler) UpdateTaskList(w http.ResponseWriter, r *http.Request) {
	_, list, err := child[models.TaskList](h, r, "Task list")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req TaskListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if err := h.saveChild(r, list, updates); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.db.WithContext(r.Context()).
		Where("task_list_id = ?", list.ID).
		Order("position ASC, created_at ASC").
		Find(&list.Items).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskListResponse(*list))
}

// DeleteTaskList handles DELETE /api/v1/tasklists/{bookmarkID}/{id}. The
// list's items are deleted with it.
func (h *ToolHandler) DeleteTaskList(w http.ResponseWriter, r *http.Request) {
	_, list, err := child[models.TaskList](h, r, "Task list")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_list_id = ?", list.ID).Delete(&models.TodoItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(list).Error
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Task list deleted"})
}
