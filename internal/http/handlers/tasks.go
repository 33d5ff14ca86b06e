package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/domain"
	"github.com/Raivel16/gestor-tareas/internal/service"

	"github.com/gin-gonic/gin"
)

type taskRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	DueDate     string `json:"due_date" form:"due_date"`
	Priority    string `json:"priority" form:"priority"`
	Tag         string `json:"tag" form:"tag"`
	Column      string `json:"column" form:"column"`
	KeepImage   *bool  `json:"keep_image" form:"keep_image"`
}

type moveRequest struct {
	Column string `json:"column"`
}

type reorderRequest struct {
	Column string  `json:"column"`
	Order  []int64 `json:"order"`
}

type taskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     *string   `json:"due_date"`
	Priority    string    `json:"priority"`
	Tag         string    `json:"tag"`
	Column      string    `json:"column"`
	Position    int       `json:"position"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type suggestionResponse struct {
	Order       []int64 `json:"order"`
	Explanation string  `json:"explanation"`
	Count       int     `json:"count"`
	Fallback    bool    `json:"fallback"`
}

func (h *Handler) toTaskResponse(t *domain.Task) taskResponse {
	res := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Tag:         t.Tag,
		Column:      string(t.Column),
		Position:    t.Position,
		ImageURL:    h.Tasks.ImageURL(t.ImageRef),
		CreatedAt:   t.CreatedAt,
	}
	if t.DueDate != nil {
		d := t.DueDate.Format(domain.DateLayout)
		res.DueDate = &d
	}
	return res
}

func (h *Handler) ListTasks(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	tasks, err := h.Tasks.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]taskResponse, len(tasks))
	for i := range tasks {
		out[i] = h.toTaskResponse(&tasks[i])
	}
	ok(c, http.StatusOK, "", out)
}

func (h *Handler) CreateTask(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, in, img, err := h.bindTask(c)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := h.Tasks.Create(c.Request.Context(), userID, in, domain.ParseColumn(req.Column), img)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "task created", h.toTaskResponse(task))
}

func (h *Handler) UpdateTask(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := taskID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	req, in, img, err := h.bindTask(c)
	if err != nil {
		respondError(c, err)
		return
	}
	keepImage := req.KeepImage == nil || *req.KeepImage

	task, err := h.Tasks.Update(c.Request.Context(), userID, id, in, img, keepImage)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "task updated", h.toTaskResponse(task))
}

func (h *Handler) DeleteTask(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := taskID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.Tasks.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "task deleted", nil)
}

func (h *Handler) MoveTask(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := taskID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	position, err := h.Tasks.Move(c.Request.Context(), userID, id, req.Column)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "task moved", gin.H{"id": id, "column": req.Column, "position": position})
}

func (h *Handler) ReorderTasks(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Tasks.Reorder(c.Request.Context(), userID, req.Column, req.Order); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "order saved", nil)
}

// SuggestOrder proposes an order for the todo column without applying it.
func (h *Handler) SuggestOrder(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := h.Suggestions.SuggestForOwner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, res.Explanation, suggestionResponse{
		Order:       res.Order,
		Explanation: res.Explanation,
		Count:       len(res.Order),
		Fallback:    res.Fallback,
	})
}

// bindTask reads a JSON or multipart body. The multipart field "image"
// carries the optional upload.
func (h *Handler) bindTask(c *gin.Context) (taskRequest, domain.TaskInput, *service.ImageUpload, error) {
	var req taskRequest
	if err := c.ShouldBind(&req); err != nil {
		return req, domain.TaskInput{}, nil, &service.ValidationError{Message: "invalid request body"}
	}

	due, err := domain.ParseDate(req.DueDate)
	if err != nil {
		return req, domain.TaskInput{}, nil, &service.ValidationError{Message: "due date must be YYYY-MM-DD"}
	}
	in := domain.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     due,
		Priority:    domain.ParsePriority(req.Priority),
		Tag:         req.Tag,
	}

	img, err := h.readImage(c)
	if err != nil {
		return req, in, nil, err
	}
	return req, in, img, nil
}

func (h *Handler) readImage(c *gin.Context) (*service.ImageUpload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return nil, nil
	}
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, &service.ValidationError{Message: "could not read image"}
	}
	if fh.Size == 0 && fh.Filename == "" {
		return nil, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 5 * 1024 * 1024
	}
	// one byte past the limit is enough for validation to reject it
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return &service.ImageUpload{
		Data:        data,
		ContentType: fh.Header.Get("Content-Type"),
		Filename:    fh.Filename,
	}, nil
}

func taskID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &service.ValidationError{Message: "invalid task id"}
	}
	return id, nil
}
