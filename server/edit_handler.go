package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"musedb/core/edit"
	"musedb/logger"

	"github.com/gorilla/mux"
)

// ListEditsHandler 分页列出编辑，可按状态过滤
func (h *APIHandler) ListEditsHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	edits, err := h.editRepo.ListEdits(r.Context(), status, limit, offset)
	if err != nil {
		logger.Error("Failed to list edits", logger.ErrorField(err))
		http.Error(w, "Failed to list edits", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, edits)
}

// GetEditHandler 获取单条编辑（含留言与投票）
func (h *APIHandler) GetEditHandler(w http.ResponseWriter, r *http.Request) {
	editID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid edit ID", http.StatusBadRequest)
		return
	}

	e, err := h.editRepo.GetEditByID(r.Context(), editID)
	if err != nil {
		logger.Error("Failed to get edit",
			logger.Int64("editId", editID),
			logger.ErrorField(err))
		http.Error(w, "Failed to get edit", http.StatusInternalServerError)
		return
	}
	if e == nil {
		http.Error(w, "Edit not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// VoteHandler 对编辑投赞成/反对票
func (h *APIHandler) VoteHandler(w http.ResponseWriter, r *http.Request) {
	editID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid edit ID", http.StatusBadRequest)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.editSvc.Vote(r.Context(), editID, userID, req.Approve); err != nil {
		h.respondEditError(w, editID, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"editId":  editID,
		"approve": req.Approve,
	})
}

// AddNoteHandler 在编辑下留言
func (h *APIHandler) AddNoteHandler(w http.ResponseWriter, r *http.Request) {
	editID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid edit ID", http.StatusBadRequest)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		http.Error(w, "Note body is required", http.StatusBadRequest)
		return
	}

	note, err := h.editSvc.AddNote(r.Context(), editID, userID, req.Body)
	if err != nil {
		h.respondEditError(w, editID, err)
		return
	}
	respondJSON(w, http.StatusCreated, note)
}

// AcceptEditHandler 采纳编辑，将其变更落到目录库
func (h *APIHandler) AcceptEditHandler(w http.ResponseWriter, r *http.Request) {
	editID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid edit ID", http.StatusBadRequest)
		return
	}

	e, err := h.editSvc.Accept(r.Context(), editID)
	if err != nil {
		h.respondEditError(w, editID, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// RejectEditHandler 驳回编辑
func (h *APIHandler) RejectEditHandler(w http.ResponseWriter, r *http.Request) {
	editID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid edit ID", http.StatusBadRequest)
		return
	}

	e, err := h.editSvc.Reject(r.Context(), editID)
	if err != nil {
		h.respondEditError(w, editID, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// respondEditError 把编辑服务的错误映射为HTTP状态码
func (h *APIHandler) respondEditError(w http.ResponseWriter, editID int64, err error) {
	switch {
	case errors.Is(err, edit.ErrEditNotFound):
		http.Error(w, "Edit not found", http.StatusNotFound)
	case errors.Is(err, edit.ErrEditClosed):
		http.Error(w, "Edit is already closed", http.StatusConflict)
	default:
		logger.Error("Edit operation failed",
			logger.Int64("editId", editID),
			logger.ErrorField(err))
		http.Error(w, "Edit operation failed", http.StatusInternalServerError)
	}
}
