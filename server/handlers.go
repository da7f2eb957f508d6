package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"musedb/config"
	"musedb/core/auth"
	"musedb/model"
	"musedb/repository"
)

// EditService 处理器依赖的编辑生命周期操作，由 core/edit.Service 实现
type EditService interface {
	OpenMergeEdit(ctx context.Context, editorID int64, directive *model.MergeDirective) (*model.Edit, error)
	Vote(ctx context.Context, editID, editorID int64, approve bool) error
	AddNote(ctx context.Context, editID, editorID int64, body string) (*model.EditNote, error)
	Accept(ctx context.Context, editID int64) (*model.Edit, error)
	Reject(ctx context.Context, editID int64) (*model.Edit, error)
}

// APIHandler 处理所有API请求
type APIHandler struct {
	releaseRepo   repository.ReleaseRepository
	recordingRepo repository.RecordingRepository
	creditRepo    repository.ArtistCreditRepository
	userRepo      repository.UserRepository
	editRepo      repository.EditRepository
	editSvc       EditService
	cfg           *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	releaseRepo repository.ReleaseRepository,
	recordingRepo repository.RecordingRepository,
	creditRepo repository.ArtistCreditRepository,
	userRepo repository.UserRepository,
	editRepo repository.EditRepository,
	editSvc EditService,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		releaseRepo:   releaseRepo,
		recordingRepo: recordingRepo,
		creditRepo:    creditRepo,
		userRepo:      userRepo,
		editRepo:      editRepo,
		editSvc:       editSvc,
		cfg:           cfg,
	}
}

// AuthMiddleware is a middleware function that checks for a valid JWT token
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Get the Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		// Check if the header has the correct format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		// Parse and validate the token
		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		// Add user info to the request context
		ctx := context.WithValue(r.Context(), "userID", claims.UserID)
		ctx = context.WithValue(ctx, "username", claims.Username)

		// Call the next handler with the updated context
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value("userID").(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUsernameFromContext extracts the username from the request context
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value("username").(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// respondJSON 写出JSON响应
func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondFieldError 以字段级错误重新渲染表单（422），数据不发生变化
func respondFieldError(w http.ResponseWriter, field, message string) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error": model.FieldError{Field: field, Message: message},
	})
}

// buildReleaseView 将完整聚合转换为客户端视图模型
func buildReleaseView(agg *model.ReleaseAggregate) *model.ReleaseView {
	view := &model.ReleaseView{
		ID:     agg.Release.ID,
		GID:    agg.Release.GID,
		Title:  agg.Release.Title,
		Status: agg.Release.Status,
	}
	if credit := agg.Credits[agg.Release.ArtistCreditID]; credit != nil {
		view.ArtistCredit = credit.Name
	}
	if agg.Release.CoverArtPath.Valid && agg.Release.CoverArtPath.String != "" {
		view.CoverArtURL = "/covers/" + agg.Release.CoverArtPath.String
	}

	for _, mw := range agg.Mediums {
		mv := model.MediumView{
			ID:       mw.Medium.ID,
			Position: mw.Medium.Position,
			Name:     mw.Medium.Name.String,
			Format:   mw.Medium.Format.String,
		}
		for _, t := range mw.Tracks {
			tv := model.TrackView{
				ID:          t.ID,
				Position:    t.Position,
				Title:       t.Title,
				LengthMs:    t.LengthMs,
				RecordingID: t.RecordingID,
			}
			if rec := agg.RecordingFor(t); rec != nil {
				tv.RecordingGID = rec.GID
			}
			if credit := agg.Credits[t.ArtistCreditID]; credit != nil {
				tv.ArtistCredit = credit.Name
			}
			mv.Tracks = append(mv.Tracks, tv)
		}
		view.Mediums = append(view.Mediums, mv)
	}
	return view
}
