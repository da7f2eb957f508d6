package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"musedb/cache"
	"musedb/core/merge"
	"musedb/logger"
	"musedb/model"
	"musedb/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// trackInput 创建专辑版本时一条曲目的输入
// RecordingID为0时新建录音
type trackInput struct {
	Position     int    `json:"position"`
	Title        string `json:"title"`
	LengthMs     int    `json:"lengthMs"`
	RecordingID  int64  `json:"recordingId,omitempty"`
	ArtistCredit string `json:"artistCredit,omitempty"`
}

// mediumInput 创建专辑版本时一张介质的输入
type mediumInput struct {
	Position int          `json:"position"`
	Name     string       `json:"name,omitempty"`
	Format   string       `json:"format,omitempty"`
	Tracks   []trackInput `json:"tracks,omitempty"`
}

// releaseInput 创建专辑版本的请求体
type releaseInput struct {
	Title        string        `json:"title"`
	Status       string        `json:"status,omitempty"`
	ArtistCredit string        `json:"artistCredit"`
	Mediums      []mediumInput `json:"mediums,omitempty"`
}

// CreateReleaseHandler 创建专辑版本及其介质、曲目
func (h *APIHandler) CreateReleaseHandler(w http.ResponseWriter, r *http.Request) {
	var input releaseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		logger.Error("Failed to decode release input", logger.ErrorField(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title == "" || input.ArtistCredit == "" {
		respondFieldError(w, "title", "title and artistCredit are required")
		return
	}

	ctx := r.Context()
	credit, err := h.creditRepo.GetOrCreate(ctx, input.ArtistCredit)
	if err != nil {
		logger.Error("Failed to resolve artist credit", logger.ErrorField(err))
		http.Error(w, "Failed to create release", http.StatusInternalServerError)
		return
	}

	status := input.Status
	if status == "" {
		status = "official"
	}
	release := &model.Release{
		GID:            uuid.NewString(),
		Title:          input.Title,
		Status:         status,
		ArtistCreditID: credit.ID,
	}
	releaseID, err := h.releaseRepo.CreateRelease(ctx, release)
	if err != nil {
		logger.Error("Failed to create release", logger.ErrorField(err))
		http.Error(w, "Failed to create release", http.StatusInternalServerError)
		return
	}
	release.ID = releaseID

	for _, mi := range input.Mediums {
		medium := &model.Medium{
			ReleaseID: releaseID,
			Position:  mi.Position,
			Name:      sql.NullString{String: mi.Name, Valid: mi.Name != ""},
			Format:    sql.NullString{String: mi.Format, Valid: mi.Format != ""},
		}
		mediumID, err := h.releaseRepo.AddMedium(ctx, medium)
		if err != nil {
			logger.Error("Failed to add medium",
				logger.Int64("releaseId", releaseID),
				logger.ErrorField(err))
			http.Error(w, "Failed to create release", http.StatusInternalServerError)
			return
		}

		for _, ti := range mi.Tracks {
			trackCredit := credit
			if ti.ArtistCredit != "" && ti.ArtistCredit != credit.Name {
				trackCredit, err = h.creditRepo.GetOrCreate(ctx, ti.ArtistCredit)
				if err != nil {
					http.Error(w, "Failed to create release", http.StatusInternalServerError)
					return
				}
			}

			recordingID := ti.RecordingID
			if recordingID == 0 {
				recordingID, err = h.recordingRepo.CreateRecording(ctx, &model.Recording{
					GID:            uuid.NewString(),
					Title:          ti.Title,
					LengthMs:       ti.LengthMs,
					ArtistCreditID: trackCredit.ID,
				})
				if err != nil {
					logger.Error("Failed to create recording", logger.ErrorField(err))
					http.Error(w, "Failed to create release", http.StatusInternalServerError)
					return
				}
			}

			_, err = h.releaseRepo.AddTrack(ctx, &model.Track{
				MediumID:       mediumID,
				Position:       ti.Position,
				Title:          ti.Title,
				LengthMs:       ti.LengthMs,
				RecordingID:    recordingID,
				ArtistCreditID: trackCredit.ID,
			})
			if err != nil {
				logger.Error("Failed to add track", logger.ErrorField(err))
				http.Error(w, "Failed to create release", http.StatusInternalServerError)
				return
			}
		}
	}

	agg, err := h.releaseRepo.GetReleaseAggregate(ctx, releaseID)
	if err != nil || agg == nil {
		logger.Error("Failed to load created release", logger.ErrorField(err))
		http.Error(w, "Failed to create release", http.StatusInternalServerError)
		return
	}

	logger.Info("Release created",
		logger.Int64("releaseId", releaseID),
		logger.String("title", release.Title))
	respondJSON(w, http.StatusCreated, buildReleaseView(agg))
}

// GetReleaseHandler 获取专辑版本完整视图，优先走缓存
func (h *APIHandler) GetReleaseHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	releaseID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid release ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if cached, err := cache.GetReleaseView(ctx, releaseID); err == nil && cached != nil {
		respondJSON(w, http.StatusOK, cached)
		return
	} else if err != nil {
		logger.Warn("Release cache read failed", logger.ErrorField(err))
	}

	agg, err := h.releaseRepo.GetReleaseAggregate(ctx, releaseID)
	if err != nil {
		logger.Error("Failed to get release",
			logger.Int64("releaseId", releaseID),
			logger.ErrorField(err))
		http.Error(w, "Failed to get release", http.StatusInternalServerError)
		return
	}
	if agg == nil {
		http.Error(w, "Release not found", http.StatusNotFound)
		return
	}

	view := buildReleaseView(agg)
	if err := cache.SetReleaseView(ctx, view); err != nil {
		logger.Warn("Release cache write failed", logger.ErrorField(err))
	}
	respondJSON(w, http.StatusOK, view)
}

// ListReleasesHandler 分页列出专辑版本
func (h *APIHandler) ListReleasesHandler(w http.ResponseWriter, r *http.Request) {
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

	releases, err := h.releaseRepo.ListReleases(r.Context(), limit, offset)
	if err != nil {
		logger.Error("Failed to list releases", logger.ErrorField(err))
		http.Error(w, "Failed to list releases", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, releases)
}

// UpdateReleaseHandler 更新专辑版本基础字段
func (h *APIHandler) UpdateReleaseHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	releaseID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid release ID", http.StatusBadRequest)
		return
	}

	var input releaseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	release, err := h.releaseRepo.GetReleaseByID(ctx, releaseID)
	if err != nil {
		logger.Error("Failed to get release", logger.ErrorField(err))
		http.Error(w, "Failed to update release", http.StatusInternalServerError)
		return
	}
	if release == nil {
		http.Error(w, "Release not found", http.StatusNotFound)
		return
	}

	if input.Title != "" {
		release.Title = input.Title
	}
	if input.Status != "" {
		release.Status = input.Status
	}
	if input.ArtistCredit != "" {
		credit, err := h.creditRepo.GetOrCreate(ctx, input.ArtistCredit)
		if err != nil {
			http.Error(w, "Failed to update release", http.StatusInternalServerError)
			return
		}
		release.ArtistCreditID = credit.ID
	}

	if err := h.releaseRepo.UpdateRelease(ctx, release); err != nil {
		logger.Error("Failed to update release",
			logger.Int64("releaseId", releaseID),
			logger.ErrorField(err))
		http.Error(w, "Failed to update release", http.StatusInternalServerError)
		return
	}

	if err := cache.InvalidateReleases(ctx, releaseID); err != nil {
		logger.Warn("Failed to invalidate release cache", logger.ErrorField(err))
	}
	respondJSON(w, http.StatusOK, release)
}

// DeleteReleaseHandler 删除专辑版本
func (h *APIHandler) DeleteReleaseHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	releaseID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid release ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.releaseRepo.DeleteRelease(ctx, releaseID); err != nil {
		logger.Error("Failed to delete release",
			logger.Int64("releaseId", releaseID),
			logger.ErrorField(err))
		http.Error(w, "Failed to delete release", http.StatusInternalServerError)
		return
	}
	if err := cache.InvalidateReleases(ctx, releaseID); err != nil {
		logger.Warn("Failed to invalidate release cache", logger.ErrorField(err))
	}

	logger.Info("Release deleted", logger.Int64("releaseId", releaseID))
	w.WriteHeader(http.StatusNoContent)
}

// UploadCoverHandler 上传专辑版本封面到MinIO
func (h *APIHandler) UploadCoverHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	releaseID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid release ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	release, err := h.releaseRepo.GetReleaseByID(ctx, releaseID)
	if err != nil {
		http.Error(w, "Failed to get release", http.StatusInternalServerError)
		return
	}
	if release == nil {
		http.Error(w, "Release not found", http.StatusNotFound)
		return
	}

	if err := r.ParseMultipartForm(16 << 20); err != nil { // 16MB max memory
		http.Error(w, fmt.Sprintf("Failed to parse multipart form: %v", err), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("coverFile")
	if err != nil {
		http.Error(w, "Missing 'coverFile' in form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType := "image/jpeg"
	if ext == ".png" {
		contentType = "image/png"
	}
	objectName := fmt.Sprintf("releases/%d/cover%s", releaseID, ext)

	path, err := storage.UploadCoverArt(ctx, objectName, file, header.Size, contentType)
	if err != nil {
		logger.Error("Failed to upload cover art",
			logger.Int64("releaseId", releaseID),
			logger.ErrorField(err))
		http.Error(w, "Failed to upload cover", http.StatusInternalServerError)
		return
	}

	if err := h.releaseRepo.UpdateReleaseCoverArt(ctx, releaseID, path); err != nil {
		logger.Error("Failed to save cover art path", logger.ErrorField(err))
		http.Error(w, "Failed to upload cover", http.StatusInternalServerError)
		return
	}
	if err := cache.InvalidateReleases(ctx, releaseID); err != nil {
		logger.Warn("Failed to invalidate release cache", logger.ErrorField(err))
	}

	logger.Info("Cover art uploaded",
		logger.Int64("releaseId", releaseID),
		logger.String("path", path))
	respondJSON(w, http.StatusOK, map[string]string{"coverArtUrl": "/covers/" + path})
}

// CoverArtHandler 从MinIO读出封面对象
func (h *APIHandler) CoverArtHandler(w http.ResponseWriter, r *http.Request) {
	objectPath := strings.TrimPrefix(r.URL.Path, "/covers/")
	if objectPath == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	object, err := storage.GetCoverArt(r.Context(), objectPath)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer object.Close()

	contentType := "image/jpeg"
	if strings.HasSuffix(objectPath, ".png") {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000") // 缓存一年

	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("Error serving cover art", logger.ErrorField(err))
	}
}

// mergeRequest 合并请求体，ReleaseIDs为完整候选集合（含目标）
type mergeRequest struct {
	Strategy        string  `json:"strategy"`
	TargetReleaseID int64   `json:"targetReleaseId"`
	ReleaseIDs      []int64 `json:"releaseIds"`
	Confirmed       bool    `json:"confirmed"`
}

// loadMergeRequest 加载合并候选聚合并组装规划请求
// 引用的版本缺失视为内部错误（500），不重试
func (h *APIHandler) loadMergeRequest(r *http.Request, req *mergeRequest) (*merge.Request, error) {
	aggs, err := h.releaseRepo.GetReleaseAggregates(r.Context(), req.ReleaseIDs)
	if err != nil {
		return nil, err
	}
	return &merge.Request{
		Strategy:        model.MergeStrategy(req.Strategy),
		TargetReleaseID: req.TargetReleaseID,
		Releases:        aggs,
		Confirmed:       req.Confirmed,
	}, nil
}

// PreviewMergeHandler 计算合并预览视图（介质去向、录音合并组、坏合并警告）
func (h *APIHandler) PreviewMergeHandler(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	cacheKey := cache.GetMergePreviewKey(model.MergeStrategy(req.Strategy), req.TargetReleaseID, req.ReleaseIDs)
	if cached, err := cache.GetMergePreview(ctx, cacheKey); err == nil && cached != nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	planReq, err := h.loadMergeRequest(r, &req)
	if err != nil {
		logger.Error("Failed to load merge candidates", logger.ErrorField(err))
		http.Error(w, "Failed to load releases", http.StatusInternalServerError)
		return
	}

	preview, verr := merge.Preview(planReq)
	if verr != nil {
		respondFieldError(w, verr.Field, verr.Message)
		return
	}

	if err := cache.SetMergePreview(ctx, cacheKey, req.ReleaseIDs, preview); err != nil {
		logger.Warn("Merge preview cache write failed", logger.ErrorField(err))
	}
	respondJSON(w, http.StatusOK, preview)
}

// MergeReleasesHandler 校验合并请求、构建指令并创建待审核编辑
func (h *APIHandler) MergeReleasesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	planReq, err := h.loadMergeRequest(r, &req)
	if err != nil {
		logger.Error("Failed to load merge candidates", logger.ErrorField(err))
		http.Error(w, "Failed to load releases", http.StatusInternalServerError)
		return
	}

	// 先做请求本身的校验，再做模型层的结构可行性检查
	if verr := merge.ValidateRequest(planReq); verr != nil {
		respondFieldError(w, verr.Field, verr.Message)
		return
	}

	ok, reason, err := h.releaseRepo.CanMergeReleases(r.Context(), planReq.Strategy, req.ReleaseIDs)
	if err != nil {
		logger.Error("Merge feasibility check failed", logger.ErrorField(err))
		http.Error(w, "Failed to validate merge", http.StatusInternalServerError)
		return
	}
	if !ok {
		respondFieldError(w, "releases", reason)
		return
	}

	directive, verr := merge.BuildDirective(planReq)
	if verr != nil {
		logger.Warn("Merge rejected",
			logger.String("field", verr.Field),
			logger.String("reason", verr.Message))
		respondFieldError(w, verr.Field, verr.Message)
		return
	}

	e, err := h.editSvc.OpenMergeEdit(r.Context(), userID, directive)
	if err != nil {
		logger.Error("Failed to open merge edit", logger.ErrorField(err))
		http.Error(w, "Failed to create edit", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"edit":     e,
		"redirect": fmt.Sprintf("/api/edits/%d", e.ID),
	})
}
