package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"musedb/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReleaseRepo 内存实现，只支撑处理器测试用到的方法
type fakeReleaseRepo struct {
	aggregates map[int64]*model.ReleaseAggregate
	mergeable  bool
	reason     string
}

func (f *fakeReleaseRepo) CreateRelease(ctx context.Context, r *model.Release) (int64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeReleaseRepo) GetReleaseByID(ctx context.Context, id int64) (*model.Release, error) {
	if agg, ok := f.aggregates[id]; ok {
		rel := agg.Release
		return &rel, nil
	}
	return nil, nil
}

func (f *fakeReleaseRepo) ListReleases(ctx context.Context, limit, offset int) ([]*model.Release, error) {
	return nil, nil
}

func (f *fakeReleaseRepo) UpdateRelease(ctx context.Context, r *model.Release) error { return nil }
func (f *fakeReleaseRepo) DeleteRelease(ctx context.Context, id int64) error         { return nil }
func (f *fakeReleaseRepo) UpdateReleaseCoverArt(ctx context.Context, id int64, path string) error {
	return nil
}
func (f *fakeReleaseRepo) AddMedium(ctx context.Context, m *model.Medium) (int64, error) {
	return 0, nil
}
func (f *fakeReleaseRepo) AddTrack(ctx context.Context, t *model.Track) (int64, error) {
	return 0, nil
}

func (f *fakeReleaseRepo) GetReleaseAggregate(ctx context.Context, id int64) (*model.ReleaseAggregate, error) {
	return f.aggregates[id], nil
}

func (f *fakeReleaseRepo) GetReleaseAggregates(ctx context.Context, ids []int64) ([]*model.ReleaseAggregate, error) {
	aggs := make([]*model.ReleaseAggregate, 0, len(ids))
	for _, id := range ids {
		agg, ok := f.aggregates[id]
		if !ok {
			return nil, fmt.Errorf("release %d not found", id)
		}
		aggs = append(aggs, agg)
	}
	return aggs, nil
}

func (f *fakeReleaseRepo) CanMergeReleases(ctx context.Context, strategy model.MergeStrategy, ids []int64) (bool, string, error) {
	return f.mergeable, f.reason, nil
}

// fakeEditService 记录最后一次打开的合并指令
type fakeEditService struct {
	lastDirective *model.MergeDirective
	lastEditorID  int64
}

func (f *fakeEditService) OpenMergeEdit(ctx context.Context, editorID int64, d *model.MergeDirective) (*model.Edit, error) {
	f.lastDirective = d
	f.lastEditorID = editorID
	return &model.Edit{
		ID:       7,
		GID:      "edit-gid",
		Type:     model.EditTypeMergeReleases,
		Status:   model.EditStatusOpen,
		EditorID: editorID,
	}, nil
}

func (f *fakeEditService) Vote(ctx context.Context, editID, editorID int64, approve bool) error {
	return nil
}

func (f *fakeEditService) AddNote(ctx context.Context, editID, editorID int64, body string) (*model.EditNote, error) {
	return nil, nil
}

func (f *fakeEditService) Accept(ctx context.Context, editID int64) (*model.Edit, error) {
	return nil, nil
}

func (f *fakeEditService) Reject(ctx context.Context, editID int64) (*model.Edit, error) {
	return nil, nil
}

func testAggregate(id int64, title string, mediumName string) *model.ReleaseAggregate {
	agg := &model.ReleaseAggregate{
		Release: model.Release{
			ID:             id,
			GID:            fmt.Sprintf("00000000-0000-0000-0000-%012d", id),
			Title:          title,
			Status:         "official",
			ArtistCreditID: 1,
		},
		Recordings: map[int64]*model.Recording{},
		Credits: map[int64]*model.ArtistCredit{
			1: {ID: 1, Name: "Artist"},
		},
	}
	medium := model.Medium{ID: id * 10, ReleaseID: id, Position: 1}
	if mediumName != "" {
		medium.Name.String = mediumName
		medium.Name.Valid = true
	}
	agg.Mediums = []*model.MediumWithTracks{{Medium: medium}}
	return agg
}

func newMergeTestHandler(repo *fakeReleaseRepo, svc *fakeEditService) *APIHandler {
	return &APIHandler{releaseRepo: repo, editSvc: svc}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	if userID != 0 {
		req = req.WithContext(context.WithValue(req.Context(), "userID", userID))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestPreviewMergeHandlerAppend(t *testing.T) {
	repo := &fakeReleaseRepo{
		aggregates: map[int64]*model.ReleaseAggregate{
			1: testAggregate(1, "Album", "A"),
			2: testAggregate(2, "Album", "B"),
		},
		mergeable: true,
	}
	h := newMergeTestHandler(repo, &fakeEditService{})

	rec := postJSON(t, h.PreviewMergeHandler, "/api/releases/merge/preview", map[string]interface{}{
		"strategy":        "append",
		"targetReleaseId": 1,
		"releaseIds":      []int64{1, 2},
	}, 0)

	require.Equal(t, http.StatusOK, rec.Code)
	var preview model.MergePreview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, int64(1), preview.TargetReleaseID)
	require.Len(t, preview.MediumChanges, 2)
	assert.Equal(t, 2, preview.MediumChanges[1].NewPosition)
}

func TestMergeReleasesHandlerCreatesEdit(t *testing.T) {
	repo := &fakeReleaseRepo{
		aggregates: map[int64]*model.ReleaseAggregate{
			1: testAggregate(1, "Album", "A"),
			2: testAggregate(2, "Album", "B"),
		},
		mergeable: true,
	}
	svc := &fakeEditService{}
	h := newMergeTestHandler(repo, svc)

	rec := postJSON(t, h.MergeReleasesHandler, "/api/releases/merge", map[string]interface{}{
		"strategy":        "append",
		"targetReleaseId": 1,
		"releaseIds":      []int64{1, 2},
	}, 42)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.lastDirective)
	assert.Equal(t, int64(42), svc.lastEditorID)
	assert.Equal(t, []int64{2}, svc.lastDirective.SourceReleaseIDs)

	var resp struct {
		Edit     model.Edit `json:"edit"`
		Redirect string     `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/api/edits/7", resp.Redirect)
	assert.Equal(t, model.EditStatusOpen, resp.Edit.Status)
}

func TestMergeReleasesHandlerTargetOutsideSet(t *testing.T) {
	repo := &fakeReleaseRepo{
		aggregates: map[int64]*model.ReleaseAggregate{
			1: testAggregate(1, "Album", "A"),
			2: testAggregate(2, "Album", "B"),
		},
		mergeable: true,
	}
	svc := &fakeEditService{}
	h := newMergeTestHandler(repo, svc)

	rec := postJSON(t, h.MergeReleasesHandler, "/api/releases/merge", map[string]interface{}{
		"strategy":        "append",
		"targetReleaseId": 99,
		"releaseIds":      []int64{1, 2},
	}, 42)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Nil(t, svc.lastDirective)

	var resp struct {
		Error model.FieldError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "target", resp.Error.Field)
}

func TestMergeReleasesHandlerRejectsTooSmallCandidateSet(t *testing.T) {
	repo := &fakeReleaseRepo{
		aggregates: map[int64]*model.ReleaseAggregate{
			1: testAggregate(1, "Album", "A"),
		},
		mergeable: true,
	}
	svc := &fakeEditService{}
	h := newMergeTestHandler(repo, svc)

	// 空候选集合与只含目标的集合都必须被表单校验拦下
	for _, ids := range [][]int64{{}, {1}} {
		rec := postJSON(t, h.MergeReleasesHandler, "/api/releases/merge", map[string]interface{}{
			"strategy":        "merge",
			"targetReleaseId": 1,
			"releaseIds":      ids,
		}, 42)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Nil(t, svc.lastDirective)

		var resp struct {
			Error model.FieldError `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "releases", resp.Error.Field)
	}
}

func TestMergeReleasesHandlerRejectsIncompatible(t *testing.T) {
	repo := &fakeReleaseRepo{
		aggregates: map[int64]*model.ReleaseAggregate{
			1: testAggregate(1, "Album", "A"),
			2: testAggregate(2, "Album", "B"),
		},
		mergeable: false,
		reason:    "releases have different medium counts",
	}
	h := newMergeTestHandler(repo, &fakeEditService{})

	rec := postJSON(t, h.MergeReleasesHandler, "/api/releases/merge", map[string]interface{}{
		"strategy":        "merge",
		"targetReleaseId": 1,
		"releaseIds":      []int64{1, 2},
	}, 42)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Error model.FieldError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "releases", resp.Error.Field)
	assert.Contains(t, resp.Error.Message, "medium counts")
}

func TestMergeReleasesHandlerMissingReleaseIsInternal(t *testing.T) {
	repo := &fakeReleaseRepo{
		aggregates: map[int64]*model.ReleaseAggregate{
			1: testAggregate(1, "Album", "A"),
		},
		mergeable: true,
	}
	h := newMergeTestHandler(repo, &fakeEditService{})

	rec := postJSON(t, h.MergeReleasesHandler, "/api/releases/merge", map[string]interface{}{
		"strategy":        "append",
		"targetReleaseId": 1,
		"releaseIds":      []int64{1, 2},
	}, 42)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
