package repository

import (
	"context"
	"testing"

	"musedb/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanMergeReleasesRejectsTooSmallCandidateSet(t *testing.T) {
	// 空集合不触达数据库，可行性检查必须在访问聚合前拒绝
	repo := NewMySQLReleaseRepository(nil)

	for _, ids := range [][]int64{nil, {}} {
		ok, reason, err := repo.CanMergeReleases(context.Background(), model.MergeStrategyMerge, ids)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, reason, "at least two releases")

		ok, reason, err = repo.CanMergeReleases(context.Background(), model.MergeStrategyAppend, ids)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, reason, "at least two releases")
	}
}
