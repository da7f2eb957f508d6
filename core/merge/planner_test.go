package merge

import (
	"fmt"
	"testing"

	"musedb/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// aggBuilder 按位置批量构造完全加载的聚合，ID在测试内全局自增
type aggBuilder struct {
	nextMediumID    int64
	nextTrackID     int64
	nextRecordingID int64
}

type trackSpec struct {
	title    string
	creditID int64
}

type mediumSpec struct {
	name   string
	tracks []trackSpec
}

func (b *aggBuilder) release(id int64, title string, mediums ...mediumSpec) *model.ReleaseAggregate {
	agg := &model.ReleaseAggregate{
		Release: model.Release{
			ID:             id,
			GID:            fmt.Sprintf("00000000-0000-0000-0000-%012d", id),
			Title:          title,
			Status:         "official",
			ArtistCreditID: 1,
		},
		Recordings: make(map[int64]*model.Recording),
		Credits: map[int64]*model.ArtistCredit{
			1: {ID: 1, Name: "Artist A"},
			2: {ID: 2, Name: "Artist B"},
		},
	}

	for mi, ms := range mediums {
		b.nextMediumID++
		medium := model.Medium{
			ID:        b.nextMediumID,
			ReleaseID: id,
			Position:  mi + 1,
		}
		if ms.name != "" {
			medium.Name.String = ms.name
			medium.Name.Valid = true
		}

		mw := &model.MediumWithTracks{Medium: medium}
		for ti, ts := range ms.tracks {
			b.nextTrackID++
			b.nextRecordingID++
			rec := &model.Recording{
				ID:             b.nextRecordingID,
				GID:            fmt.Sprintf("10000000-0000-0000-0000-%012d", b.nextRecordingID),
				Title:          ts.title,
				LengthMs:       180000,
				ArtistCreditID: ts.creditID,
			}
			agg.Recordings[rec.ID] = rec
			mw.Tracks = append(mw.Tracks, &model.Track{
				ID:             b.nextTrackID,
				MediumID:       medium.ID,
				Position:       ti + 1,
				Title:          ts.title,
				LengthMs:       180000,
				RecordingID:    rec.ID,
				ArtistCreditID: ts.creditID,
			})
		}
		agg.Mediums = append(agg.Mediums, mw)
	}
	return agg
}

func TestValidateRequestRejectsTargetOutsideSet(t *testing.T) {
	b := &aggBuilder{}
	req := &Request{
		Strategy:        model.MergeStrategyAppend,
		TargetReleaseID: 99,
		Releases: []*model.ReleaseAggregate{
			b.release(1, "Album"),
			b.release(2, "Album"),
		},
	}

	verr := ValidateRequest(req)
	require.NotNil(t, verr)
	assert.Equal(t, "target", verr.Field)
}

func TestValidateRequestRejectsDuplicateAndTooFew(t *testing.T) {
	b := &aggBuilder{}
	one := b.release(1, "Album")

	verr := ValidateRequest(&Request{
		Strategy:        model.MergeStrategyAppend,
		TargetReleaseID: 1,
		Releases:        []*model.ReleaseAggregate{one},
	})
	require.NotNil(t, verr)
	assert.Equal(t, "releases", verr.Field)

	verr = ValidateRequest(&Request{
		Strategy:        model.MergeStrategyAppend,
		TargetReleaseID: 1,
		Releases:        []*model.ReleaseAggregate{one, one},
	})
	require.NotNil(t, verr)
	assert.Contains(t, verr.Message, "more than once")
}

func TestReconcilePositionsSequentialWithoutDuplicates(t *testing.T) {
	b := &aggBuilder{}
	// 目标有两张介质，两个源各有两张，全部带名称（不触发标题推断）
	target := b.release(1, "Box Set",
		mediumSpec{name: "Disc One"}, mediumSpec{name: "Disc Two"})
	src1 := b.release(2, "Box Set",
		mediumSpec{name: "Disc Three"}, mediumSpec{name: "Disc Four"})
	src2 := b.release(3, "Box Set",
		mediumSpec{name: "Disc Five"}, mediumSpec{name: "Disc Six"})

	changes := ReconcilePositions(target, []*model.ReleaseAggregate{src1, src2})
	require.Len(t, changes, 6)

	seen := make(map[int]bool)
	for i, ch := range changes {
		assert.Equal(t, i+1, ch.NewPosition, "positions must be sequential")
		assert.False(t, seen[ch.NewPosition], "position %d assigned twice", ch.NewPosition)
		seen[ch.NewPosition] = true
	}

	// 目标介质原位不动，源介质依次后移
	assert.Equal(t, 1, changes[0].OldPosition)
	assert.Equal(t, int64(1), changes[0].ReleaseID)
	assert.Equal(t, int64(2), changes[2].ReleaseID)
	assert.Equal(t, 3, changes[2].NewPosition)
	assert.Equal(t, int64(3), changes[4].ReleaseID)
	assert.Equal(t, 5, changes[4].NewPosition)
}

func TestReconcilePositionsInfersDiscTitle(t *testing.T) {
	b := &aggBuilder{}
	target := b.release(1, "Live Album (disc 1)", mediumSpec{})
	source := b.release(2, "Live Album (disc 2: Encore)", mediumSpec{})

	changes := ReconcilePositions(target, []*model.ReleaseAggregate{source})
	require.Len(t, changes, 2)

	assert.Equal(t, 1, changes[0].NewPosition)
	assert.Equal(t, "", changes[0].NewName)
	assert.Equal(t, 2, changes[1].NewPosition)
	assert.Equal(t, "Encore", changes[1].NewName)
	assert.Equal(t, int64(2), changes[1].ReleaseID)
}

func TestReconcilePositionsIgnoresTitleForNamedOrMultiMedium(t *testing.T) {
	b := &aggBuilder{}
	// 介质已有名称：标题后缀不参与
	target := b.release(1, "Album (disc 3)", mediumSpec{name: "Keep"})
	// 多介质版本：标题后缀不参与
	source := b.release(2, "Album (disc 9)", mediumSpec{}, mediumSpec{})

	changes := ReconcilePositions(target, []*model.ReleaseAggregate{source})
	require.Len(t, changes, 3)

	assert.Equal(t, 1, changes[0].NewPosition)
	assert.Equal(t, "Keep", changes[0].NewName)
	assert.Equal(t, 2, changes[1].NewPosition)
	assert.Equal(t, 3, changes[2].NewPosition)
}

func TestMatchRecordingsGroupsByPosition(t *testing.T) {
	b := &aggBuilder{}
	target := b.release(1, "Album", mediumSpec{tracks: []trackSpec{
		{title: "Intro", creditID: 1},
		{title: "Song", creditID: 1},
	}})
	source := b.release(2, "Album", mediumSpec{tracks: []trackSpec{
		{title: "Intro", creditID: 1},
		{title: "Song", creditID: 1},
	}})

	groups := MatchRecordings(target, []*model.ReleaseAggregate{source})
	require.Len(t, groups, 2)

	for i, g := range groups {
		assert.Equal(t, 1, g.MediumPosition)
		assert.Equal(t, i+1, g.TrackPosition)
		require.Len(t, g.Sources, 1)
		assert.False(t, g.BadMerge)
		assert.NotEqual(t, g.Destination.ID, g.Sources[0].ID)
	}
}

func TestMatchRecordingsFlagsCreditMismatch(t *testing.T) {
	b := &aggBuilder{}
	target := b.release(1, "Album", mediumSpec{tracks: []trackSpec{
		{title: "Song", creditID: 1},
	}})
	source := b.release(2, "Album", mediumSpec{tracks: []trackSpec{
		{title: "Song", creditID: 2},
	}})

	groups := MatchRecordings(target, []*model.ReleaseAggregate{source})
	require.Len(t, groups, 1)
	assert.True(t, groups[0].BadMerge)
}

func TestMatchRecordingsSkipsMissingCounterparts(t *testing.T) {
	b := &aggBuilder{}
	// 源只有一条曲目，目标第二条没有配对，组不产生
	target := b.release(1, "Album", mediumSpec{tracks: []trackSpec{
		{title: "One", creditID: 1},
		{title: "Two", creditID: 1},
	}})
	source := b.release(2, "Album", mediumSpec{tracks: []trackSpec{
		{title: "One", creditID: 1},
	}})

	groups := MatchRecordings(target, []*model.ReleaseAggregate{source})
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].TrackPosition)
}

func TestBuildDirectiveAppendEndToEnd(t *testing.T) {
	b := &aggBuilder{}
	target := b.release(1, "Album", mediumSpec{tracks: []trackSpec{
		{title: "One", creditID: 1},
	}})
	source := b.release(2, "Album", mediumSpec{tracks: []trackSpec{
		{title: "Two", creditID: 1},
	}})

	req := &Request{
		Strategy:        model.MergeStrategyAppend,
		TargetReleaseID: 1,
		Releases:        []*model.ReleaseAggregate{target, source},
	}

	d, verr := BuildDirective(req)
	require.Nil(t, verr)
	assert.Equal(t, model.MergeStrategyAppend, d.Strategy)
	assert.Equal(t, int64(1), d.TargetReleaseID)
	assert.Equal(t, []int64{2}, d.SourceReleaseIDs)
	require.Len(t, d.MediumChanges, 2)
	assert.Equal(t, 1, d.MediumChanges[0].NewPosition)
	assert.Equal(t, 2, d.MediumChanges[1].NewPosition)
	assert.Equal(t, int64(2), d.MediumChanges[1].ReleaseID)
	assert.Empty(t, d.RecordingMerges)
}

func TestBuildDirectiveIsDeterministic(t *testing.T) {
	build := func() (*model.MergeDirective, *ValidationError) {
		b := &aggBuilder{}
		target := b.release(1, "Album",
			mediumSpec{tracks: []trackSpec{{title: "One", creditID: 1}}},
			mediumSpec{tracks: []trackSpec{{title: "Two", creditID: 1}}})
		source := b.release(2, "Album (disc 3: Bonus)",
			mediumSpec{tracks: []trackSpec{{title: "Three", creditID: 1}}})
		return BuildDirective(&Request{
			Strategy:        model.MergeStrategyAppend,
			TargetReleaseID: 1,
			Releases:        []*model.ReleaseAggregate{target, source},
		})
	}

	first, verr := build()
	require.Nil(t, verr)
	second, verr := build()
	require.Nil(t, verr)
	assert.Equal(t, first, second)
}

func TestBuildDirectiveMergeNeedsConfirmationForBadMerge(t *testing.T) {
	newReq := func(confirmed bool) *Request {
		b := &aggBuilder{}
		target := b.release(1, "Album", mediumSpec{tracks: []trackSpec{
			{title: "Song", creditID: 1},
		}})
		source := b.release(2, "Album", mediumSpec{tracks: []trackSpec{
			{title: "Song", creditID: 2},
		}})
		return &Request{
			Strategy:        model.MergeStrategyMerge,
			TargetReleaseID: 1,
			Releases:        []*model.ReleaseAggregate{target, source},
			Confirmed:       confirmed,
		}
	}

	_, verr := BuildDirective(newReq(false))
	require.NotNil(t, verr)
	assert.Equal(t, "confirmed", verr.Field)

	d, verr := BuildDirective(newReq(true))
	require.Nil(t, verr)
	require.Len(t, d.RecordingMerges, 1)
	assert.True(t, d.RecordingMerges[0].BadMerge)
}

func TestBuildDirectiveAppendRejectsPositionCollision(t *testing.T) {
	b := &aggBuilder{}
	// 源的标题推断落到位置1，与目标介质撞位
	target := b.release(1, "Album", mediumSpec{})
	source := b.release(2, "Album (disc 1)", mediumSpec{})

	_, verr := BuildDirective(&Request{
		Strategy:        model.MergeStrategyAppend,
		TargetReleaseID: 1,
		Releases:        []*model.ReleaseAggregate{target, source},
	})
	require.NotNil(t, verr)
	assert.Equal(t, "mediums", verr.Field)
}

func TestPreviewCountsBadMerges(t *testing.T) {
	b := &aggBuilder{}
	target := b.release(1, "Album", mediumSpec{tracks: []trackSpec{
		{title: "Ok", creditID: 1},
		{title: "Bad", creditID: 1},
	}})
	source := b.release(2, "Album", mediumSpec{tracks: []trackSpec{
		{title: "Ok", creditID: 1},
		{title: "Bad", creditID: 2},
	}})

	preview, verr := Preview(&Request{
		Strategy:        model.MergeStrategyMerge,
		TargetReleaseID: 1,
		Releases:        []*model.ReleaseAggregate{target, source},
	})
	require.Nil(t, verr)
	assert.Equal(t, 1, preview.BadMergeCount)
	require.Len(t, preview.RecordingMerges, 2)
}

func TestPreviewAppendGroupsByRelease(t *testing.T) {
	b := &aggBuilder{}
	target := b.release(1, "Album", mediumSpec{name: "A"})
	source := b.release(2, "Album", mediumSpec{name: "B"})

	preview, verr := Preview(&Request{
		Strategy:        model.MergeStrategyAppend,
		TargetReleaseID: 1,
		Releases:        []*model.ReleaseAggregate{target, source},
	})
	require.Nil(t, verr)
	require.Len(t, preview.ByRelease, 2)
	assert.Equal(t, int64(1), preview.ByRelease[0].ReleaseID)
	require.Len(t, preview.ByRelease[1].Changes, 1)
	assert.Equal(t, 2, preview.ByRelease[1].Changes[0].NewPosition)
}
