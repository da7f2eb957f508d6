package model

// MergeStrategy determines how releases are combined.
type MergeStrategy string

const (
	// MergeStrategyAppend concatenates the source releases' mediums onto the
	// target release, reassigning medium positions.
	MergeStrategyAppend MergeStrategy = "append"
	// MergeStrategyMerge unifies the releases track-by-track, merging the
	// recordings that occupy equivalent medium/track positions.
	MergeStrategyMerge MergeStrategy = "merge"
)

// Valid reports whether s is a known strategy.
func (s MergeStrategy) Valid() bool {
	return s == MergeStrategyAppend || s == MergeStrategyMerge
}

// MediumChange 记录一张介质在合并后的去向
type MediumChange struct {
	MediumID    int64  `json:"mediumId"`
	ReleaseID   int64  `json:"releaseId"` // 介质原属的专辑版本
	OldPosition int    `json:"oldPosition"`
	NewPosition int    `json:"newPosition"`
	OldName     string `json:"oldName"`
	NewName     string `json:"newName"`
}

// RecordingRef 录音在编辑载荷中的序列化形式
type RecordingRef struct {
	ID       int64  `json:"id"`
	GID      string `json:"gid"`
	Title    string `json:"title"`
	LengthMs int    `json:"lengthMs"`
}

// RecordingMerge 一组将被合并的录音：目标来自保留的专辑版本，
// 来源来自被合并的其他版本
type RecordingMerge struct {
	MediumPosition int            `json:"mediumPosition"`
	TrackPosition  int            `json:"trackPosition"`
	Destination    RecordingRef   `json:"destination"`
	Sources        []RecordingRef `json:"sources"`
	// BadMerge 置位表示组内艺人署名不一致，提交前需要编辑者显式确认
	BadMerge bool `json:"badMerge"`
}

// MergeDirective 一次合并请求的完整指令，由合并规划产生，
// 作为编辑载荷持久化，采纳时被编辑子系统一次性消费
type MergeDirective struct {
	Strategy         MergeStrategy    `json:"strategy"`
	TargetReleaseID  int64            `json:"targetReleaseId"`
	SourceReleaseIDs []int64          `json:"sourceReleaseIds"` // 不含目标版本
	MediumChanges    []MediumChange   `json:"mediumChanges,omitempty"`
	RecordingMerges  []RecordingMerge `json:"recordingMerges,omitempty"`
}
