package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusSubmitted = "submitted"
	StatusPlanned   = "planned"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

const (
	ErrCodeConfigNotFound      = "config_not_found"
	ErrCodeConfigInvalid       = "config_invalid"
	ErrCodeStoreFailed         = "store_failed"
	ErrCodeSourceMissing       = "source_missing"
	ErrCodeSubmitFailed        = "submit_failed"
	ErrCodeQualificationFailed = "qualification_failed"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Kind    TaskKind `json:"kind"`
	Store   string   `json:"store"`
	DryRun  bool     `json:"dry_run"`
	Sandbox bool     `json:"sandbox"`

	RequestedHITs int `json:"requested_hits"`
	Assignments   int `json:"assignments"`
	Selected      int `json:"selected"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Batches []BatchResult `json:"batches"`
}

type ReportSummary struct {
	Submitted int `json:"submitted"`
	Planned   int `json:"planned"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// BatchResult 记录一个 batch 的结局。Batch<0 表示与具体 batch 无关的合成条目（例如配置/加载失败）。
type BatchResult struct {
	Batch   int    `json:"batch"`
	HITID   string `json:"hit_id"`
	Indexes []int  `json:"indexes"`
	// HITTypeID 用于拼出 worker 侧预览链接；dry-run/失败时为空。
	HITTypeID string `json:"hit_type_id,omitempty"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) batches 稳定排序：按 batch 升序；合成条目（batch<0）排在最后
// 3) summary 由 batches 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Batches == nil {
		r.Batches = []BatchResult{}
	}

	sort.SliceStable(r.Batches, func(i, j int) bool {
		a := r.Batches[i].Batch
		b := r.Batches[j].Batch
		if a < 0 {
			return false
		}
		if b < 0 {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, b := range r.Batches {
		switch b.Status {
		case StatusSubmitted:
			s.Submitted++
		case StatusPlanned:
			s.Planned++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性；当前透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
