package push

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
	"github.com/google/uuid"

	"github.com/John-Robertt/photohit/internal/app"
	"github.com/John-Robertt/photohit/internal/domain"
	"github.com/John-Robertt/photohit/internal/hit"
	"github.com/John-Robertt/photohit/internal/infra/cache"
	"github.com/John-Robertt/photohit/internal/requester"
	"github.com/John-Robertt/photohit/internal/store"
	"github.com/John-Robertt/photohit/internal/workflow"
)

// Run 是一次提交的参数（已合并 CLI/配置文件/默认值）。
type Run struct {
	HITs        int
	Assignments int
	Sandbox     bool
	DryRun      bool
	// Qualification 为空表示不设准入条件。
	Qualification []types.QualificationRequirement
}

// Submitter 创建一个 HIT（SDK 的 *mturk.Client 满足）。
type Submitter interface {
	CreateHIT(ctx context.Context, params *mturk.CreateHITInput, optFns ...func(*mturk.Options)) (*mturk.CreateHITOutput, error)
}

// Journal 记录每个已创建的 HIT（cache.Store 满足）。
type Journal interface {
	WriteHIT(rec cache.HITRecord) error
}

// Error 是中止本次提交的错误；Batch<0 表示与具体 batch 无关。
type Error struct {
	Code  string
	Batch int
	Err   error
}

func (e *Error) Error() string {
	if e.Batch < 0 {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: batch %d: %v", e.Code, e.Batch, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 提取 *Error 的错误码；非 *Error 返回空字符串。
func Code(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

var (
	newToken = uuid.NewString
	now      = time.Now
)

type planned struct {
	batch domain.Batch
	spec  hit.Spec
}

// Execute 选择待提交条目、组装全部载荷，然后逐个 batch 串行提交并回写条目状态。
//
// 约束：
// - 任一载荷组装失败：不发起任何提交
// - 第 i 个 batch 提交失败：该 batch 的条目不修改，后续 batch 不再提交，返回 *Error
// - 之前成功的 batch 已写回内存中的条目；由调用方统一 wf.Save()（成功或中止都要保存）
// - dry-run：不调用 sub/j，不修改条目
func Execute(ctx context.Context, run Run, wf workflow.Workflow, sub Submitter, j Journal, obs Observer) (domain.RunReport, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	rr := domain.RunReport{
		Kind:          wf.Kind(),
		Store:         wf.StorePath(),
		DryRun:        run.DryRun,
		Sandbox:       run.Sandbox,
		RequestedHITs: run.HITs,
		Assignments:   run.Assignments,
		StartedAt:     now().UTC(),
	}
	finish := func(err error) (domain.RunReport, error) {
		rr.FinishedAt = now().UTC()
		rr.Finalize()
		return rr, err
	}

	if run.Assignments < 1 {
		rr.Batches = append(rr.Batches, synthetic(domain.ErrCodeConfigInvalid, "assign 必须 >= 1"))
		return finish(&Error{Code: domain.ErrCodeConfigInvalid, Batch: -1, Err: fmt.Errorf("assign 必须 >= 1，实际 %d", run.Assignments)})
	}
	if !run.DryRun && (sub == nil || j == nil) {
		rr.Batches = append(rr.Batches, synthetic(domain.ErrCodeConfigInvalid, "缺少 submitter/journal"))
		return finish(&Error{Code: domain.ErrCodeConfigInvalid, Batch: -1, Err: errors.New("非 dry-run 必须提供 submitter 与 journal")})
	}

	sel := wf.Select(run.HITs * domain.BatchSize)
	rr.Selected = len(sel)
	batches := app.Partition(sel, domain.BatchSize)

	plans := make([]planned, 0, len(batches))
	for _, b := range batches {
		spec, err := wf.Payload(b)
		if err != nil {
			code := domain.ErrCodeSubmitFailed
			if isSourceMissing(err) {
				code = domain.ErrCodeSourceMissing
			}
			rr.Batches = append(rr.Batches, failed(b, code, err))
			skipRest(&rr, batches, b.Index+1)
			skipBefore(&rr, batches, b.Index)
			return finish(&Error{Code: code, Batch: b.Index, Err: err})
		}
		plans = append(plans, planned{batch: b, spec: spec})
	}

	obs.OnStart(wf.Kind(), len(sel), len(plans))

	total := len(plans)
	for _, p := range plans {
		b := p.batch
		obs.OnBatchStart(b, total)

		if run.DryRun {
			res := domain.BatchResult{Batch: b.Index, Indexes: b.Indexes, Status: domain.StatusPlanned}
			rr.Batches = append(rr.Batches, res)
			obs.OnBatchDone(b, total, res)
			continue
		}

		if err := ctx.Err(); err != nil {
			res := failed(b, domain.ErrCodeSubmitFailed, err)
			rr.Batches = append(rr.Batches, res)
			obs.OnBatchDone(b, total, res)
			skipRest(&rr, batches, b.Index+1)
			return finish(&Error{Code: domain.ErrCodeSubmitFailed, Batch: b.Index, Err: err})
		}

		h, err := createHIT(ctx, sub, createInput(run, wf.Kind(), p))
		if err != nil {
			res := failed(b, domain.ErrCodeSubmitFailed, err)
			rr.Batches = append(rr.Batches, res)
			obs.OnBatchDone(b, total, res)
			skipRest(&rr, batches, b.Index+1)
			return finish(&Error{Code: domain.ErrCodeSubmitFailed, Batch: b.Index, Err: err})
		}

		// HIT 已在平台上存在：无论留痕是否成功都必须回写条目，避免重跑时重复提交。
		wf.Commit(b, h.HITID, run.Assignments)
		res := domain.BatchResult{Batch: b.Index, HITID: h.HITID, HITTypeID: h.HITTypeID, Indexes: b.Indexes, Status: domain.StatusSubmitted}

		jerr := j.WriteHIT(cache.HITRecord{
			HITID:       h.HITID,
			Kind:        wf.Kind(),
			Sandbox:     run.Sandbox,
			Batch:       b.Index,
			Indexes:     b.Indexes,
			Assignments: run.Assignments,
			Reward:      p.spec.Reward,
			CreatedAt:   now().UTC(),
			Question:    p.spec.Question,
		})
		if jerr != nil {
			res.ErrorCode = domain.ErrCodeStoreFailed
			res.ErrorMsg = fmt.Sprintf("写入 HIT 流水失败：%v", jerr)
		}
		rr.Batches = append(rr.Batches, res)
		obs.OnBatchDone(b, total, res)
		if jerr != nil {
			skipRest(&rr, batches, b.Index+1)
			return finish(&Error{Code: domain.ErrCodeStoreFailed, Batch: b.Index, Err: jerr})
		}
	}
	return finish(nil)
}

// created 是 CreateHIT 响应中本工具关心的部分。
type created struct {
	HITID     string
	HITTypeID string
}

func createHIT(ctx context.Context, sub Submitter, in *mturk.CreateHITInput) (created, error) {
	out, err := sub.CreateHIT(ctx, in)
	if err != nil {
		return created{}, err
	}
	if out == nil || out.HIT == nil || strings.TrimSpace(aws.ToString(out.HIT.HITId)) == "" {
		return created{}, errors.New("平台未返回 HITId")
	}
	return created{HITID: aws.ToString(out.HIT.HITId), HITTypeID: aws.ToString(out.HIT.HITTypeId)}, nil
}

func createInput(run Run, kind domain.TaskKind, p planned) *mturk.CreateHITInput {
	t := p.spec.Template
	return &mturk.CreateHITInput{
		Title:                       aws.String(t.Title),
		Description:                 aws.String(t.Description),
		Keywords:                    aws.String(strings.Join(t.Keywords, ", ")),
		Reward:                      aws.String(t.Reward),
		MaxAssignments:              aws.Int32(int32(run.Assignments)),
		AssignmentDurationInSeconds: aws.Int64(int64(t.AssignmentDuration / time.Second)),
		LifetimeInSeconds:           aws.Int64(int64(t.Lifetime / time.Second)),
		Question:                    aws.String(p.spec.Question),
		QualificationRequirements:   run.Qualification,
		RequesterAnnotation:         aws.String(fmt.Sprintf("photohit:%s:batch-%d", kind, p.batch.Index)),
		UniqueRequestToken:          aws.String(newToken()),
	}
}

func isSourceMissing(err error) bool {
	var me *store.SourceMissingError
	return errors.As(err, &me)
}

func failed(b domain.Batch, code string, err error) domain.BatchResult {
	return domain.BatchResult{
		Batch:     b.Index,
		Indexes:   b.Indexes,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  requester.Describe(err),
	}
}

func synthetic(code, msg string) domain.BatchResult {
	return domain.BatchResult{
		Batch:     -1,
		Indexes:   []int{},
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

func skipRest(rr *domain.RunReport, batches []domain.Batch, from int) {
	for _, b := range batches[min(from, len(batches)):] {
		rr.Batches = append(rr.Batches, domain.BatchResult{Batch: b.Index, Indexes: b.Indexes, Status: domain.StatusSkipped})
	}
}

func skipBefore(rr *domain.RunReport, batches []domain.Batch, to int) {
	for _, b := range batches[:min(to, len(batches))] {
		rr.Batches = append(rr.Batches, domain.BatchResult{Batch: b.Index, Indexes: b.Indexes, Status: domain.StatusSkipped})
	}
}
