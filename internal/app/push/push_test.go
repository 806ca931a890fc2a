package push

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
	"github.com/aws/smithy-go"

	"github.com/John-Robertt/photohit/internal/domain"
	"github.com/John-Robertt/photohit/internal/infra/cache"
	"github.com/John-Robertt/photohit/internal/store"
	"github.com/John-Robertt/photohit/internal/workflow"
)

type stubSubmitter struct {
	failAt int // 第几次调用失败（从 0 开始）；<0 表示不失败
	calls  []*mturk.CreateHITInput
}

func (s *stubSubmitter) CreateHIT(_ context.Context, in *mturk.CreateHITInput, _ ...func(*mturk.Options)) (*mturk.CreateHITOutput, error) {
	n := len(s.calls)
	s.calls = append(s.calls, in)
	if n == s.failAt {
		return nil, &smithy.OperationError{
			ServiceID:     "MTurk",
			OperationName: "CreateHIT",
			Err:           &types.ServiceFault{Message: aws.String("boom")},
		}
	}
	return &mturk.CreateHITOutput{HIT: &types.HIT{
		HITId:     aws.String(fmt.Sprintf("HIT%d", n)),
		HITTypeId: aws.String("TYPE"),
	}}, nil
}

type memJournal struct {
	err  error
	recs []cache.HITRecord
}

func (j *memJournal) WriteHIT(rec cache.HITRecord) error {
	if j.err != nil {
		return j.err
	}
	j.recs = append(j.recs, rec)
	return nil
}

type recordObserver struct {
	started bool
	begun   []int
	done    []string
}

func (o *recordObserver) OnStart(domain.TaskKind, int, int) { o.started = true }
func (o *recordObserver) OnBatchStart(b domain.Batch, _ int) {
	o.begun = append(o.begun, b.Index)
}
func (o *recordObserver) OnBatchDone(_ domain.Batch, _ int, res domain.BatchResult) {
	o.done = append(o.done, res.Status)
}

func cropWorkflow(t *testing.T, n int) *workflow.Crop {
	t.Helper()
	items := make([]domain.CropItem, n)
	for i := range items {
		items[i] = domain.CropItem{ItemState: domain.ItemState{URL: fmt.Sprintf("https://img.test/c%d.jpg", i), HITID: domain.HITPending}}
	}
	return &workflow.Crop{Path: filepath.Join(t.TempDir(), store.CropFile), Items: items}
}

func TestExecute_SubmitsRequestedBatchesAndCommitsByPosition(t *testing.T) {
	wf := cropWorkflow(t, 25)
	sub := &stubSubmitter{failAt: -1}
	j := &memJournal{}
	obs := &recordObserver{}
	qual := []types.QualificationRequirement{{QualificationTypeId: aws.String("QT"), Comparator: types.ComparatorGreaterThan, IntegerValues: []int32{80}}}

	rr, err := Execute(context.Background(), Run{HITs: 2, Assignments: 7, Sandbox: true, Qualification: qual}, wf, sub, j, obs)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(sub.calls) != 2 || len(j.recs) != 2 {
		t.Fatalf("期望提交 2 次，实际 calls=%d journal=%d", len(sub.calls), len(j.recs))
	}
	if rr.Selected != 20 || rr.Summary.Submitted != 2 {
		t.Fatalf("报告不符合预期：%+v", rr)
	}
	for i := 0; i < 20; i++ {
		it := wf.Items[i]
		want := fmt.Sprintf("HIT%d", i/10)
		if it.HITID != want || it.QuestionIdx != i%10 || it.NumAssignment != 7 {
			t.Fatalf("条目 %d 不符合预期：%+v", i, it)
		}
	}
	for i := 20; i < 25; i++ {
		if wf.Items[i].HITID != domain.HITPending {
			t.Fatalf("条目 %d 不应被提交", i)
		}
	}

	in := sub.calls[0]
	if aws.ToString(in.Reward) != "0.05" || aws.ToInt32(in.MaxAssignments) != 7 || aws.ToInt64(in.LifetimeInSeconds) != 259200 || aws.ToInt64(in.AssignmentDurationInSeconds) != 1800 {
		t.Fatalf("CreateHIT 参数不符合预期：%+v", in)
	}
	if !reflect.DeepEqual(in.QualificationRequirements, qual) {
		t.Fatalf("准入条件未透传：%+v", in.QualificationRequirements)
	}
	if aws.ToString(in.UniqueRequestToken) == "" || aws.ToString(in.UniqueRequestToken) == aws.ToString(sub.calls[1].UniqueRequestToken) {
		t.Fatalf("每次提交应使用不同的 UniqueRequestToken")
	}
	if rr.Batches[0].HITTypeID != "TYPE" {
		t.Fatalf("报告缺少 HIT 类型：%+v", rr.Batches[0])
	}
	if j.recs[1].HITID != "HIT1" || !reflect.DeepEqual(j.recs[1].Indexes, []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}) {
		t.Fatalf("流水记录不符合预期：%+v", j.recs[1])
	}
	if !obs.started || !reflect.DeepEqual(obs.begun, []int{0, 1}) || !reflect.DeepEqual(obs.done, []string{"submitted", "submitted"}) {
		t.Fatalf("observer 事件不符合预期：%+v", obs)
	}
}

func TestExecute_FailureAtBatchLeavesItemsUntouchedAndStops(t *testing.T) {
	wf := cropWorkflow(t, 30)
	sub := &stubSubmitter{failAt: 1}
	j := &memJournal{}

	rr, err := Execute(context.Background(), Run{HITs: 3, Assignments: 5}, wf, sub, j, nil)
	if Code(err) != domain.ErrCodeSubmitFailed {
		t.Fatalf("期望 submit_failed，实际 %v", err)
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Batch != 1 {
		t.Fatalf("期望 batch=1，实际 %v", err)
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) || ae.ErrorCode() != "ServiceFault" {
		t.Fatalf("应保留底层平台错误：%v", err)
	}
	if len(sub.calls) != 2 {
		t.Fatalf("失败后不应继续提交：calls=%d", len(sub.calls))
	}

	for i := 0; i < 10; i++ {
		if wf.Items[i].HITID != "HIT0" {
			t.Fatalf("batch 0 已成功，条目 %d 应已回写：%+v", i, wf.Items[i])
		}
	}
	for i := 10; i < 30; i++ {
		if wf.Items[i].HITID != domain.HITPending || wf.Items[i].NumAssignment != 0 {
			t.Fatalf("条目 %d 不应被修改：%+v", i, wf.Items[i])
		}
	}

	got := []string{}
	for _, b := range rr.Batches {
		got = append(got, b.Status)
	}
	if !reflect.DeepEqual(got, []string{"submitted", "failed", "skipped"}) {
		t.Fatalf("batch 状态不符合预期：%v", got)
	}
	if rr.Batches[1].ErrorCode != domain.ErrCodeSubmitFailed || rr.Batches[1].ErrorMsg != "CreateHIT: ServiceFault: boom" {
		t.Fatalf("失败 batch 的错误码/信息不符合预期：%+v", rr.Batches[1])
	}

	// 中止后仍整体写回：之前成功的 batch 必须落盘。
	if err := wf.Save(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	back, err := store.LoadCrop(wf.Path)
	if err != nil || back[0].HITID != "HIT0" || back[10].HITID != domain.HITPending {
		t.Fatalf("写回结果不符合预期：%v", err)
	}
}

func TestExecute_DryRunPlansWithoutCallsOrMutation(t *testing.T) {
	wf := cropWorkflow(t, 13)
	obs := &recordObserver{}

	rr, err := Execute(context.Background(), Run{HITs: 2, Assignments: 7, DryRun: true}, wf, nil, nil, obs)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rr.Summary.Planned != 2 || !rr.DryRun {
		t.Fatalf("报告不符合预期：%+v", rr)
	}
	if len(rr.Batches[1].Indexes) != 3 {
		t.Fatalf("最后一个 batch 应为 3 条：%v", rr.Batches[1].Indexes)
	}
	for i, it := range wf.Items {
		if it.HITID != domain.HITPending {
			t.Fatalf("dry-run 不应修改条目 %d", i)
		}
	}
	if !reflect.DeepEqual(obs.done, []string{"planned", "planned"}) {
		t.Fatalf("observer 事件不符合预期：%v", obs.done)
	}
}

func TestExecute_NothingPendingIsNoop(t *testing.T) {
	wf := cropWorkflow(t, 3)
	for i := range wf.Items {
		wf.Items[i].Disabled = true
	}
	sub := &stubSubmitter{failAt: -1}

	rr, err := Execute(context.Background(), Run{HITs: 2, Assignments: 7}, wf, sub, &memJournal{}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(sub.calls) != 0 || len(rr.Batches) != 0 || rr.Selected != 0 {
		t.Fatalf("不应有任何提交：calls=%d report=%+v", len(sub.calls), rr)
	}
}

func TestExecute_MissingSourceFailsBeforeAnySubmission(t *testing.T) {
	items := make([]domain.RankItem, 20)
	for i := range items {
		photo := "p1"
		if i >= 10 {
			photo = "ghost"
		}
		items[i] = domain.RankItem{ItemState: domain.ItemState{URL: fmt.Sprintf("https://img.test/r%d.jpg", i), HITID: domain.HITPending}, PhotoID: domain.PhotoID(photo)}
	}
	wf := &workflow.Rank{Items: items, Sources: store.Sources{"p1": "https://img.test/src.jpg"}}
	sub := &stubSubmitter{failAt: -1}

	rr, err := Execute(context.Background(), Run{HITs: 2, Assignments: 7}, wf, sub, &memJournal{}, nil)
	if Code(err) != domain.ErrCodeSourceMissing {
		t.Fatalf("期望 source_missing，实际 %v", err)
	}
	var me *store.SourceMissingError
	if !errors.As(err, &me) || me.PhotoID != "ghost" {
		t.Fatalf("应保留 SourceMissingError：%v", err)
	}
	if len(sub.calls) != 0 {
		t.Fatalf("组装失败时不应提交：calls=%d", len(sub.calls))
	}
	if rr.Summary.Failed != 1 || rr.Summary.Skipped != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	for i, it := range wf.Items {
		if it.HITID != domain.HITPending {
			t.Fatalf("条目 %d 不应被修改", i)
		}
	}
}

func TestExecute_JournalFailureStillCommitsThenStops(t *testing.T) {
	wf := cropWorkflow(t, 20)
	sub := &stubSubmitter{failAt: -1}
	j := &memJournal{err: errors.New("disk full")}

	rr, err := Execute(context.Background(), Run{HITs: 2, Assignments: 7}, wf, sub, j, nil)
	if Code(err) != domain.ErrCodeStoreFailed {
		t.Fatalf("期望 store_failed，实际 %v", err)
	}
	if len(sub.calls) != 1 {
		t.Fatalf("流水失败后不应继续提交：calls=%d", len(sub.calls))
	}
	if wf.Items[0].HITID != "HIT0" {
		t.Fatalf("HIT 已创建，条目必须回写：%+v", wf.Items[0])
	}
	if rr.Batches[0].Status != domain.StatusSubmitted || rr.Batches[0].ErrorCode != domain.ErrCodeStoreFailed {
		t.Fatalf("batch 0 结果不符合预期：%+v", rr.Batches[0])
	}
	if rr.Batches[1].Status != domain.StatusSkipped {
		t.Fatalf("batch 1 应为 skipped：%+v", rr.Batches[1])
	}
}

func TestExecute_CanceledContextStopsBeforeSubmit(t *testing.T) {
	wf := cropWorkflow(t, 10)
	sub := &stubSubmitter{failAt: -1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, Run{HITs: 1, Assignments: 7}, wf, sub, &memJournal{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if len(sub.calls) != 0 {
		t.Fatalf("不应提交：calls=%d", len(sub.calls))
	}
}

func TestExecute_RejectsInvalidRun(t *testing.T) {
	wf := cropWorkflow(t, 10)
	if _, err := Execute(context.Background(), Run{HITs: 1, Assignments: 0}, wf, &stubSubmitter{failAt: -1}, &memJournal{}, nil); Code(err) != domain.ErrCodeConfigInvalid {
		t.Fatalf("期望 config_invalid，实际 %v", err)
	}
	if _, err := Execute(context.Background(), Run{HITs: 1, Assignments: 1}, wf, nil, nil, nil); Code(err) != domain.ErrCodeConfigInvalid {
		t.Fatalf("期望 config_invalid，实际 %v", err)
	}
}
