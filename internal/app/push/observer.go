package push

import "github.com/John-Robertt/photohit/internal/domain"

// Observer 用于把提交进度从核心流程中解耦出来。
//
// 约束：push 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// 提交是严格串行的，事件按 batch 顺序到达。
type Observer interface {
	// OnStart 在选择与组装完成后、第一次提交前调用。
	OnStart(kind domain.TaskKind, selected, batches int)
	// OnBatchStart 在某个 batch 提交前调用（dry-run 同样调用）。
	OnBatchStart(b domain.Batch, total int)
	// OnBatchDone 在某个 batch 有结局后调用（submitted/planned/failed）。
	OnBatchDone(b domain.Batch, total int, res domain.BatchResult)
}

type nopObserver struct{}

func (nopObserver) OnStart(domain.TaskKind, int, int)                 {}
func (nopObserver) OnBatchStart(domain.Batch, int)                    {}
func (nopObserver) OnBatchDone(domain.Batch, int, domain.BatchResult) {}
