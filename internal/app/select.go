package app

import "github.com/John-Robertt/photohit/internal/domain"

// Pender 是“可被选择”的条目：RankItem / CropItem 都满足。
type Pender interface {
	Pending() bool
}

// SelectPending 按存储顺序挑出待提交条目的下标，凑够 target 个或遍历完即停止。
//
// - 待提交条目不足 target：返回全部，不报错
// - target<=0：返回空
func SelectPending[T Pender](items []T, target int) []int {
	if target <= 0 {
		return []int{}
	}
	out := make([]int, 0, min(target, len(items)))
	for i := range items {
		if !items[i].Pending() {
			continue
		}
		out = append(out, i)
		if len(out) == target {
			break
		}
	}
	return out
}

// BatchCount 返回 n 个条目按 size 切分后的 batch 数（向上取整）。
// 调用方必须用真实选择数量重算，而不是沿用请求的 HIT 数。
func BatchCount(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Partition 把已选下标按 size 切成连续的 batch（保持顺序，最后一个可能不足 size）。
func Partition(indexes []int, size int) []domain.Batch {
	count := BatchCount(len(indexes), size)
	batches := make([]domain.Batch, 0, count)
	for i := 0; i < count; i++ {
		lo := i * size
		hi := min(lo+size, len(indexes))
		batches = append(batches, domain.Batch{
			Index:   i,
			Indexes: append([]int(nil), indexes[lo:hi]...),
		})
	}
	return batches
}
