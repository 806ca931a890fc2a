package workflow

import (
	"fmt"
	"path/filepath"

	"github.com/John-Robertt/photohit/internal/app"
	"github.com/John-Robertt/photohit/internal/domain"
	"github.com/John-Robertt/photohit/internal/hit"
	"github.com/John-Robertt/photohit/internal/store"
)

// Workflow 把两类流程的差异（存储文件、模板、源图）限制在本包内部；
// 提交循环只依赖这一组操作。
//
// 约束：
// - Select/Payload 不修改条目
// - Commit 只在对应 HIT 创建成功后调用
// - Save 整体写回存储（一次原子写）
type Workflow interface {
	Kind() domain.TaskKind
	// StorePath 是条目存储的文件路径（用于报告追溯）。
	StorePath() string
	Select(target int) []int
	Payload(b domain.Batch) (hit.Spec, error)
	Commit(b domain.Batch, hitID string, assignments int)
	Save() error
}

// Open 按流程类型加载数据目录下的存储，返回对应的 Workflow。
// ranking 同时加载源图查找表。
func Open(kind domain.TaskKind, dataDir string) (Workflow, error) {
	switch kind {
	case domain.KindRanking:
		path := filepath.Join(dataDir, store.RankFile)
		items, err := store.LoadRank(path)
		if err != nil {
			return nil, err
		}
		src, err := store.LoadSources(filepath.Join(dataDir, store.SourcesFile))
		if err != nil {
			return nil, err
		}
		return &Rank{Path: path, Items: items, Sources: src}, nil
	case domain.KindCropping:
		path := filepath.Join(dataDir, store.CropFile)
		items, err := store.LoadCrop(path)
		if err != nil {
			return nil, err
		}
		return &Crop{Path: path, Items: items}, nil
	default:
		return nil, fmt.Errorf("未知的流程类型：%q", kind)
	}
}

func urlsOf(b domain.Batch, url func(i int) string) []string {
	out := make([]string, 0, len(b.Indexes))
	for _, i := range b.Indexes {
		out = append(out, url(i))
	}
	return out
}

// Rank 是 ranking 流程：每个 HIT 的 overview 展示源图。
type Rank struct {
	Path    string
	Items   []domain.RankItem
	Sources store.Sources
}

func (r *Rank) Kind() domain.TaskKind   { return domain.KindRanking }
func (r *Rank) StorePath() string       { return r.Path }
func (r *Rank) Select(target int) []int { return app.SelectPending(r.Items, target) }

// Payload 以 batch 首条的 photo_id 反查源图；同一 batch 内的条目默认来自同一源图。
func (r *Rank) Payload(b domain.Batch) (hit.Spec, error) {
	if len(b.Indexes) == 0 {
		return hit.Spec{}, fmt.Errorf("batch %d 为空", b.Index)
	}
	src, err := r.Sources.URL(string(r.Items[b.Indexes[0]].PhotoID))
	if err != nil {
		return hit.Spec{}, err
	}
	return hit.Build(hit.Ranking, src, urlsOf(b, func(i int) string { return r.Items[i].URL }))
}

func (r *Rank) Commit(b domain.Batch, hitID string, assignments int) {
	for p, i := range b.Indexes {
		r.Items[i].Commit(hitID, p, assignments)
	}
}

func (r *Rank) Save() error { return store.SaveRank(r.Path, r.Items) }

// Crop 是 cropping 流程：完整照片两两比较，不展示源图。
type Crop struct {
	Path  string
	Items []domain.CropItem
}

func (c *Crop) Kind() domain.TaskKind   { return domain.KindCropping }
func (c *Crop) StorePath() string       { return c.Path }
func (c *Crop) Select(target int) []int { return app.SelectPending(c.Items, target) }

func (c *Crop) Payload(b domain.Batch) (hit.Spec, error) {
	return hit.Build(hit.Cropping, "", urlsOf(b, func(i int) string { return c.Items[i].URL }))
}

func (c *Crop) Commit(b domain.Batch, hitID string, assignments int) {
	for p, i := range b.Indexes {
		c.Items[i].Commit(hitID, p, assignments)
	}
}

func (c *Crop) Save() error { return store.SaveCrop(c.Path, c.Items) }
