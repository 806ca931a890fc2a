package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/John-Robertt/photohit/internal/domain"
	"github.com/John-Robertt/photohit/internal/infra/fsx"
)

// 数据目录下的固定文件名。
const (
	RankFile    = "mturk_rank_db.json"
	CropFile    = "mturk_crop_db.json"
	SourcesFile = "cropping_results.json"
)

// Error 表示记录集读写失败（整体失败，不做部分恢复）。
type Error struct {
	Op   string // "load" / "save"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %q 失败：%v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// LoadRank 一次性读入 ranking 记录集。
func LoadRank(path string) ([]domain.RankItem, error) {
	items, err := load[domain.RankItem](path)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if err := checkState(items[i].ItemState); err != nil {
			return nil, &Error{Op: "load", Path: path, Err: fmt.Errorf("第 %d 条：%w", i, err)}
		}
	}
	return items, nil
}

// SaveRank 整体写回 ranking 记录集（原子替换）。
func SaveRank(path string, items []domain.RankItem) error { return save(path, items) }

// LoadCrop 一次性读入 cropping 记录集。
func LoadCrop(path string) ([]domain.CropItem, error) {
	items, err := load[domain.CropItem](path)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if err := checkState(items[i].ItemState); err != nil {
			return nil, &Error{Op: "load", Path: path, Err: fmt.Errorf("第 %d 条：%w", i, err)}
		}
	}
	return items, nil
}

// SaveCrop 整体写回 cropping 记录集（原子替换）。
func SaveCrop(path string, items []domain.CropItem) error { return save(path, items) }

// checkState 拒绝会被静默跳过的坏记录：hit_id 为空既不是哨兵也不是真实 HIT。
func checkState(s domain.ItemState) error {
	if strings.TrimSpace(s.URL) == "" {
		return errors.New("url 为空")
	}
	if strings.TrimSpace(s.HITID) == "" {
		return fmt.Errorf("hit_id 为空（未提交应为 %q）", domain.HITPending)
	}
	if s.NumAssignment < 0 {
		return fmt.Errorf("num_assignment 不能为负：%d", s.NumAssignment)
	}
	return nil
}

func load[T any](path string) ([]T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Op: "load", Path: path, Err: err}
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, &Error{Op: "load", Path: path, Err: err}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func save[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	if err := fsx.WriteJSON(path, items, fsx.Replace); err != nil {
		return &Error{Op: "save", Path: path, Err: err}
	}
	return nil
}
