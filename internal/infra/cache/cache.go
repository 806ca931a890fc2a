package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/John-Robertt/photohit/internal/domain"
	"github.com/John-Robertt/photohit/internal/infra/fsx"
)

// Store 提供 <data>/cache/ 下的 HIT 流水与运行报告读写。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - 每个 HIT 一份记录，写入后不覆盖
type Store struct {
	Root     string // <data>（数据目录）
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// HITRecord 是一次成功 CreateHIT 的本地留痕。
// 记录集只在运行结束时整体写回；若进程中途崩溃，可据此人工找回已创建的 HIT。
type HITRecord struct {
	HITID       string          `json:"hit_id"`
	Kind        domain.TaskKind `json:"kind"`
	Sandbox     bool            `json:"sandbox"`
	Batch       int             `json:"batch"`
	Indexes     []int           `json:"indexes"`
	Assignments int             `json:"assignments"`
	Reward      string          `json:"reward"`
	CreatedAt   time.Time       `json:"created_at"`
	Question    string          `json:"question"`
}

// HITPath 返回 HIT 流水记录的绝对路径。
func (s Store) HITPath(hitID string) (string, error) {
	id, err := cleanHITID(hitID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "cache", "hits", id+".json"), nil
}

// ReportPath 返回运行报告的绝对路径。
func (s Store) ReportPath() string {
	return filepath.Join(s.Root, "cache", "report.json")
}

// WriteHIT 写入一条 HIT 流水；同名记录已存在时返回 os.ErrExist。
func (s Store) WriteHIT(rec HITRecord) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.HITPath(rec.HITID)
	if err != nil {
		return err
	}
	return fsx.WriteJSON(path, rec, fsx.NoOverwrite)
}

// WriteReport 覆盖写入 <data>/cache/report.json。
func (s Store) WriteReport(rr domain.RunReport) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	return fsx.WriteJSON(s.ReportPath(), rr, fsx.Replace)
}

var hitIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func cleanHITID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("hit_id 不能为空")
	}
	// HIT ID 由平台生成（大写字母+数字）；这里只做路径安全约束。
	if !hitIDRE.MatchString(id) {
		return "", fmt.Errorf("非法 hit_id：%q", id)
	}
	return id, nil
}
