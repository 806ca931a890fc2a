package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/John-Robertt/photohit/internal/domain"
)

// CropRecord 是裁切定义数据集中的一条记录（源图 + 裁切框）。
// 本工具只用 PhotoID/URL 建立“源图 URL”查找表。
type CropRecord struct {
	PhotoID  domain.PhotoID `json:"photo_id"`
	URL      string         `json:"url"`
	Username string         `json:"username"`
	X        int            `json:"x"`
	Y        int            `json:"y"`
	W        int            `json:"w"`
	H        int            `json:"h"`
}

// SourceMissingError 表示 ranking 条目的 photo_id 在查找表中不存在（数据完整性问题，致命）。
type SourceMissingError struct {
	PhotoID string
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("源图查找表中不存在 photo_id=%q", e.PhotoID)
}

// Sources 是 photo_id → 源图 URL 的查找表，每次运行只构建一次。
type Sources map[string]string

// URL 返回 photoID 对应的源图 URL；缺失时返回 *SourceMissingError。
func (s Sources) URL(photoID string) (string, error) {
	u, ok := s[photoID]
	if !ok || strings.TrimSpace(u) == "" {
		return "", &SourceMissingError{PhotoID: photoID}
	}
	return u, nil
}

// LoadSources 读取裁切定义数据集并建立查找表；同一 photo_id 多次出现时以最后一条为准。
func LoadSources(path string) (Sources, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Op: "load", Path: path, Err: err}
	}
	var recs []CropRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, &Error{Op: "load", Path: path, Err: err}
	}
	out := make(Sources, len(recs))
	for _, r := range recs {
		out[string(r.PhotoID)] = r.URL
	}
	return out, nil
}
