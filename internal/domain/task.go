package domain

import (
	"fmt"
	"strings"
)

// TaskKind 标识两类并行的提交流程。
type TaskKind string

const (
	KindRanking  TaskKind = "ranking"
	KindCropping TaskKind = "cropping"
)

// ParseTaskKind 接受完整名称或 CLI 简写（r/c）。
func ParseTaskKind(s string) (TaskKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "ranking":
		return KindRanking, nil
	case "c", "cropping":
		return KindCropping, nil
	default:
		return "", fmt.Errorf("task type 只能是 r(ranking) 或 c(cropping)，实际是 %q", s)
	}
}
