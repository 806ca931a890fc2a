package fsx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
)

// Mode 决定目标文件已存在时的行为。
type Mode int

const (
	// Replace 覆盖已有文件（记录集整体写回、运行报告）。
	Replace Mode = iota
	// NoOverwrite 目标已存在时返回 os.ErrExist（HIT 流水：一次写入、永不覆盖）。
	NoOverwrite
)

// 测试通过替换它模拟 rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径被目录等非普通文件占用。
type PathTypeConflictError struct {
	Path string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望普通文件，实际 %s）", e.Path, e.Got)
}

// CrossDeviceError 表示 rename 遇到 EXDEV。
// 临时文件总是建在目标目录下，出现它说明目录被挂载点劫持。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘 rename 失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// WriteJSON 把 v 编码为缩进 JSON（末尾换行）后原子写入 path。
func WriteJSON(path string, v any, mode Mode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(path, append(b, '\n'), mode)
}

// WriteFile 原子写入 path：同目录临时文件，fsync，再 rename 到位。
// 进程在任意时刻中断，磁盘上要么是旧内容，要么是新内容；不会留下半截文件。
func WriteFile(path string, data []byte, mode Mode) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	if fi, err := os.Lstat(path); err == nil {
		if !fi.Mode().IsRegular() {
			return &PathTypeConflictError{Path: path, Got: fi.Mode().Type().String()}
		}
		if mode == NoOverwrite {
			return os.ErrExist
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// *os.File.Write 在短写时必返回错误，无需循环。
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, path); err != nil {
		// *os.LinkError 实现了 Unwrap，errors.Is 能直接看到底层 errno。
		if errors.Is(err, syscall.EXDEV) {
			return &CrossDeviceError{Src: tmpName, Dst: path, Err: err}
		}
		return err
	}
	syncDir(dir)
	return nil
}

// syncDir 让 rename 本身落盘；best-effort，Windows 上跳过。
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
