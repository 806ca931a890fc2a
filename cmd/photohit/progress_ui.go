package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/photohit/internal/app/push"
	"github.com/John-Robertt/photohit/internal/config"
	"github.com/John-Robertt/photohit/internal/domain"
)

var (
	_ push.Observer = (*progressUI)(nil)
	_ push.Observer = (*lineObserver)(nil)
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	planStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// progressUI 把提交事件渲染为逐行输出（写 stderr，不污染 stdout 的 JSON 契约）。
type progressUI struct {
	w   io.Writer
	eff config.EffectiveConfig
	bar progress.Model

	mu        sync.Mutex
	startedAt time.Time
	done      int
}

func newProgressUI(w io.Writer, eff config.EffectiveConfig) *progressUI {
	return &progressUI{
		w:   w,
		eff: eff,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
	}
}

func (p *progressUI) OnStart(kind domain.TaskKind, selected, batches int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.startedAt = now

	mode := ""
	if p.eff.DryRun {
		mode = ", dry-run"
	}
	fmt.Fprintf(p.w, "[%s] photohit push (%s, %s%s)\n", now.Format("15:04:05"), kind, endpointLabel(p.eff.Prod), mode)
	fmt.Fprintln(p.w, dimStyle.Render("配置（生效）:"))
	fmt.Fprintf(p.w, "  data: %s\n", p.eff.DataDir)
	fmt.Fprintf(p.w, "  hits: %d  assign: %d\n", p.eff.HITs, p.eff.Assign)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(p.eff.ProxyURL))
	if p.eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", p.eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "选择: items=%d batches=%d\n\n", selected, batches)
}

func (p *progressUI) OnBatchStart(b domain.Batch, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "Pushing HIT #%d ...\n", b.Index)
	fmt.Fprintf(p.w, "%s\n", formatIndexes(b.Indexes))
}

func (p *progressUI) OnBatchDone(b domain.Batch, total int, res domain.BatchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	switch res.Status {
	case domain.StatusSubmitted:
		fmt.Fprintf(p.w, "\t%s\n", okStyle.Render("ID: "+res.HITID))
		if res.ErrorCode != "" {
			fmt.Fprintf(p.w, "\t%s\n", failStyle.Render(res.ErrorCode+": "+truncate(res.ErrorMsg, 160)))
		}
	case domain.StatusPlanned:
		fmt.Fprintf(p.w, "\t%s\n", planStyle.Render(fmt.Sprintf("PLANNED (%d 题)", len(res.Indexes))))
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "\t%s\n", failStyle.Render(res.ErrorCode+": "+truncate(res.ErrorMsg, 160)))
	}
	fmt.Fprintf(p.w, "%s %d/%d (%s)\n", p.bar.ViewAs(ratio(p.done, total)), p.done, total, formatElapsed(time.Since(p.startedAt)))
}

// lineObserver 是非交互环境下的进度输出：无颜色、无进度条，每个 batch 一行，便于日志采集。
type lineObserver struct {
	w  io.Writer
	mu sync.Mutex
}

func newLineObserver(w io.Writer) *lineObserver {
	return &lineObserver{w: w}
}

func (o *lineObserver) OnStart(kind domain.TaskKind, selected, batches int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "push %s: items=%d batches=%d\n", kind, selected, batches)
}

func (o *lineObserver) OnBatchStart(domain.Batch, int) {}

func (o *lineObserver) OnBatchDone(b domain.Batch, total int, res domain.BatchResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	line := fmt.Sprintf("batch %d/%d %s %s", b.Index, total, res.Status, formatIndexes(b.Indexes))
	if res.HITID != "" {
		line += " hit_id=" + res.HITID
	}
	if res.ErrorCode != "" {
		line += " " + res.ErrorCode + ": " + truncate(res.ErrorMsg, 160)
	}
	fmt.Fprintln(o.w, line)
}

func ratio(done, total int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(done) / float64(total)
}

// formatIndexes 按 [i, j, ...] 输出条目下标，便于人工对照存储文件。
func formatIndexes(xs []int) string {
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		parts = append(parts, fmt.Sprint(x))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
