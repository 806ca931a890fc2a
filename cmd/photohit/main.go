package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"

	"github.com/John-Robertt/photohit/internal/app/push"
	"github.com/John-Robertt/photohit/internal/config"
	"github.com/John-Robertt/photohit/internal/domain"
	"github.com/John-Robertt/photohit/internal/infra/cache"
	"github.com/John-Robertt/photohit/internal/infra/httpx"
	"github.com/John-Robertt/photohit/internal/qualification"
	"github.com/John-Robertt/photohit/internal/requester"
	"github.com/John-Robertt/photohit/internal/workflow"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "push":
		code = pushCmd(args[1:])
	case "qual":
		code = qualCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

func pushCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printPushUsage()
			return 0
		}
	}

	pa, err := parseArgs(args, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printPushUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	started := time.Now().UTC()
	eff, err := config.LoadEffective(cwd, pa.cli())
	if err != nil {
		emitReport(failedReport(pa.seed(cwd), started, config.Code(err), err))
		return 1
	}
	seed := reportSeed(eff)

	wf, err := workflow.Open(eff.Kind, eff.DataDir)
	if err != nil {
		emitReport(failedReport(seed, started, domain.ErrCodeStoreFailed, err))
		return 1
	}
	seed.Store = wf.StorePath()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := push.Run{
		HITs:        eff.HITs,
		Assignments: eff.Assign,
		Sandbox:     !eff.Prod,
		DryRun:      eff.DryRun,
	}

	// dry-run 不触网：不解析凭证、不查资格类型。
	var sub push.Submitter
	if !eff.DryRun {
		client, err := newClient(ctx, eff)
		if err != nil {
			emitReport(failedReport(seed, started, domain.ErrCodeConfigInvalid, err))
			return 1
		}
		res, err := qualification.Resolve(ctx, client, qualification.PhotoQuality, func() ([]qualification.TestQuestion, error) {
			return qualification.LoadTest(eff.QualificationTest)
		})
		if err != nil {
			emitReport(failedReport(seed, started, domain.ErrCodeQualificationFailed, err))
			return 1
		}
		run.Qualification = []types.QualificationRequirement{qualification.Requirement(res.ID, qualification.PhotoQuality)}
		sub = client
	}

	journal := cache.New(eff.DataDir, eff.DryRun)

	progressW, interactive := pickProgressWriter()
	// 非交互时 stdout 留给 JSON 报告，逐 batch 结果仍以纯文本写 stderr。
	var obs push.Observer = newLineObserver(os.Stderr)
	if interactive {
		obs = newProgressUI(progressW, eff)
	}

	rr, runErr := push.Execute(ctx, run, wf, sub, journal, obs)

	// 中止时之前成功的 batch 已回写内存，同样必须落盘，否则重跑会重复提交。
	failed := runErr != nil
	if !eff.DryRun {
		if err := wf.Save(); err != nil {
			failed = true
			rr.Batches = append(rr.Batches, synthetic(domain.ErrCodeStoreFailed, fmt.Sprintf("写回存储失败：%v", err)))
			rr.Finalize()
		}
		if err := journal.WriteReport(rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			failed = true
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff, rr)
	}
	if failed {
		return 1
	}
	return 0
}

func qualCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printQualUsage()
			return 0
		}
	}

	pa, err := parseArgs(args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printQualUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	eff, err := config.LoadEffective(cwd, pa.cli())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := newClient(ctx, eff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s：%v\n", domain.ErrCodeConfigInvalid, err)
		return 1
	}
	res, err := qualification.Resolve(ctx, client, qualification.PhotoQuality, func() ([]qualification.TestQuestion, error) {
		return qualification.LoadTest(eff.QualificationTest)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s：%s\n", domain.ErrCodeQualificationFailed, requester.Describe(err))
		return 1
	}

	state := "existing"
	if res.Created {
		state = "created"
	}
	fmt.Fprintf(os.Stdout, "%s %s (%s)\n", res.ID, state, endpointLabel(eff.Prod))
	return 0
}

func newClient(ctx context.Context, eff config.EffectiveConfig) (*mturk.Client, error) {
	cfg, err := requester.LoadConfig(ctx, eff.AccessKey, eff.SecretKey)
	if err != nil {
		return nil, err
	}
	hc, err := httpx.NewAPIClient(eff.ProxyURL)
	if err != nil {
		return nil, err
	}
	return requester.New(cfg, requester.Endpoint(eff.Prod), hc)
}

type cmdArgs struct {
	ConfigPath string

	DataDir    string
	DataDirSet bool

	HITs    int
	HITsSet bool

	Assign    int
	AssignSet bool

	Prod    bool
	ProdSet bool

	Kind    domain.TaskKind
	KindSet bool

	AccessKey string
	SecretKey string

	DryRun bool
}

func (a cmdArgs) cli() config.CLIArgs {
	return config.CLIArgs{
		ConfigPath: a.ConfigPath,
		DataDir:    a.DataDir,
		DataDirSet: a.DataDirSet,
		HITs:       a.HITs,
		HITsSet:    a.HITsSet,
		Assign:     a.Assign,
		AssignSet:  a.AssignSet,
		Prod:       a.Prod,
		ProdSet:    a.ProdSet,
		Kind:       a.Kind,
		KindSet:    a.KindSet,
		AccessKey:  a.AccessKey,
		SecretKey:  a.SecretKey,
		DryRun:     a.DryRun,
	}
}

// seed 用于配置加载失败时的报告：只能用 CLI 已知的信息。
func (a cmdArgs) seed(cwd string) domain.RunReport {
	kind := config.DefaultKind
	if a.KindSet {
		kind = a.Kind
	}
	return domain.RunReport{
		Kind:    kind,
		DryRun:  a.DryRun,
		Sandbox: !(a.ProdSet && a.Prod),
		Store:   cwd,
	}
}

// parseArgs 解析 push/qual 的参数；withPush=false 时拒绝只属于 push 的参数。
// 同时支持 "--name value" 与 "--name=value"。
func parseArgs(args []string, withPush bool) (cmdArgs, error) {
	a := cmdArgs{}

	for i := 0; i < len(args); i++ {
		name, val, hasVal := strings.Cut(args[i], "=")
		if !strings.HasPrefix(name, "-") {
			return cmdArgs{}, fmt.Errorf("多余的参数 %q", args[i])
		}

		value := func() (string, error) {
			if hasVal {
				return val, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s 需要一个值", name)
			}
			i++
			return args[i], nil
		}
		pushOnly := func() error {
			if !withPush {
				return fmt.Errorf("未知参数 %q", name)
			}
			return nil
		}

		switch name {
		case "--dry-run":
			if err := pushOnly(); err != nil {
				return cmdArgs{}, err
			}
			if hasVal {
				b, err := strconv.ParseBool(val)
				if err != nil {
					return cmdArgs{}, fmt.Errorf("--dry-run 只能是 true 或 false，实际是 %q", val)
				}
				a.DryRun = b
			} else {
				a.DryRun = true
			}
		case "--hits", "--assign":
			if err := pushOnly(); err != nil {
				return cmdArgs{}, err
			}
			v, err := value()
			if err != nil {
				return cmdArgs{}, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return cmdArgs{}, fmt.Errorf("%s 需要整数，实际是 %q", name, v)
			}
			if name == "--hits" {
				a.HITs, a.HITsSet = n, true
			} else {
				a.Assign, a.AssignSet = n, true
			}
		case "-t", "--type":
			if err := pushOnly(); err != nil {
				return cmdArgs{}, err
			}
			v, err := value()
			if err != nil {
				return cmdArgs{}, err
			}
			k, err := domain.ParseTaskKind(v)
			if err != nil {
				return cmdArgs{}, err
			}
			a.Kind, a.KindSet = k, true
		case "--prod":
			v, err := value()
			if err != nil {
				return cmdArgs{}, err
			}
			switch strings.ToLower(v) {
			case "y", "yes":
				a.Prod = true
			case "n", "no":
				a.Prod = false
			default:
				return cmdArgs{}, fmt.Errorf("--prod 只能是 y 或 n，实际是 %q", v)
			}
			a.ProdSet = true
		case "--access", "--secret", "--data", "--config":
			v, err := value()
			if err != nil {
				return cmdArgs{}, err
			}
			switch name {
			case "--access":
				a.AccessKey = v
			case "--secret":
				a.SecretKey = v
			case "--data":
				a.DataDir, a.DataDirSet = v, true
			case "--config":
				a.ConfigPath = v
			}
		default:
			return cmdArgs{}, fmt.Errorf("未知参数 %q", name)
		}
	}
	return a, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  photohit push [--hits N] [--assign N] [--prod y|n] [-t|--type c|r] [--dry-run] ...
  photohit qual [--prod y|n] ...

命令：
  push   提交待处理条目为 HIT，并回写条目状态
  qual   查找或创建资格类型（含资格测试）

使用 "photohit push --help" 查看详细说明。
`)
}

func printPushUsage() {
	fmt.Fprint(os.Stdout, `用法：
  photohit push [--hits N] [--assign N] [--prod y|n] [-t|--type c|r]
                [--access KEY] [--secret SECRET] [--data DIR] [--config FILE] [--dry-run]

参数：
  --hits      本次最多提交的 HIT 数（默认 2，每个 HIT 10 题）
  --assign    每个 HIT 的 assignment 数（默认 7）
  --prod      y 提交到正式环境；默认 n（sandbox）
  -t, --type  r=ranking（默认）或 c=cropping
  --access    AWS access key（与 --secret 成对；未提供则走 AWS 默认凭证链）
  --secret    AWS secret key
  --data      数据目录（存储文件、cache/ 所在目录；默认当前目录）
  --config    配置文件（默认读取 ./photohit.yaml，若存在）
  --dry-run   只组装并报告，不触网、不写盘
  -h, --help  显示帮助
`)
}

func printQualUsage() {
	fmt.Fprint(os.Stdout, `用法：
  photohit qual [--prod y|n] [--access KEY] [--secret SECRET] [--data DIR] [--config FILE]

不存在时用 <data>/qual_question.json（或配置项 qualification_test）创建资格测试。
`)
}

func reportSeed(eff config.EffectiveConfig) domain.RunReport {
	return domain.RunReport{
		Kind:          eff.Kind,
		Store:         eff.DataDir,
		DryRun:        eff.DryRun,
		Sandbox:       !eff.Prod,
		RequestedHITs: eff.HITs,
		Assignments:   eff.Assign,
	}
}

func failedReport(rr domain.RunReport, started time.Time, code string, err error) domain.RunReport {
	rr.StartedAt = started
	rr.FinishedAt = time.Now().UTC()
	rr.Batches = []domain.BatchResult{synthetic(code, requester.Describe(err))}
	rr.Finalize()
	return rr
}

func synthetic(code, msg string) domain.BatchResult {
	return domain.BatchResult{
		Batch:     -1,
		Indexes:   []int{},
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

func emitReport(rr domain.RunReport) {
	summary := func(w io.Writer) {
		fmt.Fprintf(w, "完成：submitted=%d planned=%d failed=%d skipped=%d\n",
			rr.Summary.Submitted, rr.Summary.Planned, rr.Summary.Failed, rr.Summary.Skipped,
		)
	}

	if isTTY(os.Stdout) {
		summary(os.Stdout)
		for _, b := range rr.Batches {
			if b.Status != domain.StatusFailed && b.ErrorCode == "" {
				continue
			}
			key := "run"
			if b.Batch >= 0 {
				key = fmt.Sprintf("batch %d", b.Batch)
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, b.ErrorCode, b.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	summary(os.Stderr)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func endpointLabel(prod bool) string {
	if prod {
		return "production"
	}
	return "sandbox"
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, rr domain.RunReport) {
	if w == nil {
		return
	}
	if !eff.DryRun {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.DataDir, "cache", "report.json"))
	}
	for i := len(rr.Batches) - 1; i >= 0; i-- {
		if id := rr.Batches[i].HITTypeID; id != "" {
			fmt.Fprintf(w, "preview: %s\n", requester.PreviewURL(eff.Prod, id))
			break
		}
	}
}
