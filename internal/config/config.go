package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/photohit/internal/domain"
)

// FileName 是工作目录下可选的配置文件名。
const FileName = "photohit.yaml"

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	DefaultHITs   = 2
	DefaultAssign = 7
	DefaultKind   = domain.KindRanking

	// DefaultQualificationTest 相对数据目录。
	DefaultQualificationTest = "qual_question.json"
)

// CLIArgs 保留“是否显式指定”的信息，保证 --prod n 能覆盖配置文件里的 prod: true。
type CLIArgs struct {
	// ConfigPath 非空时必须存在；为空时尝试 <cwd>/photohit.yaml（可选）。
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

// FileConfig 对应 photohit.yaml。
type FileConfig struct {
	DataDir           string       `yaml:"data_dir"`
	HITs              *int         `yaml:"hits"`
	Assign            *int         `yaml:"assign"`
	Prod              *bool        `yaml:"prod"`
	Type              string       `yaml:"type"`
	AccessKey         string       `yaml:"access_key"`
	SecretKey         string       `yaml:"secret_key"`
	Proxy             *ProxyConfig `yaml:"proxy"`
	QualificationTest string       `yaml:"qualification_test"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

// EffectiveConfig 是合并并规范化后的最终配置；路径均为绝对路径。
type EffectiveConfig struct {
	DataDir string

	HITs   int
	Assign int
	Prod   bool
	Kind   domain.TaskKind
	DryRun bool

	// AccessKey/SecretKey 同时为空时走 AWS 默认凭证链。
	AccessKey string
	SecretKey string

	ProxyURL          string
	QualificationTest string

	// ConfigFile 是实际读取到的配置文件；未读取时为空。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件并与 CLI 参数合并。
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认值。
// data_dir 与 qualification_test 的相对路径：配置文件里的相对于配置文件所在目录，CLI 的相对于 cwd。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := strings.TrimSpace(cli.ConfigPath) != ""
	if required {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	eff, err := merge(cwdAbs, cli, fc, filepath.Dir(cfgPath))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if exists {
		eff.ConfigFile = cfgPath
	}
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgDir string) (EffectiveConfig, error) {
	dataDir := cwdAbs
	if cli.DataDirSet {
		dataDir = absCleanFrom(cwdAbs, cli.DataDir)
	} else if strings.TrimSpace(fc.DataDir) != "" {
		dataDir = absCleanFrom(cfgDir, fc.DataDir)
	}

	hits := DefaultHITs
	if cli.HITsSet {
		hits = cli.HITs
	} else if fc.HITs != nil {
		hits = *fc.HITs
	}
	if hits < 0 {
		return EffectiveConfig{}, fmt.Errorf("hits 不能为负：%d", hits)
	}

	assign := DefaultAssign
	if cli.AssignSet {
		assign = cli.Assign
	} else if fc.Assign != nil {
		assign = *fc.Assign
	}
	if assign < 1 {
		return EffectiveConfig{}, fmt.Errorf("assign 必须 >= 1：%d", assign)
	}

	prod := false
	if cli.ProdSet {
		prod = cli.Prod
	} else if fc.Prod != nil {
		prod = *fc.Prod
	}

	kind := DefaultKind
	if cli.KindSet {
		kind = cli.Kind
	} else if strings.TrimSpace(fc.Type) != "" {
		k, err := domain.ParseTaskKind(fc.Type)
		if err != nil {
			return EffectiveConfig{}, err
		}
		kind = k
	}

	// 凭证成对覆盖：CLI 给了任意一个就不再读配置文件里的。
	access, secret := fc.AccessKey, fc.SecretKey
	if cli.AccessKey != "" || cli.SecretKey != "" {
		access, secret = cli.AccessKey, cli.SecretKey
	}
	access, secret = strings.TrimSpace(access), strings.TrimSpace(secret)
	if (access == "") != (secret == "") {
		return EffectiveConfig{}, errors.New("access key 与 secret key 必须同时提供")
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%q", proxyURL)
		}
	}

	qual := filepath.Join(dataDir, DefaultQualificationTest)
	if strings.TrimSpace(fc.QualificationTest) != "" {
		qual = absCleanFrom(cfgDir, fc.QualificationTest)
	}

	return EffectiveConfig{
		DataDir:           dataDir,
		HITs:              hits,
		Assign:            assign,
		Prod:              prod,
		Kind:              kind,
		DryRun:            cli.DryRun,
		AccessKey:         access,
		SecretKey:         secret,
		ProxyURL:          proxyURL,
		QualificationTest: qual,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件；exists 表示文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
