package requester

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
)

const (
	SandboxEndpoint    = "https://mturk-requester-sandbox.us-east-1.amazonaws.com"
	ProductionEndpoint = "https://mturk-requester.us-east-1.amazonaws.com"

	// Region 是平台唯一的 region。
	Region = "us-east-1"
)

// Endpoint 按是否生产环境返回 API 入口。
func Endpoint(prod bool) string {
	if prod {
		return ProductionEndpoint
	}
	return SandboxEndpoint
}

// PreviewURL 返回 worker 侧预览某个 HIT 类型的链接（便于人工核对）。
func PreviewURL(prod bool, hitTypeID string) string {
	host := "https://workersandbox.mturk.com"
	if prod {
		host = "https://worker.mturk.com"
	}
	return host + "/projects/" + hitTypeID + "/tasks"
}

// New 构造 requester API 客户端。
//
// 约束：
// - 每个操作恰好一次 HTTP 调用（NopRetryer），不限速
// - 连接状态显式持有（endpoint/credentials/http client），不依赖进程级全局配置
func New(cfg aws.Config, endpoint string, hc *http.Client) (*mturk.Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("requester: endpoint 不能为空")
	}
	if hc == nil {
		return nil, errors.New("requester: http client 不能为空")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("requester: credentials 不能为空")
	}
	return mturk.NewFromConfig(cfg, func(o *mturk.Options) {
		o.Region = Region
		o.BaseEndpoint = aws.String(endpoint)
		o.HTTPClient = hc
		o.Retryer = aws.NopRetryer{}
	}), nil
}
