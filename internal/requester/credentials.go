package requester

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// LoadConfig 决定请求签名所用的 AWS 配置。
//
// - access/secret 同时非空：使用静态凭证
// - 否则：走 AWS 默认链（环境变量、~/.aws/credentials、~/.aws/config 等）
//
// 凭证在这里就取一次，缺失时尽早失败，而不是等到第一次提交。
func LoadConfig(ctx context.Context, access, secret string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(Region)}
	access = strings.TrimSpace(access)
	secret = strings.TrimSpace(secret)
	if access != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(access, secret, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("加载 AWS 默认配置失败：%w", err)
	}
	if cfg.Credentials == nil {
		return aws.Config{}, fmt.Errorf("未找到 AWS 凭证：请传入 --access/--secret 或配置 ~/.aws/credentials")
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return aws.Config{}, fmt.Errorf("未找到 AWS 凭证：请传入 --access/--secret 或配置 ~/.aws/credentials：%w", err)
	}
	return cfg, nil
}
