package requester

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// Describe 把 SDK 错误压成一行写进报告："<操作>: HTTP <状态> <错误码>: <信息>"。
// 非平台侧拒绝（网络、超时、取消）原样返回 err.Error()。
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return err.Error()
	}

	msg := strings.TrimSpace(ae.ErrorMessage())
	if msg == "" {
		msg = "(无错误信息)"
	}
	head := ae.ErrorCode()
	var st interface{ HTTPStatusCode() int }
	if errors.As(err, &st) {
		head = fmt.Sprintf("HTTP %d %s", st.HTTPStatusCode(), head)
	}
	var oe *smithy.OperationError
	if errors.As(err, &oe) {
		head = oe.Operation() + ": " + head
	}
	return head + ": " + msg
}
