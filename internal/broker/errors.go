package broker

import (
	"errors"
	"fmt"
)

// TransportError 为网络层失败（超时、连接失败、非 2xx 响应），
// 调用方可自行决定重试。
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("broker %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError 为传输成功但券商返回业务失败码，
// 对本次尝试是终态，不自动重试。
type RejectionError struct {
	Op         string
	ResultCode string
	Message    string
	Raw        []byte
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("broker %s rejected: code=%s msg=%s", e.Op, e.ResultCode, e.Message)
}

// ErrAuthExpired 表示令牌失效；下一次调用会触发重新签发，
// 当前调用不在内部重试。
var ErrAuthExpired = errors.New("broker auth token expired")

// IsRetryable 仅传输错误可重试。
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
