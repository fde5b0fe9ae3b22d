package httpapi

// Result 统一响应信封
// - code: ResultSuccess = 2000
// - type: 'success' | 'error'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

// OkMessage 带提示信息的成功响应（创建/更新/删除类操作）
func OkMessage[T any](message string, result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: message, Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// ErrorResult 错误响应
// - errors: 字段级校验错误（422）
// - redirect_to: 需要前端跳转时给出（如原管理员失效后回到登录页）
type ErrorResult struct {
	Code       int               `json:"code"`
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	Result     any               `json:"result"`
	Errors     map[string]string `json:"errors,omitempty"`
	RedirectTo string            `json:"redirect_to,omitempty"`
}
