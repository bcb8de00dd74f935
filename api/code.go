package api

import "github.com/djeada/Testio/pkg/errors"

// ResCode 定义返回码类型
type ResCode int64

const (
	CodeSuccess          ResCode = 0
	CodeInvalidParam     ResCode = 4000
	CodeInvalidConfig    ResCode = 4001
	CodeProgramNotFound  ResCode = 4004
	CodeRequestTooLarge  ResCode = 4013
	CodeRequestCanceled  ResCode = 4099
	CodeServerBusy       ResCode = 5000
	CodeInternalError    ResCode = 5001
	CodeStorageError     ResCode = 5002
	CodeExecutionTimeout ResCode = 5004
)

var codeMsgMap = map[ResCode]string{
	CodeSuccess:          "success",
	CodeInvalidParam:     "请求参数错误",
	CodeInvalidConfig:    "评测配置错误",
	CodeProgramNotFound:  "程序不存在",
	CodeRequestTooLarge:  "请求体过大",
	CodeRequestCanceled:  "请求已取消",
	CodeServerBusy:       "服务繁忙",
	CodeInternalError:    "服务内部错误",
	CodeStorageError:     "存储服务错误",
	CodeExecutionTimeout: "执行超时",
}

func (c ResCode) Msg() string {
	msg, ok := codeMsgMap[c]
	if !ok {
		msg = codeMsgMap[CodeServerBusy]
	}
	return msg
}

// CodeFromError 把评测错误映射为返回码
func CodeFromError(err error) ResCode {
	code := errors.GetErrorCode(err)
	switch {
	case code == errors.ErrCodeProgramNotFound:
		return CodeProgramNotFound
	case errors.IsConfigError(err):
		return CodeInvalidConfig
	case code == errors.ErrCodeCanceled:
		return CodeRequestCanceled
	case code == errors.ErrCodeResourceExhausted:
		return CodeServerBusy
	case code == errors.ErrCodeTimeout, code == errors.ErrCodeExecutionTimeout:
		return CodeExecutionTimeout
	case code >= errors.ErrCodeStorage:
		return CodeStorageError
	}
	return CodeInternalError
}
