package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode int

// 系统错误 (1000-1999)
const (
	ErrCodeSystem ErrorCode = 1000 + iota
	ErrCodeInternal
	ErrCodeTimeout
	ErrCodeResourceExhausted
	ErrCodeNotFound
	ErrCodeCanceled
)

// 配置错误 (2000-2999)，整个运行在启动任何进程之前失败
const (
	ErrCodeInvalidConfig ErrorCode = 2000 + iota
	ErrCodeMissingParam
	ErrCodeInvalidTestCase
	ErrCodeProgramNotFound
)

// 编译错误 (3000-3999)，该程序的所有用例判为 ERROR
const (
	ErrCodeCompile ErrorCode = 3000 + iota
	ErrCodeCompileTimeout
)

// 运行错误 (4000-4999)
const (
	ErrCodeSpawn ErrorCode = 4000 + iota
	ErrCodeExecutionTimeout
	ErrCodeBrokenPipe
	ErrCodeIO
)

// 比较错误 (5000-5999)，只降级为 MISMATCH，不向外传播
const (
	ErrCodeBadPattern ErrorCode = 5000 + iota
	ErrCodeMatchTimeout
)

// 存储错误 (6000-6999)
const (
	ErrCodeStorage ErrorCode = 6000 + iota
	ErrCodeFileNotFound
	ErrCodeFileDownloadFailed
	ErrCodeCacheFailed
)

// JudgeError 评测引擎错误
type JudgeError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *JudgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持错误链
func (e *JudgeError) Unwrap() error {
	return e.Err
}

// New 创建新的评测错误
func New(code ErrorCode, message string) *JudgeError {
	return &JudgeError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装已有错误
func Wrap(code ErrorCode, message string, err error) *JudgeError {
	return &JudgeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 预定义的错误创建函数

// NewConfigError 创建配置错误，field 为出错字段的路径，例如 tests[2].timeout
func NewConfigError(field string, reason string) *JudgeError {
	return New(ErrCodeInvalidConfig, fmt.Sprintf("%s: %s", field, reason))
}

// NewCompileError 创建编译错误
func NewCompileError(message string, err error) *JudgeError {
	return Wrap(ErrCodeCompile, message, err)
}

// NewSpawnError 创建进程启动错误
func NewSpawnError(command string, err error) *JudgeError {
	return Wrap(ErrCodeSpawn, fmt.Sprintf("无法启动 %s", command), err)
}

// NewStorageError 创建存储错误
func NewStorageError(message string, err error) *JudgeError {
	return Wrap(ErrCodeStorage, message, err)
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(operation string) *JudgeError {
	return New(ErrCodeExecutionTimeout, fmt.Sprintf("操作超时: %s", operation))
}

// NewPatternError 创建正则表达式错误
func NewPatternError(pattern string, err error) *JudgeError {
	return Wrap(ErrCodeBadPattern, fmt.Sprintf("无效的正则表达式 %q", pattern), err)
}

// IsErrorCode 判断错误链中是否存在指定错误码
func IsErrorCode(err error, code ErrorCode) bool {
	var judgeErr *JudgeError
	for err != nil {
		if !stderrors.As(err, &judgeErr) {
			return false
		}
		if judgeErr.Code == code {
			return true
		}
		err = judgeErr.Err
	}
	return false
}

// GetErrorCode 获取错误码
func GetErrorCode(err error) ErrorCode {
	var judgeErr *JudgeError
	if stderrors.As(err, &judgeErr) {
		return judgeErr.Code
	}
	return ErrCodeInternal
}

// IsConfigError 判断是否为配置类错误
func IsConfigError(err error) bool {
	code := GetErrorCode(err)
	return code >= ErrCodeInvalidConfig && code < ErrCodeCompile
}
