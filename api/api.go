// Package api 定义 HTTP 接口统一的返回结构与返回码
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope 所有接口都以 HTTP 200 返回该结构，评测是否出错看 code：
//
//	{"code": 0, "message": "success", "data": {"run_id": ..., "programs": [...]}}
//
// code 非 0 时 data 为 null，message 为错误详情
type Envelope[T any] struct {
	Code    ResCode `json:"code"`
	Message string  `json:"message"`
	Data    T       `json:"data"`
}

func respond[T any](c *gin.Context, code ResCode, msg string, data T) {
	c.JSON(http.StatusOK, &Envelope[T]{
		Code:    code,
		Message: msg,
		Data:    data,
	})
}

// ResponseError 返回码自带的提示信息
func ResponseError(c *gin.Context, code ResCode) {
	respond[any](c, code, code.Msg(), nil)
}

// ResponseErrorWithMsg 例如请求参数校验失败时附带具体字段
func ResponseErrorWithMsg(c *gin.Context, code ResCode, msg string) {
	respond[any](c, code, msg, nil)
}

// ResponseJudgeError 配置错误、编译错误等按错误码映射为返回码
func ResponseJudgeError(c *gin.Context, err error) {
	ResponseErrorWithMsg(c, CodeFromError(err), err.Error())
}

// ResponseSuccess data 通常为评测报告或监控快照
func ResponseSuccess[T any](c *gin.Context, data T) {
	respond(c, CodeSuccess, CodeSuccess.Msg(), data)
}
