package handler

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/djeada/Testio/api"
	v1 "github.com/djeada/Testio/api/suite/v1"
	"github.com/djeada/Testio/internal/constants"
	"github.com/djeada/Testio/internal/model"
	"github.com/djeada/Testio/internal/service"
	"github.com/djeada/Testio/internal/task/parser"
	file_util "github.com/djeada/Testio/internal/util/file"
	"github.com/djeada/Testio/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SuiteHandler 评测接口
type SuiteHandler struct {
	runner *service.SuiteRunner
}

func NewSuiteHandler(runner *service.SuiteRunner) *SuiteHandler {
	return &SuiteHandler{runner: runner}
}

// RunHandler 执行一次评测，客户端断开时取消评测
func (h *SuiteHandler) RunHandler(c *gin.Context) {
	sub, cleanup, err := h.bind(c)
	if err != nil {
		respondBindError(c, err)
		return
	}
	defer cleanup()

	zap.L().Info("suite-run", zap.String("path", sub.Path), zap.Int("tests", len(sub.Tests)))
	report, err := h.runner.Run(c.Request.Context(), sub)
	if err != nil {
		zap.L().Error("suite-run failed", zap.Error(err))
		api.ResponseJudgeError(c, err)
		return
	}
	api.ResponseSuccess(c, report)
}

// ValidateHandler 只校验配置，不执行
func (h *SuiteHandler) ValidateHandler(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		respondBindError(c, err)
		return
	}
	sub, err := parser.Parse(body, "")
	if err != nil {
		api.ResponseJudgeError(c, err)
		return
	}
	api.ResponseSuccess(c, v1.ValidateResp{
		Valid:          true,
		Path:           sub.Path,
		RunCommand:     sub.RunCommand,
		CompileCommand: sub.CompileCommand,
		Tests:          len(sub.Tests),
	})
}

// bind 解析请求体，script_text 不为空时写入临时目录并替换 path
func (h *SuiteHandler) bind(c *gin.Context) (*model.SubmissionConfig, func(), error) {
	body, err := readBody(c)
	if err != nil {
		return nil, nil, err
	}
	sub, err := parser.Parse(body, "")
	if err != nil {
		return nil, nil, err
	}

	var req v1.RunReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, errors.NewConfigError("script_text", err.Error())
	}
	if req.ScriptText == "" {
		return sub, func() {}, nil
	}

	dir, err := os.MkdirTemp(h.runner.Config().TempDir, "testio-script-")
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeSystem, "创建临时目录失败", err)
	}
	target := filepath.Join(dir, filepath.Base(sub.Path))
	if err := file_util.WriteScript(target, req.ScriptText, constants.CodeFilePerm); err != nil {
		os.RemoveAll(dir)
		return nil, nil, errors.Wrap(errors.ErrCodeSystem, "写入脚本失败", err)
	}
	withScript := sub.WithPath(target)
	return &withScript, func() { os.RemoveAll(dir) }, nil
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxRequestBodySize))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func respondBindError(c *gin.Context, err error) {
	var (
		tooLarge *http.MaxBytesError
		judgeErr *errors.JudgeError
	)
	switch {
	case stderrors.As(err, &tooLarge):
		api.ResponseError(c, api.CodeRequestTooLarge)
	case stderrors.As(err, &judgeErr):
		api.ResponseJudgeError(c, err)
	default:
		zap.L().Error("read request body failed", zap.Error(err))
		api.ResponseErrorWithMsg(c, api.CodeInvalidParam, err.Error())
	}
}
