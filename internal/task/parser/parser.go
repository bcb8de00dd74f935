// Package parser 将 JSON 评测配置解析为经过校验的 SubmissionConfig
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/djeada/Testio/internal/constants"
	"github.com/djeada/Testio/internal/model"
	file_util "github.com/djeada/Testio/internal/util/file"
	"github.com/djeada/Testio/pkg/errors"
)

type rawConfig struct {
	Command        json.RawMessage `json:"command"`
	RunCommand     json.RawMessage `json:"run_command"`
	CompileCommand json.RawMessage `json:"compile_command"`
	Path           json.RawMessage `json:"path"`
	Tests          json.RawMessage `json:"tests"`
}

type rawTest struct {
	Input       json.RawMessage `json:"input"`
	Output      json.RawMessage `json:"output"`
	Timeout     json.RawMessage `json:"timeout"`
	Interleaved json.RawMessage `json:"interleaved"`
	Unordered   json.RawMessage `json:"unordered"`
	UseRegex    json.RawMessage `json:"use_regex"`
}

// ParseFile 读取并解析配置文件，相对 path 以配置文件所在目录为基准
func ParseFile(path string) (*model.SubmissionConfig, error) {
	content, err := file_util.ReadFileToString(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "无法读取配置文件", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "无法解析配置文件路径", err)
	}
	return Parse([]byte(content), filepath.Dir(abs))
}

// Parse 解析配置，遇到第一个错误即返回 ConfigError
// baseDir 为空时 path 保持原样
func Parse(data []byte, baseDir string) (*model.SubmissionConfig, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "配置不是合法的 JSON 对象", err)
	}

	cfg := &model.SubmissionConfig{}

	runCommand, err := optionalString(raw.RunCommand, "run_command")
	if err != nil {
		return nil, err
	}
	command, err := optionalString(raw.Command, "command")
	if err != nil {
		return nil, err
	}
	// run_command 优先于 command
	cfg.RunCommand = strings.TrimSpace(runCommand)
	if cfg.RunCommand == "" {
		cfg.RunCommand = strings.TrimSpace(command)
	}

	if cfg.CompileCommand, err = optionalString(raw.CompileCommand, "compile_command"); err != nil {
		return nil, err
	}
	cfg.CompileCommand = strings.TrimSpace(cfg.CompileCommand)

	path, err := optionalString(raw.Path, "path")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewConfigError("path", "不能为空")
	}
	cfg.Path = resolvePath(path, baseDir)

	if isNull(raw.Tests) {
		return nil, errors.NewConfigError("tests", "缺少测试用例")
	}
	var tests []json.RawMessage
	if err := json.Unmarshal(raw.Tests, &tests); err != nil {
		return nil, errors.NewConfigError("tests", "必须是数组")
	}
	if len(tests) == 0 {
		return nil, errors.NewConfigError("tests", "至少需要一个测试用例")
	}

	cfg.Tests = make([]model.TestCase, 0, len(tests))
	for i, rt := range tests {
		tc, err := parseTest(rt, fmt.Sprintf("tests[%d]", i))
		if err != nil {
			return nil, err
		}
		cfg.Tests = append(cfg.Tests, tc)
	}

	return cfg, nil
}

func parseTest(data json.RawMessage, field string) (model.TestCase, error) {
	var raw rawTest
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.TestCase{}, errors.NewConfigError(field, "必须是对象")
	}

	var (
		tc  model.TestCase
		err error
	)
	if tc.Input, err = lines(raw.Input, field+".input"); err != nil {
		return tc, err
	}
	if tc.ExpectedOutput, err = lines(raw.Output, field+".output"); err != nil {
		return tc, err
	}
	if tc.Timeout, err = timeout(raw.Timeout, field+".timeout"); err != nil {
		return tc, err
	}
	if tc.Interleaved, err = optionalBool(raw.Interleaved, field+".interleaved"); err != nil {
		return tc, err
	}
	if tc.Unordered, err = optionalBool(raw.Unordered, field+".unordered"); err != nil {
		return tc, err
	}
	if tc.UseRegex, err = optionalBool(raw.UseRegex, field+".use_regex"); err != nil {
		return tc, err
	}
	return tc, nil
}

// lines 接受字符串、字符串数组或缺省
func lines(data json.RawMessage, field string) ([]string, error) {
	if isNull(data) {
		return []string{}, nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return model.SplitLines(s), nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, errors.NewConfigError(field, "必须是字符串或字符串数组")
	}
	for i := range arr {
		arr[i] = strings.TrimSuffix(arr[i], "\r")
	}
	return arr, nil
}

func timeout(data json.RawMessage, field string) (time.Duration, error) {
	if isNull(data) {
		return 0, errors.NewConfigError(field, "缺少超时时间")
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return 0, errors.NewConfigError(field, "必须是数字（秒）")
	}
	if seconds <= 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return 0, errors.NewConfigError(field, "必须大于 0")
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < constants.MinTestTimeout || d > constants.MaxTestTimeout {
		return 0, errors.NewConfigError(field, fmt.Sprintf("应在 %s 到 %s 之间", constants.MinTestTimeout, constants.MaxTestTimeout))
	}
	return d, nil
}

func optionalBool(data json.RawMessage, field string) (bool, error) {
	if isNull(data) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return false, errors.NewConfigError(field, "必须是布尔值")
	}
	return b, nil
}

func optionalString(data json.RawMessage, field string) (string, error) {
	if isNull(data) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", errors.NewConfigError(field, "必须是字符串")
	}
	return s, nil
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func resolvePath(path, baseDir string) string {
	if strings.HasPrefix(path, constants.MinIOScheme) || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
