package compiler

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/djeada/Testio/internal/cache"
	"github.com/djeada/Testio/internal/constants"
	"github.com/djeada/Testio/internal/model"
	file_util "github.com/djeada/Testio/internal/util/file"
	"go.uber.org/zap"
)

// Builder 为一个程序产出可运行文件：没有编译命令时就是源文件本身
type Builder struct {
	command   string
	compiler  Compiler
	artifacts *cache.ArtifactCache // 可为 nil
}

// NewBuilder artifacts 为 nil 时不使用编译缓存
func NewBuilder(command string, timeout time.Duration, artifacts *cache.ArtifactCache) *Builder {
	return &Builder{
		command:   command,
		compiler:  NewCompiler(command, timeout),
		artifacts: artifacts,
	}
}

// NeedsCompile 是否配置了编译命令
func (b *Builder) NeedsCompile() bool {
	return b.compiler != nil
}

// Build 编译 source，产物放在 outputDir 中
// 编译命令成功但没有生成 {output} 时（例如只做语法检查），返回源文件本身
func (b *Builder) Build(ctx context.Context, source, outputDir string) (string, *model.CompileInfo, error) {
	if b.compiler == nil {
		return source, nil, nil
	}

	codePath, err := filepath.Abs(source)
	if err != nil {
		codePath = source
	}
	exePath := filepath.Join(outputDir, ExecutableName(constants.DefaultArtifactName))
	start := time.Now()

	// 1. 查询编译缓存
	var key string
	if b.artifacts != nil {
		if content, err := os.ReadFile(codePath); err == nil {
			key = cache.Key(b.command, content)
			if b.artifacts.Restore(key, exePath) {
				zap.L().Debug("命中编译缓存", zap.String("code_path", codePath))
				return exePath, &model.CompileInfo{Success: true, Cached: true, Duration: time.Since(start)}, nil
			}
		}
	}

	// 2. 编译
	msg, err := b.compiler.Compile(ctx, codePath, exePath)
	info := &model.CompileInfo{
		Success:  err == nil,
		Message:  msg,
		Duration: time.Since(start),
	}
	if err != nil {
		return "", info, err
	}

	// 3. 没有产物时直接运行源文件
	if !file_util.Exists(exePath) {
		return codePath, info, nil
	}

	// 4. 写入编译缓存
	if key != "" {
		if err := b.artifacts.Set(key, exePath); err != nil {
			zap.L().Warn("写入编译缓存失败", zap.String("code_path", codePath), zap.Error(err))
		}
	}
	return exePath, info, nil
}
