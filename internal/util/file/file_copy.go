package file_util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile 复制常规文件
// 内容先写入目标目录下的临时文件再重命名，其他进程不会看到或执行写了一半的文件
func CopyFile(src, dst string, options ...CopyOption) (err error) {
	config := &copyConfig{
		preservePerm: true,
		preserveTime: true,
	}
	for _, opt := range options {
		opt(config)
	}

	// 1. 验证源文件
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("源文件错误: %w", err)
	}
	if !srcInfo.Mode().IsRegular() {
		return fmt.Errorf("%s 不是常规文件", src)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("打开源文件失败: %w", err)
	}
	defer srcFile.Close()

	// 2. 写入临时文件
	dstDir := filepath.Dir(dst)
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(dstDir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, srcFile); err != nil {
		return fmt.Errorf("复制内容失败: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("同步到磁盘失败: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	// 3. 权限与修改时间
	perm := config.perm
	if config.preservePerm {
		perm = srcInfo.Mode().Perm()
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if config.preserveTime {
		if err = os.Chtimes(tmp.Name(), srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
			return fmt.Errorf("设置文件时间失败: %w", err)
		}
	}

	// 4. 替换目标文件
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("重命名失败: %w", err)
	}
	return nil
}

type copyConfig struct {
	preservePerm bool
	preserveTime bool
	perm         os.FileMode
}

// CopyOption 配置选项
type CopyOption func(*copyConfig)

func WithPreserveTime(preserve bool) CopyOption {
	return func(c *copyConfig) {
		c.preserveTime = preserve
	}
}

// WithPerm 使用指定权限代替源文件的权限
func WithPerm(perm os.FileMode) CopyOption {
	return func(c *copyConfig) {
		c.preservePerm = false
		c.perm = perm
	}
}
