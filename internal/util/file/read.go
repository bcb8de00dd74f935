package file_util

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func ReadFileToString(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return string(data), nil
}

// WriteScript 将脚本内容写入 filePath 并设置可执行权限
func WriteScript(filePath, content string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(filePath, []byte(content), perm); err != nil {
		return fmt.Errorf("写入文件 %s 失败: %w", filePath, err)
	}
	// WriteFile 不会修改已存在文件的权限
	return os.Chmod(filePath, perm)
}

// ListRegularFiles 列出目录下的普通文件（不递归），按文件名排序，跳过隐藏文件
func ListRegularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Exists 判断路径是否存在
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
