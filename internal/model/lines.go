package model

import "strings"

// SplitLines 按 \n 拆分文本，去掉行尾的 \r，末尾的空行不计入
// 空字符串得到空切片
func SplitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	s = strings.TrimSuffix(s, "\n")
	parts := strings.Split(s, "\n")
	for i := range parts {
		parts[i] = strings.TrimSuffix(parts[i], "\r")
	}
	return parts
}

// JoinInput 将输入行拼接为写入 stdin 的内容，非空时以换行结尾
func JoinInput(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
