package language

import (
	"path/filepath"
	"strings"
)

// 报告中展示的语言名称
const (
	C       = "C"
	Cpp     = "C++"
	Java    = "Java"
	Python  = "Python"
	JS      = "JavaScript"
	Go      = "Go"
	Rust    = "Rust"
	Ruby    = "Ruby"
	Shell   = "Shell"
	Unknown = ""
)

var byExtension = map[string]string{
	".c":    C,
	".cpp":  Cpp,
	".cxx":  Cpp,
	".cc":   Cpp,
	".java": Java,
	".py":   Python,
	".py3":  Python,
	".js":   JS,
	".go":   Go,
	".rs":   Rust,
	".rb":   Ruby,
	".sh":   Shell,
}

// DetectLanguageByExtension 根据文件扩展名判断编程语言，无法识别时返回空字符串
func DetectLanguageByExtension(filename string) string {
	return byExtension[strings.ToLower(filepath.Ext(filename))]
}

// Detect 优先按扩展名判断语言，无法识别时再看运行命令中的解释器
func Detect(runCommand, filename string) string {
	if lang := DetectLanguageByExtension(filename); lang != Unknown {
		return lang
	}
	fields := strings.Fields(runCommand)
	if len(fields) == 0 {
		return Unknown
	}
	interpreter := strings.ToLower(filepath.Base(fields[0]))
	switch {
	case strings.HasPrefix(interpreter, "python"):
		return Python
	case interpreter == "node":
		return JS
	case interpreter == "ruby":
		return Ruby
	case interpreter == "sh" || interpreter == "bash":
		return Shell
	case interpreter == "java":
		return Java
	}
	return Unknown
}
