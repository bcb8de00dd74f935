package v1

// RunReq 评测请求，除 script_text 外与配置文件的字段一致
type RunReq struct {
	// ScriptText 不为空时写入临时文件代替 path 指向的程序，文件名取 path 的最后一段
	ScriptText string `json:"script_text"`
}

// ValidateResp 配置校验结果
type ValidateResp struct {
	Valid          bool   `json:"valid"`
	Path           string `json:"path"`
	RunCommand     string `json:"run_command"`
	CompileCommand string `json:"compile_command,omitempty"`
	Tests          int    `json:"tests"`
}
