package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/djeada/Testio/pkg/errors"
)

func TestParse_Valid(t *testing.T) {
	data := `{
		"command": "python3",
		"path": "prog.py",
		"tests": [
			{"input": ["5", "3"], "output": ["Hello World", "8", "15"], "timeout": 10},
			{"input": "1\n2", "output": "Hello World\n3\n2", "timeout": 0.5, "interleaved": true},
			{"output": ["A", "B"], "timeout": 1, "unordered": true, "use_regex": true}
		]
	}`

	cfg, err := Parse([]byte(data), "/work")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.RunCommand != "python3" {
		t.Errorf("RunCommand = %q, want python3", cfg.RunCommand)
	}
	if cfg.Path != filepath.Join("/work", "prog.py") {
		t.Errorf("Path = %q", cfg.Path)
	}
	if len(cfg.Tests) != 3 {
		t.Fatalf("len(Tests) = %d, want 3", len(cfg.Tests))
	}

	first := cfg.Tests[0]
	if !reflect.DeepEqual(first.Input, []string{"5", "3"}) {
		t.Errorf("Input = %q", first.Input)
	}
	if first.Timeout != 10*time.Second {
		t.Errorf("Timeout = %s, want 10s", first.Timeout)
	}

	second := cfg.Tests[1]
	if !reflect.DeepEqual(second.Input, []string{"1", "2"}) {
		t.Errorf("字符串输入应按行拆分, got %q", second.Input)
	}
	if !reflect.DeepEqual(second.ExpectedOutput, []string{"Hello World", "3", "2"}) {
		t.Errorf("ExpectedOutput = %q", second.ExpectedOutput)
	}
	if second.Timeout != 500*time.Millisecond || !second.Interleaved {
		t.Errorf("Timeout = %s, Interleaved = %v", second.Timeout, second.Interleaved)
	}

	third := cfg.Tests[2]
	if len(third.Input) != 0 {
		t.Errorf("缺省输入应为空, got %q", third.Input)
	}
	if mode := third.Mode(); !mode.Unordered || !mode.UseRegex {
		t.Errorf("Mode() = %+v", mode)
	}
}

func TestParse_CommandPriority(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "run_command优先",
			data: `{"command": "python", "run_command": "python3 -u", "path": "a", "tests": [{"timeout": 1}]}`,
			want: "python3 -u",
		},
		{
			name: "仅command",
			data: `{"command": "bash", "path": "a", "tests": [{"timeout": 1}]}`,
			want: "bash",
		},
		{
			name: "都未提供时直接执行",
			data: `{"compile_command": "gcc {source} -o {output}", "path": "a", "tests": [{"timeout": 1}]}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.data), "")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.RunCommand != tt.want {
				t.Errorf("RunCommand = %q, want %q", cfg.RunCommand, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{name: "非JSON", data: `{"path": `, field: ""},
		{name: "缺少path", data: `{"command": "sh", "tests": [{"timeout": 1}]}`, field: "path"},
		{name: "缺少tests", data: `{"path": "a"}`, field: "tests"},
		{name: "tests为空", data: `{"path": "a", "tests": []}`, field: "tests"},
		{name: "tests不是数组", data: `{"path": "a", "tests": {}}`, field: "tests"},
		{name: "缺少timeout", data: `{"path": "a", "tests": [{"input": "1"}]}`, field: "tests[0].timeout"},
		{name: "timeout为负", data: `{"path": "a", "tests": [{"timeout": 1}, {"timeout": -2}]}`, field: "tests[1].timeout"},
		{name: "timeout为字符串", data: `{"path": "a", "tests": [{"timeout": "10"}]}`, field: "tests[0].timeout"},
		{name: "input类型错误", data: `{"path": "a", "tests": [{"input": 5, "timeout": 1}]}`, field: "tests[0].input"},
		{name: "output数组含数字", data: `{"path": "a", "tests": [{"output": ["a", 1], "timeout": 1}]}`, field: "tests[0].output"},
		{name: "标志不是布尔值", data: `{"path": "a", "tests": [{"timeout": 1, "unordered": "yes"}]}`, field: "tests[0].unordered"},
		{name: "command类型错误", data: `{"command": 1, "path": "a", "tests": [{"timeout": 1}]}`, field: "command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "")
			if err == nil {
				t.Fatal("Parse() 应返回错误")
			}
			if !errors.IsErrorCode(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("错误码 = %d, want %d", errors.GetErrorCode(err), errors.ErrCodeInvalidConfig)
			}
			if tt.field != "" && !strings.Contains(err.Error(), tt.field) {
				t.Errorf("错误信息 %q 应包含字段 %q", err.Error(), tt.field)
			}
		})
	}
}

func TestParseFile_RelativePath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	data := `{"command": "sh", "path": "programs", "tests": [{"timeout": 1}]}`
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseFile(configPath)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if cfg.Path != filepath.Join(dir, "programs") {
		t.Errorf("Path = %q, want %q", cfg.Path, filepath.Join(dir, "programs"))
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.IsConfigError(err) {
		t.Errorf("ParseFile() error = %v, want ConfigError", err)
	}
}
