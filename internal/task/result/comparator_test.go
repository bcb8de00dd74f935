package result

import (
	"testing"
	"time"

	"github.com/djeada/Testio/internal/model"
)

var (
	exactMode          = model.Mode{}
	unorderedMode      = model.Mode{Unordered: true}
	regexMode          = model.Mode{UseRegex: true}
	unorderedRegexMode = model.Mode{Unordered: true, UseRegex: true}
)

func TestComparator_Compare_Exact(t *testing.T) {
	comparator := NewComparator(time.Second)

	tests := []struct {
		name      string
		actual    []string
		expected  []string
		want      model.Verdict
		wantIndex int
	}{
		{
			name:     "完全相同",
			actual:   []string{"Hello World", "8", "15"},
			expected: []string{"Hello World", "8", "15"},
			want:     model.VerdictMatch,
		},
		{
			name:      "内容不同",
			actual:    []string{"Hello World", "8", "3"},
			expected:  []string{"Hello World", "8", "15"},
			want:      model.VerdictMismatch,
			wantIndex: 2,
		},
		{
			name:      "不做空白归一化",
			actual:    []string{"Hello  World"},
			expected:  []string{"Hello World"},
			want:      model.VerdictMismatch,
			wantIndex: 0,
		},
		{
			name:      "缺少输出行",
			actual:    []string{"Hello World"},
			expected:  []string{"Hello World", "8"},
			want:      model.VerdictMismatch,
			wantIndex: 1,
		},
		{
			name:      "多余的输出行",
			actual:    []string{"a", "b", "c"},
			expected:  []string{"a", "b"},
			want:      model.VerdictMismatch,
			wantIndex: 2,
		},
		{
			name:      "顺序不同",
			actual:    []string{"C", "A", "B"},
			expected:  []string{"A", "B", "C"},
			want:      model.VerdictMismatch,
			wantIndex: 0,
		},
		{
			name:     "都为空",
			actual:   []string{},
			expected: []string{},
			want:     model.VerdictMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := comparator.Compare(tt.actual, tt.expected, exactMode)
			if got.Verdict != tt.want {
				t.Fatalf("Compare() = %v, want %v\nActual: %q\nExpected: %q",
					got.Verdict, tt.want, tt.actual, tt.expected)
			}
			if tt.want == model.VerdictMatch {
				if got.Diff != nil {
					t.Errorf("MATCH 时 Diff 应为空, got %+v", got.Diff)
				}
				return
			}
			if got.Diff == nil {
				t.Fatal("MISMATCH 时应给出 Diff")
			}
			if got.Diff.Index != tt.wantIndex {
				t.Errorf("Diff.Index = %d, want %d", got.Diff.Index, tt.wantIndex)
			}
		})
	}
}

func TestComparator_Compare_Unordered(t *testing.T) {
	comparator := NewComparator(time.Second)

	tests := []struct {
		name     string
		actual   []string
		expected []string
		want     model.Verdict
	}{
		{
			name:     "顺序无关",
			actual:   []string{"C", "A", "B"},
			expected: []string{"A", "B", "C"},
			want:     model.VerdictMatch,
		},
		{
			name:     "重复行计数相同",
			actual:   []string{"A", "B", "A"},
			expected: []string{"A", "A", "B"},
			want:     model.VerdictMatch,
		},
		{
			name:     "重复行计数不同",
			actual:   []string{"A", "B", "B"},
			expected: []string{"A", "A", "B"},
			want:     model.VerdictMismatch,
		},
		{
			name:     "多余的输出行",
			actual:   []string{"A", "B", "C"},
			expected: []string{"A", "B"},
			want:     model.VerdictMismatch,
		},
		{
			name:     "缺少输出行",
			actual:   []string{"B"},
			expected: []string{"A", "B"},
			want:     model.VerdictMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := comparator.Compare(tt.actual, tt.expected, unorderedMode)
			if got.Verdict != tt.want {
				t.Errorf("Compare() = %v, want %v\nActual: %q\nExpected: %q",
					got.Verdict, tt.want, tt.actual, tt.expected)
			}
			if got.Verdict == model.VerdictMismatch && got.Diff == nil {
				t.Error("MISMATCH 时应给出 Diff")
			}
		})
	}
}

func TestComparator_Compare_Regex(t *testing.T) {
	comparator := NewComparator(time.Second)

	tests := []struct {
		name     string
		actual   []string
		expected []string
		want     model.Verdict
	}{
		{
			name:     "数字匹配",
			actual:   []string{"Result: 42"},
			expected: []string{`Result: \d+`},
			want:     model.VerdictMatch,
		},
		{
			name:     "数字不匹配",
			actual:   []string{"Result: forty-two"},
			expected: []string{`Result: \d+`},
			want:     model.VerdictMismatch,
		},
		{
			name:     "必须整行匹配",
			actual:   []string{"abc123"},
			expected: []string{`\d+`},
			want:     model.VerdictMismatch,
		},
		{
			name:     "分支被整体锚定",
			actual:   []string{"ab"},
			expected: []string{`a|b`},
			want:     model.VerdictMismatch,
		},
		{
			name:     "按位置匹配",
			actual:   []string{"x=1", "y=2"},
			expected: []string{`x=\d`, `y=\d`},
			want:     model.VerdictMatch,
		},
		{
			name:     "行数不同",
			actual:   []string{"x=1"},
			expected: []string{`x=\d`, `y=\d`},
			want:     model.VerdictMismatch,
		},
		{
			name:     "无效的正则表达式",
			actual:   []string{"abc"},
			expected: []string{`([`},
			want:     model.VerdictMismatch,
		},
		{
			name:     "包裹后才合法的表达式",
			actual:   []string{"b"},
			expected: []string{`a)|(b`},
			want:     model.VerdictMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := comparator.Compare(tt.actual, tt.expected, regexMode)
			if got.Verdict != tt.want {
				t.Errorf("Compare() = %v, want %v\nActual: %q\nExpected: %q",
					got.Verdict, tt.want, tt.actual, tt.expected)
			}
		})
	}
}

func TestComparator_Compare_InvalidPatternReason(t *testing.T) {
	comparator := NewComparator(time.Second)

	got := comparator.Compare([]string{"abc"}, []string{`(unclosed`}, regexMode)
	if got.Verdict != model.VerdictMismatch {
		t.Fatalf("Compare() = %v, want MISMATCH", got.Verdict)
	}
	if got.Diff == nil || got.Diff.Reason == "" {
		t.Fatalf("无效的正则表达式应给出原因, got %+v", got.Diff)
	}
	if got.Diff.Expected != `(unclosed` {
		t.Errorf("Diff.Expected = %q", got.Diff.Expected)
	}
}

func TestComparator_Compare_UnorderedRegex(t *testing.T) {
	comparator := NewComparator(time.Second)

	tests := []struct {
		name     string
		actual   []string
		expected []string
		want     model.Verdict
	}{
		{
			name:     "顺序无关",
			actual:   []string{"x", "42"},
			expected: []string{`\d+`, `x`},
			want:     model.VerdictMatch,
		},
		{
			name:     "需要回溯的匹配",
			actual:   []string{"a", "b"},
			expected: []string{`\w+`, `a`},
			want:     model.VerdictMatch,
		},
		{
			name:     "模式重复次数",
			actual:   []string{"1", "2", "x"},
			expected: []string{`\d`, `\d`, `x`},
			want:     model.VerdictMatch,
		},
		{
			name:     "一个模式不能匹配两次",
			actual:   []string{"1", "2"},
			expected: []string{`\d`, `x`},
			want:     model.VerdictMismatch,
		},
		{
			name:     "行数不同",
			actual:   []string{"1", "2", "3"},
			expected: []string{`\d`, `\d`},
			want:     model.VerdictMismatch,
		},
		{
			name:     "无效的正则表达式",
			actual:   []string{"1"},
			expected: []string{`[`},
			want:     model.VerdictMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := comparator.Compare(tt.actual, tt.expected, unorderedRegexMode)
			if got.Verdict != tt.want {
				t.Errorf("Compare() = %v, want %v\nActual: %q\nExpected: %q",
					got.Verdict, tt.want, tt.actual, tt.expected)
			}
		})
	}
}

// 重复比较结果一致
func TestComparator_Compare_Idempotent(t *testing.T) {
	comparator := NewComparator(time.Second)
	actual := []string{"Hello World", "8", "3"}
	expected := []string{"Hello World", "8", "15"}

	first := comparator.Compare(actual, expected, exactMode)
	second := comparator.Compare(actual, expected, exactMode)
	if first.Verdict != second.Verdict || *first.Diff != *second.Diff {
		t.Errorf("两次比较结果不同: %+v vs %+v", first, second)
	}
}

// 基准测试
func BenchmarkComparator_Compare_Exact(b *testing.B) {
	comparator := NewComparator(time.Second)
	actual := []string{"Hello World", "This is a test", "1 2 3 4 5"}
	expected := []string{"Hello World", "This is a test", "1 2 3 4 5"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		comparator.Compare(actual, expected, exactMode)
	}
}

func BenchmarkComparator_Compare_UnorderedRegex(b *testing.B) {
	comparator := NewComparator(time.Second)
	actual := []string{"id=3", "id=1", "id=2", "done"}
	expected := []string{`id=\d`, `id=\d`, `id=\d`, `done`}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		comparator.Compare(actual, expected, unorderedRegexMode)
	}
}
