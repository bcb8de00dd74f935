package result

import (
	"fmt"
	"time"

	"github.com/djeada/Testio/internal/model"
	"github.com/djeada/Testio/pkg/errors"
	"github.com/dlclark/regexp2"
)

// Judgement 比较结论，Diff 只在 MISMATCH 时非空
type Judgement struct {
	Verdict model.Verdict
	Diff    *model.Diff
}

func match() Judgement {
	return Judgement{Verdict: model.VerdictMatch}
}

func mismatch(index int, expected, actual, reason string) Judgement {
	return Judgement{
		Verdict: model.VerdictMismatch,
		Diff: &model.Diff{
			Index:    index,
			Expected: expected,
			Actual:   actual,
			Reason:   reason,
		},
	}
}

type Comparator struct {
	matchTimeout time.Duration
}

// NewComparator matchTimeout 限制单次正则匹配的时间，<=0 表示不限制
func NewComparator(matchTimeout time.Duration) *Comparator {
	return &Comparator{
		matchTimeout: matchTimeout,
	}
}

// Compare 比较程序输出和期望输出，两者均为去掉换行符后的行序列
func (c *Comparator) Compare(actual, expected []string, mode model.Mode) Judgement {
	switch {
	case mode.Unordered && mode.UseRegex:
		return c.compareUnorderedRegex(actual, expected)
	case mode.Unordered:
		return compareUnordered(actual, expected)
	case mode.UseRegex:
		return c.compareRegex(actual, expected)
	default:
		return compareExact(actual, expected)
	}
}

func compareExact(actual, expected []string) Judgement {
	n := min(len(actual), len(expected))
	for i := 0; i < n; i++ {
		if actual[i] != expected[i] {
			return mismatch(i, expected[i], actual[i], "内容不同")
		}
	}
	return lengthMismatch(actual, expected)
}

// lengthMismatch 公共前缀一致时检查行数
func lengthMismatch(actual, expected []string) Judgement {
	n := min(len(actual), len(expected))
	switch {
	case len(actual) < len(expected):
		return mismatch(n, expected[n], "", fmt.Sprintf("缺少输出行: 期望 %d 行, 实际 %d 行", len(expected), len(actual)))
	case len(actual) > len(expected):
		return mismatch(n, "", actual[n], fmt.Sprintf("多余的输出行: 期望 %d 行, 实际 %d 行", len(expected), len(actual)))
	}
	return match()
}

func compareUnordered(actual, expected []string) Judgement {
	remaining := make(map[string]int, len(actual))
	for _, line := range actual {
		remaining[line]++
	}
	for i, line := range expected {
		if remaining[line] == 0 {
			return mismatch(i, line, "", "期望行未出现在输出中")
		}
		remaining[line]--
	}
	// 期望行全部匹配后剩余的实际行都是多余的
	for i, line := range actual {
		if remaining[line] > 0 {
			return mismatch(i, "", line, "多余的输出行")
		}
	}
	return match()
}

func (c *Comparator) compareRegex(actual, expected []string) Judgement {
	patterns := make([]*regexp2.Regexp, len(expected))
	for i, p := range expected {
		re, err := c.compile(p)
		if err != nil {
			return mismatch(i, p, at(actual, i), err.Error())
		}
		patterns[i] = re
	}

	n := min(len(actual), len(expected))
	for i := 0; i < n; i++ {
		ok, err := patterns[i].MatchString(actual[i])
		if err != nil {
			return mismatch(i, expected[i], actual[i], errors.Wrap(errors.ErrCodeMatchTimeout, "正则匹配超时", err).Error())
		}
		if !ok {
			return mismatch(i, expected[i], actual[i], "不匹配正则表达式")
		}
	}
	return lengthMismatch(actual, expected)
}

// compareUnorderedRegex 行数相同且实际行与期望模式之间存在完美匹配时判为 MATCH
// 一条实际行只能匹配一个模式，因此每个模式被匹配的次数恰好等于它的出现次数
func (c *Comparator) compareUnorderedRegex(actual, expected []string) Judgement {
	patterns := make([]*regexp2.Regexp, len(expected))
	for i, p := range expected {
		re, err := c.compile(p)
		if err != nil {
			return mismatch(i, p, "", err.Error())
		}
		patterns[i] = re
	}

	if len(actual) != len(expected) {
		return lengthMismatch(actual, expected)
	}

	// edges[i] 为实际行 i 能匹配的模式下标
	edges := make([][]int, len(actual))
	for i, line := range actual {
		for j, re := range patterns {
			if ok, err := re.MatchString(line); err == nil && ok {
				edges[i] = append(edges[i], j)
			}
		}
	}

	owner := make([]int, len(expected)) // owner[j] 为匹配模式 j 的实际行，-1 表示未匹配
	for j := range owner {
		owner[j] = -1
	}
	var augment func(i int, seen []bool) bool
	augment = func(i int, seen []bool) bool {
		for _, j := range edges[i] {
			if seen[j] {
				continue
			}
			seen[j] = true
			if owner[j] == -1 || augment(owner[j], seen) {
				owner[j] = i
				return true
			}
		}
		return false
	}

	for i := range actual {
		if !augment(i, make([]bool, len(expected))) {
			return mismatch(i, "", actual[i], "该输出行无法与剩余的期望模式匹配")
		}
	}
	return match()
}

// compile 编译整行匹配的正则表达式
func (c *Comparator) compile(pattern string) (*regexp2.Regexp, error) {
	// 先单独编译原始表达式，避免 "a)|(b" 这类模式在包裹后变成合法表达式
	if _, err := regexp2.Compile(pattern, regexp2.None); err != nil {
		return nil, errors.NewPatternError(pattern, err)
	}
	re, err := regexp2.Compile(`\A(?:`+pattern+`)\z`, regexp2.None)
	if err != nil {
		return nil, errors.NewPatternError(pattern, err)
	}
	if c.matchTimeout > 0 {
		re.MatchTimeout = c.matchTimeout
	}
	return re, nil
}

func at(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}
