package utils

import (
	"strings"
)

// ExtractJSONObject 在自由文本中找到第一个括号配平的 {...} 片段。
// 字符串字面量内的括号和转义字符不参与计数。
// 返回片段的起止下标（end 不含），未找到时 ok 为 false。
func ExtractJSONObject(text string) (start, end int, ok bool) {
	for from := 0; from < len(text); {
		i := strings.IndexByte(text[from:], '{')
		if i < 0 {
			return 0, 0, false
		}
		start = from + i
		if end, ok = matchBrace(text, start); ok {
			return start, end, true
		}
		// 从这里开始配不平，尝试后面的 {
		from = start + 1
	}
	return 0, 0, false
}

// matchBrace 从 text[start] == '{' 开始找到与之配对的 '}'
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// NormalizeQuery 清理搜索词：去掉首尾空白并合并多余空格
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
