package model

// 主题类型
const (
	ThemePlotline = "plotline"
	ThemeActor    = "actor"
	ThemeDirector = "director"
	ThemeError    = "error"
)

// ThemeResult 主题提取结果，每个请求构造一次，不落库
type ThemeResult struct {
	Kind      string // 解析失败时为空
	Detail    string
	Raw       string // 模型原始输出，不做任何修改
	Reasoning string
	Parsed    bool
}

// IsThemeKind 是否为模型允许返回的主题类型
func IsThemeKind(kind string) bool {
	switch kind {
	case ThemePlotline, ThemeActor, ThemeDirector:
		return true
	}
	return false
}
