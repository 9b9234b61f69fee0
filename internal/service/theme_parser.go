package service

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/utkarsh995/llm-recommender/internal/model"
	"github.com/utkarsh995/llm-recommender/internal/utils"
)

// thinkBlock 推理模型（如 Qwen3）输出的 <think>...</think> 思考过程
var thinkBlock = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// codeFence markdown 代码块标记，如 ```json
var codeFence = regexp.MustCompile("```[A-Za-z0-9_-]*")

type themePayload struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// ParseTheme 从模型的自由文本回复中提取主题，宽松解析只在这里进行。
//
// 思考块先被剥离，然后依次尝试每个括号配平的 {...} 片段，取第一个
// 能解码、type 是已知类型且 detail 非空的片段；解不出或不合格的片段
// （例如模型复述的格式模板）会被跳过。
// 失败时 Kind 为空，Detail 和 Raw 保留原文，Reasoning 等于原文。
func ParseTheme(raw string) model.ThemeResult {
	var thoughts []string
	body := thinkBlock.ReplaceAllStringFunc(raw, func(m string) string {
		if t := strings.TrimSpace(thinkBlock.FindStringSubmatch(m)[1]); t != "" {
			thoughts = append(thoughts, t)
		}
		return ""
	})

	for offset := 0; offset < len(body); {
		start, end, ok := utils.ExtractJSONObject(body[offset:])
		if !ok {
			break
		}
		start, end = start+offset, end+offset
		offset = start + 1

		var p themePayload
		if err := json.Unmarshal([]byte(body[start:end]), &p); err != nil {
			continue
		}
		kind := strings.ToLower(strings.TrimSpace(p.Type))
		detail := strings.TrimSpace(p.Detail)
		if !model.IsThemeKind(kind) || detail == "" {
			continue
		}

		parts := append(thoughts, stripFences(body[:start]), stripFences(body[end:]))
		return model.ThemeResult{
			Kind:      kind,
			Detail:    detail,
			Raw:       raw,
			Reasoning: joinNonEmpty(parts, "\n\n"),
			Parsed:    true,
		}
	}
	return model.ThemeResult{Detail: raw, Raw: raw, Reasoning: raw}
}

func stripFences(s string) string {
	return codeFence.ReplaceAllString(s, "")
}

func joinNonEmpty(parts []string, sep string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
