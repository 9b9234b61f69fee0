package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/utkarsh995/llm-recommender/internal/llm"
	"github.com/utkarsh995/llm-recommender/internal/metrics"
	"github.com/utkarsh995/llm-recommender/internal/model"
	"go.uber.org/zap"
)

// ThemeSystemPrompt 要求模型只输出 JSON 的系统指令
const ThemeSystemPrompt = "You are a movie expert. Analyze the given list of movies and identify the most prominent common theme, " +
	"plotline, actor, or director among them. " +
	"Output ONLY a JSON object with the following format:\n" +
	"{\"type\": \"plotline/actor/director\", \"detail\": \"Description of the commonality\"}\n" +
	"Do not include any other text."

const unknownDirector = "Unknown"

// ThemeOptions 对话模型调用参数
type ThemeOptions struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ThemeService 主题提取
type ThemeService struct {
	chat llm.Completer
	opts ThemeOptions
	log  *zap.Logger
}

// NewThemeService 创建主题提取服务
func NewThemeService(chat llm.Completer, opts ThemeOptions, log *zap.Logger) *ThemeService {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ThemeService{chat: chat, opts: opts, log: log}
}

// BuildThemePrompt 把观看历史拼成编号列表
func BuildThemePrompt(watched []model.WatchedItem) string {
	var sb strings.Builder
	sb.WriteString("Here are the movies I watched:\n\n")
	for i, m := range watched {
		director := m.Director
		if director == "" {
			director = unknownDirector
		}
		fmt.Fprintf(&sb, "%d. Title: %s\n   Plot: %s\n   Starring: %s\n   Director: %s\n\n",
			i+1, m.Title, m.Plot, m.Starring, director)
	}
	sb.WriteString("\nFind the common theme.")
	return sb.String()
}

// WatchedItemFromRecord 把目录记录转换成提示词条目
func WatchedItemFromRecord(rec model.ContentRecord) model.WatchedItem {
	return model.WatchedItem{
		Title:    rec.Title,
		Plot:     rec.Plot,
		Starring: rec.Starring.Join(", "),
		Director: ResolveDirector(rec.Crew),
	}
}

// IdentifyTheme 调用对话模型并解析主题。模型调用失败时返回 error 类型的结果，不返回错误。
func (s *ThemeService) IdentifyTheme(ctx context.Context, watched []model.WatchedItem) model.ThemeResult {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	reply, err := s.chat.Complete(ctx, llm.Request{
		System:      ThemeSystemPrompt,
		User:        BuildThemePrompt(watched),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.log.Warn("调用对话模型失败",
			zap.String("provider", s.chat.Name()),
			zap.Int("items", len(watched)),
			zap.Error(err))
		res := errorTheme(err)
		metrics.ThemeResults.WithLabelValues(res.Kind).Inc()
		return res
	}

	res := ParseTheme(reply)
	label := res.Kind
	if !res.Parsed {
		label = "unparsed"
		s.log.Info("主题解析失败，返回原文", zap.Int("reply_len", len(reply)))
	}
	metrics.ThemeResults.WithLabelValues(label).Inc()
	return res
}

func errorTheme(err error) model.ThemeResult {
	const reasoning = "Failed to contact chat model"
	raw, _ := json.Marshal(map[string]string{
		"type":      model.ThemeError,
		"detail":    err.Error(),
		"reasoning": reasoning,
	})
	return model.ThemeResult{
		Kind:      model.ThemeError,
		Detail:    err.Error(),
		Raw:       string(raw),
		Reasoning: reasoning,
		Parsed:    true,
	}
}
