package service

import (
	"fmt"

	"github.com/utkarsh995/llm-recommender/internal/model"
)

// CrewCategoryDirector 主创中导演的类别名（区分大小写）
const CrewCategoryDirector = "director"

// BuildCanonicalText 把一条内容记录拼成用于向量化的文本，同一记录总是得到相同结果
func BuildCanonicalText(rec model.ContentRecord) string {
	return fmt.Sprintf("Title: %s. Plot: %s. Starring: %s. Director: %s",
		rec.Title, rec.Plot, rec.Starring.Join(", "), ResolveDirector(rec.Crew))
}

// ResolveDirector 取第一个导演条目的 nameId，为空时回退到 imdbName；没有导演时返回空串
func ResolveDirector(crew model.CrewList) string {
	for _, m := range crew {
		if m.Category != CrewCategoryDirector {
			continue
		}
		if m.NameID != "" {
			return m.NameID
		}
		return m.IMDbName
	}
	return ""
}
