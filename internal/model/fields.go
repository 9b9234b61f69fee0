package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/lib/pq"
)

// StringList 列表字段（如主演）。数据库里可能是 JSON 文本、Postgres 数组字面量，
// 接口里可能是数组或被编码成字符串的数组。统一在这里解码一次，
// 解码失败视为缺失（nil），不会向上返回错误。
type StringList []string

// ParseStringList 宽松解码列表字段
func ParseStringList(raw []byte) StringList {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 || string(s) == "null" {
		return nil
	}

	switch s[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(s, &items); err != nil {
			return nil
		}
		out := make(StringList, 0, len(items))
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '"' {
				continue
			}
			var v string
			if err := json.Unmarshal(item, &v); err == nil {
				out = append(out, v)
			}
		}
		return out
	case '"':
		// 字符串里再套一层 JSON
		var inner string
		if err := json.Unmarshal(s, &inner); err != nil {
			return nil
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || inner[0] == '"' {
			return nil
		}
		return ParseStringList([]byte(inner))
	case '{':
		var arr pq.StringArray
		if err := arr.Scan(s); err != nil {
			return nil
		}
		return StringList(arr)
	}
	return nil
}

// Join 用分隔符拼接
func (l StringList) Join(sep string) string {
	return strings.Join(l, sep)
}

// Scan 实现 sql.Scanner
func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		*l = ParseStringList(v)
	case string:
		*l = ParseStringList([]byte(v))
	default:
		*l = nil
	}
	return nil
}

// Value 实现 driver.Valuer，统一按 JSON 写入
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// UnmarshalJSON 接受数组、编码后的字符串或 null
func (l *StringList) UnmarshalJSON(b []byte) error {
	*l = ParseStringList(b)
	return nil
}

// MarshalJSON 缺失时输出 null
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	return json.Marshal([]string(l))
}

// CrewMember 主创成员，下游只关心 category == "director"
type CrewMember struct {
	Category string `json:"category"`
	NameID   string `json:"nameId"`
	IMDbName string `json:"imdbName,omitempty"`
}

// CrewList 主创列表，解码规则与 StringList 相同；非对象的条目被逐个跳过
type CrewList []CrewMember

// ParseCrewList 宽松解码主创字段
func ParseCrewList(raw []byte) CrewList {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 || string(s) == "null" {
		return nil
	}

	if s[0] == '"' {
		var inner string
		if err := json.Unmarshal(s, &inner); err != nil {
			return nil
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || inner[0] == '"' {
			return nil
		}
		return ParseCrewList([]byte(inner))
	}

	if s[0] != '[' {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(s, &items); err != nil {
		return nil
	}
	out := make(CrewList, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var m CrewMember
		if err := json.Unmarshal(item, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Scan 实现 sql.Scanner
func (c *CrewList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		*c = ParseCrewList(v)
	case string:
		*c = ParseCrewList([]byte(v))
	default:
		*c = nil
	}
	return nil
}

// Value 实现 driver.Valuer
func (c CrewList) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal([]CrewMember(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// UnmarshalJSON 接受数组、编码后的字符串或 null
func (c *CrewList) UnmarshalJSON(b []byte) error {
	*c = ParseCrewList(b)
	return nil
}

// MarshalJSON 缺失时输出 null
func (c CrewList) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return json.Marshal([]CrewMember(c))
}
