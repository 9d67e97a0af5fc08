// Package tools 提供模型可调用的工具目录
// 本地工具（进程内）与外部工具服务器的工具统一用 langchaingo 的 tools.Tool 接口执行，
// 输入为 JSON 编码的参数对象，输出为文本（通常是 JSON）
package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	lctools "github.com/tmc/langchaingo/tools"
)

// Origin 工具来源
type Origin string

const (
	OriginLocal  Origin = "local"  // 进程内注册的工具
	OriginRemote Origin = "remote" // 外部工具服务器提供的工具
)

// Definition 工具的元数据，会原样提供给模型
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // JSON Schema (object)
}

// Entry 目录中的一项：定义 + 执行器
type Entry struct {
	Definition
	Origin   Origin
	Executor lctools.Tool
}

// Catalogue 有序的工具目录
// 名称唯一，先加入者优先；遍历顺序即加入顺序
type Catalogue struct {
	entries []Entry
	index   map[string]int
}

// NewCatalogue 按给定顺序创建目录，重名的后来者被忽略
func NewCatalogue(entries ...Entry) *Catalogue {
	c := &Catalogue{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		c.add(e)
	}
	return c
}

// add 追加一项，名称已存在时返回 false
func (c *Catalogue) add(e Entry) bool {
	if _, exists := c.index[e.Name]; exists {
		return false
	}
	c.index[e.Name] = len(c.entries)
	c.entries = append(c.entries, e)
	return true
}

// Lookup 按名称查找工具，nil 目录视为空目录
func (c *Catalogue) Lookup(name string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Len 返回工具数量
func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries 返回目录项的副本
func (c *Catalogue) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names 返回按顺序排列的工具名
func (c *Catalogue) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.Name)
	}
	return names
}

// Definitions 返回提供给模型的工具定义列表
func (c *Catalogue) Definitions() []Definition {
	if c == nil {
		return nil
	}
	defs := make([]Definition, 0, len(c.entries))
	for _, e := range c.entries {
		defs = append(defs, e.Definition)
	}
	return defs
}

// Merge 有序合并本地目录与远程目录
// 本地工具在前，远程工具按其公布顺序在后；
// 名称冲突时本地工具胜出，被遮蔽的远程工具名通过 shadowed 返回，供调用方记录日志
func Merge(local, remote *Catalogue) (merged *Catalogue, shadowed []string) {
	merged = NewCatalogue(local.Entries()...)
	for _, e := range remote.Entries() {
		if !merged.add(e) {
			shadowed = append(shadowed, e.Name)
		}
	}
	return merged, shadowed
}

// DefinitionFromMCP 将 MCP 工具描述转换为 Definition
// 优先使用原始 schema（RawInputSchema），否则序列化结构化的 InputSchema
func DefinitionFromMCP(t mcp.Tool) Definition {
	def := Definition{Name: t.Name, Description: t.Description}

	raw := []byte(t.RawInputSchema)
	if len(raw) == 0 {
		b, err := json.Marshal(t.InputSchema)
		if err == nil {
			raw = b
		}
	}

	var schema map[string]any
	if len(raw) > 0 && json.Unmarshal(raw, &schema) == nil && schema != nil {
		def.InputSchema = schema
	} else {
		def.InputSchema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if _, ok := def.InputSchema["type"]; !ok {
		def.InputSchema["type"] = "object"
	}
	return def
}
