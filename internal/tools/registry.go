package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	lctools "github.com/tmc/langchaingo/tools"
)

// LocalTool 进程内工具：可执行，且能描述自己的输入 schema
type LocalTool interface {
	lctools.Tool
	Spec() mcp.Tool
}

// LocalEntry 将本地工具包装为目录项
func LocalEntry(t LocalTool) Entry {
	return Entry{
		Definition: DefinitionFromMCP(t.Spec()),
		Origin:     OriginLocal,
		Executor:   t,
	}
}

// Local 返回内置的本地工具目录
// 这些工具都是纯计算，没有 I/O，也不持有可变状态，可在多个对话间共享
func Local() *Catalogue {
	return NewCatalogue(
		LocalEntry(HumanizeTimestamp{}),
		LocalEntry(Table{}),
	)
}
