package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
)

// TableName 表格工具名
const TableName = "table_tool"

// 列类型
const (
	ColumnString  = "string"
	ColumnNumber  = "number"
	ColumnDate    = "date"
	ColumnBoolean = "boolean"
)

var columnTypes = []string{ColumnString, ColumnNumber, ColumnDate, ColumnBoolean}

// dateLayouts 识别为日期的字符串格式
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Column 表格列定义
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// TableData 表格工具的输出
// Rows 保留模型传入的原始行对象（含字段顺序）
type TableData struct {
	Columns []Column          `json:"columns"`
	Rows    []json.RawMessage `json:"rows"`
	Title   string            `json:"title,omitempty"`
	Caption string            `json:"caption,omitempty"`
}

// Table 将对象数组整理为结构化表格数据，供前端渲染
type Table struct{}

// Name 实现 tools.Tool
func (Table) Name() string { return TableName }

// Description 实现 tools.Tool
func (Table) Description() string {
	return "Generates a structured table from data arrays. Use this when you need to display tabular data in a formatted table instead of plain text."
}

// Spec 返回工具的输入 schema
func (t Table) Spec() mcp.Tool {
	return mcp.NewTool(TableName,
		mcp.WithDescription(t.Description()),
		mcp.WithArray("data",
			mcp.Required(),
			mcp.Description("Array of objects representing table rows. Each object should have consistent keys."),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithArray("columns",
			mcp.Description("Optional array of column definitions. If not provided, columns will be inferred from the data."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":   map[string]any{"type": "string", "description": "The key/field name from the data objects"},
					"label": map[string]any{"type": "string", "description": "The display label for the column header"},
					"type":  map[string]any{"type": "string", "enum": columnTypes, "description": "The data type of the column"},
				},
				"required": []string{"key", "label"},
			}),
		),
		mcp.WithString("title", mcp.Description("Optional title for the table")),
		mcp.WithString("caption", mcp.Description("Optional caption/description for the table")),
	)
}

// Call 实现 tools.Tool
// 输入校验失败时返回错误文本
func (Table) Call(_ context.Context, input string) (string, error) {
	var args struct {
		Data    *[]json.RawMessage `json:"data"`
		Columns *[]Column          `json:"columns"`
		Title   string             `json:"title"`
		Caption string             `json:"caption"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return invalidTableInput(err.Error()), nil
	}
	if args.Data == nil {
		return invalidTableInput("data is required"), nil
	}

	var columns []Column
	if args.Columns != nil {
		columns = *args.Columns
	}
	table, err := GenerateTableData(*args.Data, columns, args.Title, args.Caption)
	if err != nil {
		return invalidTableInput(err.Error()), nil
	}

	out, err := json.Marshal(table)
	if err != nil {
		return fmt.Sprintf("Error generating table data: %v", err), nil
	}
	return string(out), nil
}

func invalidTableInput(reason string) string {
	return fmt.Sprintf("Error: invalid arguments for %s: %s", TableName, reason)
}

// GenerateTableData 生成表格数据
// columns 为空时从第一行推断：列名取键名，标签为首字母大写并按驼峰拆分，类型按第一行的值推断
func GenerateTableData(data []json.RawMessage, columns []Column, title, caption string) (*TableData, error) {
	for i, row := range data {
		if !isJSONObject(row) {
			return nil, fmt.Errorf("data[%d] must be an object", i)
		}
	}
	for i, col := range columns {
		if col.Key == "" || col.Label == "" {
			return nil, fmt.Errorf("columns[%d] requires key and label", i)
		}
		if col.Type != "" && !validColumnType(col.Type) {
			return nil, fmt.Errorf("columns[%d].type must be one of %s", i, strings.Join(columnTypes, ", "))
		}
	}

	if len(columns) == 0 && len(data) > 0 {
		inferred, err := inferColumns(data[0])
		if err != nil {
			return nil, err
		}
		columns = inferred
	}
	if columns == nil {
		columns = []Column{}
	}
	if data == nil {
		data = []json.RawMessage{}
	}

	return &TableData{
		Columns: columns,
		Rows:    data,
		Title:   title,
		Caption: caption,
	}, nil
}

// inferColumns 按第一行对象的字段顺序推断列
func inferColumns(firstRow json.RawMessage) ([]Column, error) {
	keys, values, err := orderedFields(firstRow)
	if err != nil {
		return nil, err
	}
	columns := make([]Column, 0, len(keys))
	for i, key := range keys {
		columns = append(columns, Column{
			Key:   key,
			Label: columnLabel(key),
			Type:  inferColumnType(values[i]),
		})
	}
	return columns, nil
}

// orderedFields 按出现顺序解析 JSON 对象的键与值
func orderedFields(obj json.RawMessage) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	if _, err := dec.Token(); err != nil { // '{'
		return nil, nil, err
	}
	var (
		keys   []string
		values []json.RawMessage
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	return keys, values, nil
}

// columnLabel bootupTimestamp -> Bootup Timestamp
func columnLabel(key string) string {
	runes := []rune(key)
	if len(runes) == 0 {
		return key
	}
	var b strings.Builder
	b.WriteRune(unicode.ToUpper(runes[0]))
	for _, r := range runes[1:] {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// inferColumnType 根据样本值推断列类型
func inferColumnType(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ColumnString
	}
	switch val := v.(type) {
	case bool:
		return ColumnBoolean
	case float64:
		return ColumnNumber
	case string:
		if looksLikeDate(val) {
			return ColumnDate
		}
		if s := strings.TrimSpace(val); s != "" {
			if _, err := strconv.ParseFloat(s, 64); err == nil {
				return ColumnNumber
			}
		}
	}
	return ColumnString
}

func looksLikeDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func validColumnType(t string) bool {
	for _, ct := range columnTypes {
		if ct == t {
			return true
		}
	}
	return false
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
