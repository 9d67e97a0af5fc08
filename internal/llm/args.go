package llm

import (
	"bytes"
	"encoding/json"
)

// rawArgs 规范化模型给出的工具参数
// 空串视为空对象；非法 JSON 原样编码为 JSON 字符串，交给工具自行报错
func rawArgs(s string) json.RawMessage {
	b := bytes.TrimSpace([]byte(s))
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return json.RawMessage(`{}`)
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	quoted, _ := json.Marshal(s)
	return json.RawMessage(quoted)
}
