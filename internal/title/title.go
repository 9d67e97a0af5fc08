// Package title 根据用户的第一条消息生成对话标题
// 纯函数，不做任何 I/O
package title

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Placeholder 新建对话时使用的占位标题
const Placeholder = "New Chat"

const (
	maxVerbatimLen = 40 // 不超过该长度的消息直接作为标题
	minBreakIndex  = 16 // 断句位置的下界（含）
	maxBreakIndex  = 35 // 断句位置的上界（含），同时也是兜底截断位置
	minSpaceIndex  = 15 // 回退查找空格时的下界
)

// breakMarkers 断句标记，按优先级排列
var breakMarkers = []string{". ", "? ", "! ", ", ", "; ", " - ", " and ", " with ", " for "}

// genericTitles 视为"未命名"的通用标题
var genericTitles = map[string]struct{}{
	"New Chat": {},
	"new chat": {},
	"Chat":     {},
	"chat":     {},
}

// Derive 从消息文本生成简短标题
// 规则:
//   - 空白消息返回占位标题
//   - 不超过 40 个字符原样返回
//   - 依次查找断句标记，第一个落在 [16, 35] 的标记之前的部分作为标题
//   - 否则从位置 35 向前找空格截断，并追加 "..."
func Derive(message string) string {
	s := strings.TrimSpace(message)
	if s == "" {
		return Placeholder
	}

	runes := []rune(s)
	if len(runes) <= maxVerbatimLen {
		return s
	}

	for _, marker := range breakMarkers {
		idx := runeIndex(s, marker)
		if idx >= minBreakIndex && idx <= maxBreakIndex {
			return string(runes[:idx])
		}
	}

	cut := maxBreakIndex
	for i := maxBreakIndex; i >= minSpaceIndex; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}

// ShouldUpdate 判断标题是否仍是占位标题，需要被替换
func ShouldUpdate(current string) bool {
	if strings.TrimSpace(current) == "" {
		return true
	}
	_, ok := genericTitles[current]
	return ok
}

// GenericTitles 返回所有通用标题，按字典序排列
func GenericTitles() []string {
	titles := make([]string, 0, len(genericTitles))
	for t := range genericTitles {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}

// runeIndex 返回 sub 在 s 中第一次出现的字符（rune）位置，未找到返回 -1
func runeIndex(s, sub string) int {
	i := strings.Index(s, sub)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}
