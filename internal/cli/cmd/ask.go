package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cybertrace-ops/internal/cli/api"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "向网络助手提问",
	Long: `向网络助手提问，流式输出工具调用和回答。

示例:
  cybertrace ask "Show me BGP sessions in NotEstd state"
  cybertrace ask --chat <chat-id> "what about leaf01?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringP("chat", "c", "", "继续已有对话")
	askCmd.Flags().Bool("raw", false, "不渲染 Markdown，直接输出文本")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	chatID, _ := cmd.Flags().GetString("chat")
	raw, _ := cmd.Flags().GetBool("raw")
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("问题不能为空")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	req := &api.AskRequest{ID: chatID}
	if chatID != "" {
		err := withRefresh(ctx, func(c *api.Client) error {
			detail, err := c.GetChat(ctx, chatID)
			if err != nil {
				return err
			}
			req.Messages = detail.Messages
			return nil
		})
		if err != nil {
			return err
		}
	}
	req.Messages = append(req.Messages, api.Message{
		ID:      uuid.NewString(),
		Role:    "user",
		Content: question,
	})

	// 终端下收集完整回答后渲染 Markdown，--raw 或重定向时实时输出增量
	live := raw || !term.IsTerminal(int(os.Stdout.Fd()))
	var text strings.Builder

	err := withRefresh(ctx, func(c *api.Client) error {
		text.Reset()
		return c.Ask(ctx, req, func(ev api.StreamEvent) error {
			return handleStreamEvent(ev, live, &text)
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println()
			dimColor.Println("已取消")
			return nil
		}
		return err
	}

	if live {
		fmt.Println()
		return nil
	}
	fmt.Println(renderMarkdown(text.String()))
	return nil
}

// handleStreamEvent 输出单个流式事件
func handleStreamEvent(ev api.StreamEvent, live bool, text *strings.Builder) error {
	switch ev.Name {
	case "chat":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Data, &p); err == nil {
			dimColor.Printf("chat %s\n", p.ID)
		}
	case "text-delta":
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return errors.Wrap(err, "decode text-delta")
		}
		text.WriteString(p.Text)
		if live {
			fmt.Print(p.Text)
		}
	case "tool-call":
		var p toolEvent
		if err := json.Unmarshal(ev.Data, &p); err == nil {
			toolColor.Printf("⚙ %s %s\n", p.ToolName, compactJSON(p.Args))
		}
	case "tool-result":
		var p toolEvent
		if err := json.Unmarshal(ev.Data, &p); err == nil {
			dimColor.Printf("  ↳ %s\n", truncate(compactJSON(p.Result), 120))
		}
	case "finish":
		var p struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(ev.Data, &p); err == nil && p.Reason == "length" {
			dimColor.Println("\n(已达到最大步数，回答可能不完整)")
		}
	case "error":
		var p struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(ev.Data, &p)
		return errors.New(p.Message)
	}
	return nil
}

type toolEvent struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
	Result     json.RawMessage `json:"result"`
}

// printToolParts 打印历史消息中的工具调用
func printToolParts(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var parts []struct {
		Type           string     `json:"type"`
		ToolInvocation *toolEvent `json:"toolInvocation"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return
	}
	for _, p := range parts {
		if p.ToolInvocation == nil {
			continue
		}
		toolColor.Printf("⚙ %s %s\n", p.ToolInvocation.ToolName, compactJSON(p.ToolInvocation.Args))
	}
}

// renderMarkdown 终端下用 glamour 渲染，失败时原样返回
func renderMarkdown(text string) string {
	if strings.TrimSpace(text) == "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		return text
	}
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w - 4
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
