package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"cybertrace-ops/internal/cli/api"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监听对话标题更新和删除通知",
	Long: `通过 WebSocket 连接服务器，实时打印当前用户的对话通知。

按 Ctrl+C 退出。`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	dimColor.Printf("已连接 %s，等待通知...\n", store.ServerURL())
	return withRefresh(ctx, func(c *api.Client) error {
		return c.Watch(ctx, printNotification)
	})
}

func printNotification(n api.Notification) {
	ts := time.UnixMilli(n.Timestamp).Local().Format("15:04:05")
	var p struct {
		ChatID string `json:"chat_id"`
		Title  string `json:"title"`
	}
	_ = json.Unmarshal(n.Payload, &p)

	switch n.Type {
	case "chat:title":
		fmt.Printf("[%s] ", ts)
		successColor.Printf("title %s → %q\n", p.ChatID, p.Title)
	case "chat:deleted":
		fmt.Printf("[%s] ", ts)
		errorColor.Printf("deleted %s\n", p.ChatID)
	default:
		dimColor.Printf("[%s] %s\n", ts, n.Type)
	}
}
