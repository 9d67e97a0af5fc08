package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cybertrace-ops/internal/cli/api"
)

var chatsCmd = &cobra.Command{
	Use:     "chats",
	Aliases: []string{"chat"},
	Short:   "管理历史对话",
	RunE:    runChatsList,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出历史对话",
	Args:  cobra.NoArgs,
	RunE:  runChatsList,
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "显示对话内容",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsShow,
}

var chatsRenameCmd = &cobra.Command{
	Use:   "rename <chat-id> <title>",
	Short: "重命名对话",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runChatsRename,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "删除对话",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsDelete,
}

func init() {
	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd, chatsRenameCmd, chatsDeleteCmd)
	rootCmd.AddCommand(chatsCmd)
}

func runChatsList(cmd *cobra.Command, _ []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var chats []api.Chat
	err := withRefresh(ctx, func(c *api.Client) error {
		var err error
		chats, err = c.ListChats(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Println("暂无对话，运行 'cybertrace ask \"...\"' 开始提问")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCREATED")
	for _, chat := range chats {
		title := chat.Title
		if title == "" {
			title = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", chat.ID, title, chat.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runChatsShow(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var detail *api.ChatDetail
	err := withRefresh(ctx, func(c *api.Client) error {
		var err error
		detail, err = c.GetChat(ctx, args[0])
		return err
	})
	if err != nil {
		return err
	}

	titleColor.Println(detail.Chat.Title)
	dimColor.Printf("%s · %s\n\n", detail.Chat.ID, detail.Chat.CreatedAt.Local().Format("2006-01-02 15:04"))
	for _, msg := range detail.Messages {
		switch msg.Role {
		case "user":
			successColor.Print("> ")
			fmt.Println(msg.Content)
		default:
			printToolParts(msg.Parts)
			fmt.Println(renderMarkdown(msg.Content))
		}
		fmt.Println()
	}
	return nil
}

func runChatsRename(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	title := strings.Join(args[1:], " ")
	var chat *api.Chat
	err := withRefresh(ctx, func(c *api.Client) error {
		var err error
		chat, err = c.RenameChat(ctx, args[0], title)
		return err
	})
	if err != nil {
		return err
	}
	successColor.Printf("✓ 已重命名为 %q\n", chat.Title)
	return nil
}

func runChatsDelete(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	err := withRefresh(ctx, func(c *api.Client) error {
		return c.DeleteChat(ctx, args[0])
	})
	if err != nil {
		return err
	}
	successColor.Println("✓ 对话已删除")
	return nil
}
