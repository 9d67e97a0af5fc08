// Package cmd 实现 CLI 命令
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cybertrace-ops/internal/cli/api"
	"cybertrace-ops/internal/cli/config"
)

var store *config.Store

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
	toolColor    = color.New(color.FgCyan)
	titleColor   = color.New(color.Bold)
)

var rootCmd = &cobra.Command{
	Use:   "cybertrace",
	Short: "CybertraceAI-Ops 命令行客户端",
	Long: `CybertraceAI-Ops 命令行客户端

通过自然语言查询网络状态，管理历史对话。
首次使用请运行 'cybertrace login'。`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringP("server", "s", "", "服务器地址 (默认: "+config.DefaultServerURL+")")
	rootCmd.PersistentFlags().String("config-dir", "", "配置目录 (默认: ~/.cybertrace)")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("config-dir")
	s, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}
	// 如果指定了服务器地址，更新配置
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		s.SetServerURL(server)
	}
	store = s
	return nil
}

// newClient 创建带当前 Token 的 API 客户端
func newClient() *api.Client {
	return api.NewClient(store.ServerURL(), store.AccessToken())
}

// requireLogin 未登录时返回错误
func requireLogin() error {
	if !store.IsLoggedIn() {
		return api.ErrUnauthorized
	}
	return nil
}

// withRefresh 调用失败且原因是 Token 过期时，刷新一次后重试
func withRefresh(ctx context.Context, fn func(c *api.Client) error) error {
	err := fn(newClient())
	if err == nil || !isUnauthorized(err) || store.RefreshToken() == "" {
		return err
	}

	token, refreshErr := api.NewClient(store.ServerURL(), "").Refresh(ctx, store.RefreshToken())
	if refreshErr != nil {
		return err
	}
	if saveErr := store.SaveAccessToken(token); saveErr != nil {
		return saveErr
	}
	return fn(newClient())
}
