package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cybertrace-ops/internal/cli/api"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "登录账号",
	Long: `使用邮箱和密码登录，凭证保存在本地配置文件中。

示例:
  cybertrace login
  cybertrace login --email admin@example.com`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "退出登录",
	Long:  `注销服务端 Token 并清除本地保存的登录凭证。`,
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示当前状态",
	Long: `显示当前登录状态和配置信息。

包括：
- 服务器地址
- 配置文件位置
- 当前用户（如果已登录）`,
	RunE: runStatus,
}

func init() {
	loginCmd.Flags().StringP("email", "e", "", "登录邮箱")
	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	reader := bufio.NewReader(os.Stdin)

	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		fmt.Print("邮箱: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return errors.Wrap(err, "read email")
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return errors.New("邮箱不能为空")
	}

	password, err := readPassword(reader)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	resp, err := api.NewClient(store.ServerURL(), "").Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := store.SaveAuth(email, resp.AccessToken, resp.RefreshToken); err != nil {
		return err
	}

	name := email
	if resp.User != nil && resp.User.Name != "" {
		name = resp.User.Name
	}
	successColor.Printf("✓ 登录成功，欢迎 %s\n", name)
	return nil
}

// readPassword 终端下不回显读取密码，管道输入时按行读取
func readPassword(reader *bufio.Reader) (string, error) {
	fmt.Print("密码: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", errors.Wrap(err, "read password")
		}
		return string(b), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	if !store.IsLoggedIn() {
		fmt.Println("当前未登录")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	// 服务端注销失败（如 Token 已过期）不影响本地清理
	if err := newClient().Logout(ctx); err != nil {
		dimColor.Printf("服务端注销失败: %v\n", err)
	}
	if err := store.Clear(); err != nil {
		return err
	}
	successColor.Println("✓ 已退出登录")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║          CybertraceAI-Ops 状态信息              ║")
	fmt.Println("╠════════════════════════════════════════════════╣")
	fmt.Printf("║  服务器: %s\n", store.ServerURL())
	fmt.Printf("║  配置文件: %s\n", store.Path())

	if !store.IsLoggedIn() {
		fmt.Print("║  登录状态: ")
		errorColor.Println("✗ 未登录")
		fmt.Println("║")
		fmt.Println("║  请运行 'cybertrace login' 完成登录")
		fmt.Println("╚════════════════════════════════════════════════╝")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	var user *api.User
	err := withRefresh(ctx, func(c *api.Client) error {
		u, err := c.Me(ctx)
		user = u
		return err
	})

	fmt.Print("║  登录状态: ")
	switch {
	case err == nil:
		successColor.Println("✓ 已登录")
		fmt.Printf("║  用户: %s <%s>\n", user.Name, user.Email)
	case isUnauthorized(err):
		errorColor.Println("✗ 登录已过期")
		fmt.Println("║  请运行 'cybertrace login' 重新登录")
	default:
		errorColor.Println("? 无法连接服务器")
		fmt.Printf("║  %v\n", err)
	}
	fmt.Println("╚════════════════════════════════════════════════╝")
	return nil
}

func isUnauthorized(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}
