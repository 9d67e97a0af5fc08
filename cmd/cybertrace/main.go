// CybertraceAI-Ops 命令行客户端
package main

import "cybertrace-ops/internal/cli/cmd"

func main() {
	cmd.Execute()
}
