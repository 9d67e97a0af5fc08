package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
	_ "time/tzdata" // 保证最小化镜像中也能解析 IANA 时区

	"github.com/mark3labs/mcp-go/mcp"
)

// HumanizeTimestampName 时间戳转换工具名
const HumanizeTimestampName = "humanize_timestamp_tool"

// humanizeLayout 输出格式: YYYY-MM-DD HH:MM:SS 时区缩写
const humanizeLayout = "2006-01-02 15:04:05 MST"

// HumanizeTimestamp 将毫秒级 UNIX 时间戳转换为可读的日期时间字符串
type HumanizeTimestamp struct{}

// Name 实现 tools.Tool
func (HumanizeTimestamp) Name() string { return HumanizeTimestampName }

// Description 实现 tools.Tool
func (HumanizeTimestamp) Description() string {
	return "Converts a UNIX epoch timestamp (in milliseconds) to a human-readable datetime string."
}

// Spec 返回工具的输入 schema
func (h HumanizeTimestamp) Spec() mcp.Tool {
	return mcp.NewTool(HumanizeTimestampName,
		mcp.WithDescription(h.Description()),
		mcp.WithNumber("timestamp_ms",
			mcp.Required(),
			mcp.Description("The UNIX epoch timestamp in milliseconds."),
		),
		mcp.WithString("tz",
			mcp.Description(`The target timezone (e.g., "America/New_York").`),
			mcp.DefaultString("UTC"),
		),
	)
}

// Call 实现 tools.Tool
// 输入不合法或时区未知时返回错误文本，不返回 error
func (HumanizeTimestamp) Call(_ context.Context, input string) (string, error) {
	var args struct {
		TimestampMS *float64 `json:"timestamp_ms"`
		TZ          *string  `json:"tz"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments for %s: %v", HumanizeTimestampName, err), nil
	}
	if args.TimestampMS == nil {
		return fmt.Sprintf("Error: invalid arguments for %s: timestamp_ms is required", HumanizeTimestampName), nil
	}

	tz := "UTC"
	if args.TZ != nil && *args.TZ != "" {
		tz = *args.TZ
	}
	return Humanize(*args.TimestampMS, tz), nil
}

// Humanize 将毫秒时间戳格式化为指定时区的时间
// 失败时返回 "Error converting timestamp <ts> to timezone <tz>: <原因>"
func Humanize(timestampMS float64, tz string) string {
	if math.IsNaN(timestampMS) || math.IsInf(timestampMS, 0) {
		return humanizeError(timestampMS, tz, "invalid timestamp")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return humanizeError(timestampMS, tz, err.Error())
	}
	t := time.UnixMilli(int64(math.Floor(timestampMS))).In(loc)
	return t.Format(humanizeLayout)
}

func humanizeError(timestampMS float64, tz, reason string) string {
	return fmt.Sprintf("Error converting timestamp %s to timezone %s: %s",
		strconv.FormatFloat(timestampMS, 'f', -1, 64), tz, reason)
}
