// ABOUTME: Per-module colours and display aliases for the text handler
// ABOUTME: Modules without an entry are printed with their raw name, uncoloured

package logging

import "github.com/fatih/color"

type moduleStyle struct {
	alias string
	color *color.Color
}

func ansi256(n int) *color.Color {
	return color.New(color.Attribute(38), color.Attribute(5), color.Attribute(n))
}

var modules = map[string]moduleStyle{
	"main":           {"主程序", color.New(color.Bold, color.FgHiWhite)},
	"config":         {"配置", color.New(color.FgHiYellow)},
	"database":       {"数据库", ansi256(94)},
	"watcher":        {"文件监视", ansi256(242)},
	"logger":         {"", ansi256(8)},
	"confirm":        {"", color.New(color.Bold, color.FgHiYellow)},
	"common":         {"", color.New(color.FgHiMagenta)},
	"sender":         {"消息发送", ansi256(24)},
	"replyer":        {"言语", ansi256(208)},
	"llm_models":     {"模型", color.New(color.FgCyan)},
	"chat":           {"所见", ansi256(82)},
	"chat_stream":    {"聊天流", ansi256(51)},
	"emoji":          {"表情包", ansi256(214)},
	"memory":         {"记忆", ansi256(34)},
	"person_info":    {"人物", color.New(color.FgGreen)},
	"planner":        {"规划器", color.New(color.FgCyan)},
	"plugin_manager": {"插件", ansi256(208)},
	"expressor":      {"表达方式", ansi256(166)},
	"hfc":            {"聊天节奏", ansi256(175)},
}

// styleFor returns the label shown for module and the colour to paint it.
func styleFor(module string) (string, *color.Color) {
	style, ok := modules[module]
	if !ok {
		return module, nil
	}
	if style.alias == "" {
		return module, style.color
	}
	return style.alias, style.color
}
