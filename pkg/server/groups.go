package server

import "strings"

// toolGroupRule maps a tool name substring to a display category. The
// keyword table and category labels are fixed by §4.5; everything else
// falls into the default "工具调用" bucket.
type toolGroupRule struct {
	keywords    []string
	group       string
	subItemType string
}

var toolGroupRules = []toolGroupRule{
	{[]string{"search", "query", "lookup", "find"}, "搜索信息", "search"},
	{[]string{"browse", "fetch", "crawl", "url", "http", "scrape"}, "深度访问", "browse"},
	{[]string{"file", "read", "write", "disk", "fs"}, "文件操作", "file"},
	{[]string{"mcp"}, "MCP服务调用", "mcp"},
	{[]string{"exec", "code", "python", "shell", "run", "eval"}, "代码执行", "code"},
}

const (
	defaultToolGroup       = "工具调用"
	defaultToolSubItemType = "tool"
)

// classifyToolGroup buckets a tool name into one of §4.5's fixed display
// categories by keyword match against the tool's name.
func classifyToolGroup(name string) (group, subItemType string) {
	lower := strings.ToLower(name)
	for _, rule := range toolGroupRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.group, rule.subItemType
			}
		}
	}
	return defaultToolGroup, defaultToolSubItemType
}

// displayTitleFor renders a short human string for a tool call, shown in
// the UI before its result arrives.
func displayTitleFor(name, group string) string {
	switch group {
	case "搜索信息":
		return "Searching: " + name
	case "深度访问":
		return "Browsing: " + name
	case "文件操作":
		return "File operation: " + name
	case "MCP服务调用":
		return "MCP call: " + name
	case "代码执行":
		return "Running: " + name
	default:
		return "Calling: " + name
	}
}
