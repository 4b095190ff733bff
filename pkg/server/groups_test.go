package server

import "testing"

func TestClassifyToolGroup(t *testing.T) {
	cases := []struct {
		name      string
		wantGroup string
		wantSub   string
	}{
		{"web_search", "搜索信息", "search"},
		{"fetch_url", "深度访问", "browse"},
		{"read_file", "文件操作", "file"},
		{"mcp_github", "MCP服务调用", "mcp"},
		{"run_python", "代码执行", "code"},
		{"calculator", defaultToolGroup, defaultToolSubItemType},
	}
	for _, c := range cases {
		group, sub := classifyToolGroup(c.name)
		if group != c.wantGroup || sub != c.wantSub {
			t.Errorf("classifyToolGroup(%q) = (%q, %q), want (%q, %q)", c.name, group, sub, c.wantGroup, c.wantSub)
		}
	}
}

func TestDisplayTitleFor(t *testing.T) {
	if got := displayTitleFor("web_search", "搜索信息"); got != "Searching: web_search" {
		t.Errorf("displayTitleFor() = %q", got)
	}
	if got := displayTitleFor("calculator", defaultToolGroup); got != "Calling: calculator" {
		t.Errorf("displayTitleFor() default = %q", got)
	}
}
