package generation

import (
	"fmt"
	"sort"
	"strings"
)

// BuildPrompt 构建生成提示词
//
// 拼接固定模板：产品名、模板名集合、扁平化的 "规格: 取值" 列表
// （未选规格时跳过），最终经 Sanitize 清洗后交给适配器。
// 规格键排序以保证同一输入产出同一提示词。
func BuildPrompt(product string, templates []string, specs map[string][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional studio product photograph of %s", product)

	if len(templates) > 0 {
		fmt.Fprintf(&b, ", scene style %s", strings.Join(templates, " and "))
	}

	if len(specs) > 0 {
		keys := make([]string, 0, len(specs))
		for k := range specs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(specs[k], " ")))
		}
		fmt.Fprintf(&b, ", with %s", strings.Join(parts, ", "))
	}

	b.WriteString(", clean background, sharp focus, commercial quality")
	return Sanitize(b.String())
}
