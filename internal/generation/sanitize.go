// Package generation 实现生成级联核心：
//   - 提示词清洗与构建
//   - 供应商排序与尝试循环
//   - 会话计数、点数扣减与历史留存
package generation

import "strings"

// maxPromptLength 提示词最大长度
const maxPromptLength = 1000

// Sanitize 清洗提示词
//
// 变换按序执行：
//  1. 换行/回车/制表/引号 → 空格
//  2. 花括号/方括号 → 空格
//  3. 百分号/圆括号/尖括号 → 空格
//  4. 可打印 ASCII（0x20–0x7E）之外的字符 → 空格
//     注意：这一步会剥掉所有非拉丁文字（包括中文提示词正文），
//     只有 ASCII 词元与标点能到达图片供应商
//  5. 连续空白折叠为单个空格并去除首尾空白
//  6. 截断到 1000 字符
//
// 保证：输出不含控制字符，可安全进行 URL 编码或 JSON 嵌入。
// 无错误路径，始终返回字符串（可能为空）。
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r' || r == '\t' || r == '"' || r == '\'':
			b.WriteByte(' ')
		case r == '{' || r == '}' || r == '[' || r == ']':
			b.WriteByte(' ')
		case r == '%' || r == '(' || r == ')' || r == '<' || r == '>':
			b.WriteByte(' ')
		case r < 0x20 || r > 0x7E:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	if len(out) > maxPromptLength {
		out = strings.TrimSpace(out[:maxPromptLength])
	}
	return out
}
