// Package extract 从邮件文本中启发式提取候选验证码。
package extract

import (
	"regexp"
	"sort"
)

// 多个独立的扫描模式，结果取并集。
// 刻意偏向召回率：裸数字模式会把电话号码等误报进来，属于接受的取舍。
var codePatterns = []*regexp.Regexp{
	// 4-8 位裸数字，词边界约束
	regexp.MustCompile(`\b(\d{4,8})\b`),
	// "code" 后接可选标点/空白，再接 4-10 位字母数字
	regexp.MustCompile(`(?i)\bcode\b[\s:：.,\-]*([A-Za-z0-9]{4,10})`),
	// "verification" 同上
	regexp.MustCompile(`(?i)\bverification\b[\s:：.,\-]*([A-Za-z0-9]{4,10})`),
	// "OTP" 仅限数字
	regexp.MustCompile(`(?i)\botp\b[\s:：.,\-]*(\d{4,10})`),
	// "pin" 仅限数字
	regexp.MustCompile(`(?i)\bpin\b[\s:：.,\-]*(\d{4,10})`),
}

// Codes 对文本做多模式扫描，返回去重后的候选验证码。
//
// 输入为空时返回空切片，永不报错；结果排序保证确定性。
func Codes(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, pattern := range codePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if len(match) > 1 && match[1] != "" {
				seen[match[1]] = struct{}{}
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
