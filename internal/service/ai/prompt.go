package ai

import (
	"fmt"
	"strings"
)

// SystemInstruction frames every assistant conversation.
const SystemInstruction = "You are DadMind AI, a supportive and understanding assistant for fathers. " +
	"Provide helpful advice, resources, and a listening ear. Be empathetic and encouraging."

// adviceTemplate asks for short, practical stress-management advice.
const adviceTemplate = `Một người cha vừa hoàn thành bài test tâm lý và có mức độ stress là %d%%.
Hãy đưa ra những nhận xét và lời khuyên cụ thể, mang tính hỗ trợ và xây dựng cho người cha này để giúp họ quản lý stress.
Tập trung vào các giải pháp thiết thực mà một người cha có thể áp dụng trong cuộc sống hàng ngày.
Lời khuyên nên ngắn gọn, khoảng 3-4 gạch đầu dòng.`

// AdvicePrompt builds the one-shot advice request for a stress percentage.
func AdvicePrompt(percentage int) string {
	return fmt.Sprintf(adviceTemplate, percentage)
}

// DocumentPrompt prefixes a question with an excerpt of an attached
// document. The excerpt is cut to at most limit runes.
func DocumentPrompt(fileName, content, question string, limit int) string {
	excerpt := content
	if limit > 0 {
		if runes := []rune(content); len(runes) > limit {
			excerpt = string(runes[:limit])
		}
	}

	var b strings.Builder
	b.WriteString("Dựa vào nội dung tài liệu sau")
	if fileName != "" {
		b.WriteString(" (")
		b.WriteString(fileName)
		b.WriteString(")")
	}
	b.WriteString(":\n\n---\n")
	b.WriteString(excerpt)
	b.WriteString("\n---\n\nHãy trả lời câu hỏi: ")
	b.WriteString(question)
	return b.String()
}
