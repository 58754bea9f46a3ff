package service

import (
	"strings"

	"ragspace-go/internal/model"
)

// AssemblePrompt 将历史问答、检索到的文档片段与当前问题拼装为完整提示词。
// 三段内容依次为：最近的历史问答、文档上下文、当前问题；空的段落直接省略。
func AssemblePrompt(history []model.MemoryEntry, contexts []string, message string) string {
	var b strings.Builder

	if len(history) > 0 {
		turns := make([]string, 0, len(history))
		for _, entry := range history {
			turns = append(turns, "User: "+entry.Msg+"\nAssistant: "+entry.Res)
		}
		b.WriteString(strings.Join(turns, "\n"))
		b.WriteString("\n\n")
	}

	if len(contexts) > 0 {
		b.WriteString("Context from documents:\n")
		b.WriteString(strings.Join(contexts, "\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("User: " + message)
	return b.String()
}
