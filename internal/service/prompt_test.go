package service

import (
	"strings"
	"testing"

	"ragspace-go/internal/model"
)

func TestAssemblePromptEmpty(t *testing.T) {
	got := AssemblePrompt(nil, nil, "你好")
	if got != "User: 你好" {
		t.Errorf("AssemblePrompt() = %q, 期望 %q", got, "User: 你好")
	}
}

func TestAssemblePromptFull(t *testing.T) {
	history := []model.MemoryEntry{
		{Msg: "第一个问题", Res: "第一个回答"},
		{Msg: "第二个问题", Res: "第二个回答"},
	}
	contexts := []string{"片段一", "片段二"}

	got := AssemblePrompt(history, contexts, "当前问题")

	want := "User: 第一个问题\nAssistant: 第一个回答\n" +
		"User: 第二个问题\nAssistant: 第二个回答\n\n" +
		"Context from documents:\n片段一\n片段二\n\n" +
		"User: 当前问题"
	if got != want {
		t.Errorf("AssemblePrompt() = %q, 期望 %q", got, want)
	}

	// 历史必须在上下文之前，上下文必须在当前问题之前
	hi := strings.Index(got, "第一个问题")
	ci := strings.Index(got, "Context from documents:")
	mi := strings.LastIndex(got, "User: 当前问题")
	if !(hi < ci && ci < mi) {
		t.Error("提示词三段顺序错误")
	}
}

func TestAssemblePromptOnlyContexts(t *testing.T) {
	got := AssemblePrompt(nil, []string{"唯一片段"}, "问题")
	want := "Context from documents:\n唯一片段\n\nUser: 问题"
	if got != want {
		t.Errorf("AssemblePrompt() = %q, 期望 %q", got, want)
	}
}

func TestAssemblePromptOnlyHistory(t *testing.T) {
	history := []model.MemoryEntry{{Msg: "问", Res: "答"}}
	got := AssemblePrompt(history, nil, "问题")
	want := "User: 问\nAssistant: 答\n\nUser: 问题"
	if got != want {
		t.Errorf("AssemblePrompt() = %q, 期望 %q", got, want)
	}
}
