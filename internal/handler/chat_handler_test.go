package handler

import (
	"context"
	"testing"
	"time"
)

func TestTurnContextUnbounded(t *testing.T) {
	// 配置省略 turn_timeout_seconds 时超时为 0，表示不限制时长
	ctx, cancel := turnContext(context.Background(), 0)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatalf("超时为 0 时上下文不应立即过期: %v", ctx.Err())
	default:
	}
	if _, ok := ctx.Deadline(); ok {
		t.Error("超时为 0 时不应设置截止时间")
	}

	// 停止指令仍要能取消
	cancel()
	if ctx.Err() == nil {
		t.Error("取消后上下文应当结束")
	}
}

func TestTurnContextBounded(t *testing.T) {
	ctx, cancel := turnContext(context.Background(), time.Minute)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("正超时应设置截止时间")
	}
	if time.Until(deadline) <= 0 {
		t.Error("截止时间不应已经过去")
	}
	select {
	case <-ctx.Done():
		t.Fatalf("上下文不应立即过期: %v", ctx.Err())
	default:
	}
}
