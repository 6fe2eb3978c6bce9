package mock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/DhimiMohamed/taskmanager/provider"
)

func TestMockProvider_Name(t *testing.T) {
	m := New()
	if got := m.Name(); got != "mock" {
		t.Errorf("Name() = %q, want %q", got, "mock")
	}
}

func TestMockProvider_Chat_DefaultResponse(t *testing.T) {
	m := New()
	resp, err := m.Chat(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != defaultResponse {
		t.Errorf("Chat() content = %q, want %q", resp.Content, defaultResponse)
	}
}

func TestMockProvider_Chat_CyclesResponses(t *testing.T) {
	m := New("first", "second", "third")

	want := []string{"first", "second", "third", "first"}
	for i, w := range want {
		resp, err := m.Chat(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("Chat() call %d error = %v", i, err)
		}
		if resp.Content != w {
			t.Errorf("Chat() call %d = %q, want %q", i, resp.Content, w)
		}
	}
}

func TestMockProvider_Script(t *testing.T) {
	boom := errors.New("boom")
	m := Script(
		Calls(provider.ToolCall{ID: "1", Name: "create_task", Arguments: map[string]any{"title": "x"}}),
		Fail(boom),
		Text("done"),
	)
	ctx := context.Background()

	resp, err := m.Chat(ctx, nil, nil)
	if err != nil || len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "create_task" {
		t.Fatalf("step 1 = %+v, %v", resp, err)
	}
	if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, boom) {
		t.Fatalf("step 2 err = %v, want boom", err)
	}
	if resp, err := m.Chat(ctx, nil, nil); err != nil || resp.Content != "done" {
		t.Fatalf("step 3 = %+v, %v", resp, err)
	}
	if _, err := m.Chat(ctx, nil, nil); err == nil || !strings.Contains(err.Error(), "exhausted") {
		t.Fatalf("step 4 err = %v, want exhausted", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	m := New("hello")
	msgs := []provider.Message{{Role: provider.RoleUser, Content: "hi"}}
	tools := []provider.ToolDef{{Name: "mytool", Description: "does stuff"}}
	if _, err := m.Chat(context.Background(), msgs, tools); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	msgs[0].Content = "mutated"

	calls := m.Calls()
	if len(calls) != 1 {
		t.Fatalf("len(Calls()) = %d, want 1", len(calls))
	}
	if calls[0].Messages[0].Content != "hi" {
		t.Errorf("recorded message = %q, want hi", calls[0].Messages[0].Content)
	}
	if calls[0].Tools[0].Name != "mytool" {
		t.Errorf("recorded tool = %q", calls[0].Tools[0].Name)
	}
}

func TestMockProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New("x").Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMockProvider_Concurrent(t *testing.T) {
	m := New("a", "b")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Chat(context.Background(), nil, nil)
		}()
	}
	wg.Wait()
	if got := len(m.Calls()); got != 20 {
		t.Errorf("len(Calls()) = %d, want 20", got)
	}
}
