package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalIncludesAllFields(t *testing.T) {
	task := Task{ID: 1, Title: "A", Description: "", Completed: false}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	want := `{"id":1,"title":"A","description":"","completed":false}`
	if string(payload) != want {
		t.Fatalf("unexpected payload: %s", payload)
	}
	if !strings.Contains(string(payload), "\"completed\":false") {
		t.Fatalf("expected completed field to be present, got %s", payload)
	}
}

func TestNextID(t *testing.T) {
	tests := []struct {
		name     string
		ids      []int64
		strategy IDStrategy
		want     int64
	}{
		{name: "empty last", strategy: IDFromLast, want: 1},
		{name: "empty max", strategy: IDFromMax, want: 1},
		{name: "last element", ids: []int64{1, 2, 3}, strategy: IDFromLast, want: 4},
		{name: "last not max", ids: []int64{5, 2}, strategy: IDFromLast, want: 3},
		{name: "true max", ids: []int64{5, 2}, strategy: IDFromMax, want: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := make([]Task, 0, len(tt.ids))
			for _, id := range tt.ids {
				tasks = append(tasks, Task{ID: id})
			}
			if got := NextID(tasks, tt.strategy); got != tt.want {
				t.Fatalf("NextID(%v, %s) = %d, want %d", tt.ids, tt.strategy, got, tt.want)
			}
		})
	}
}

func TestParseIDStrategy(t *testing.T) {
	for in, want := range map[string]IDStrategy{"": IDFromLast, "last": IDFromLast, "MAX": IDFromMax} {
		got, err := ParseIDStrategy(in)
		if err != nil {
			t.Fatalf("ParseIDStrategy(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseIDStrategy(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseIDStrategy("random"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{in: "1", want: 1, wantOK: true},
		{in: "42abc", want: 42, wantOK: true},
		{in: "1.5", want: 1, wantOK: true},
		{in: "  7", want: 7, wantOK: true},
		{in: "-3", want: -3, wantOK: true},
		{in: "+8", want: 8, wantOK: true},
		{in: "0x1A", want: 26, wantOK: true},
		{in: "007", want: 7, wantOK: true},
		{in: "abc"},
		{in: ""},
		{in: "-"},
		{in: "0x"},
		{in: "99999999999999999999"},
	}
	for _, tt := range tests {
		got, ok := ParseID(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("ParseID(%q) = %d/%v, want %d/%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestIndexOfAndWithout(t *testing.T) {
	tasks := []Task{{ID: 1}, {ID: 2}, {ID: 3}}
	if i := IndexOf(tasks, 2); i != 1 {
		t.Fatalf("expected index 1, got %d", i)
	}
	if i := IndexOf(tasks, 9); i != -1 {
		t.Fatalf("expected -1, got %d", i)
	}
	rest := Without(tasks, 2)
	if len(rest) != 2 || rest[0].ID != 1 || rest[1].ID != 3 {
		t.Fatalf("unexpected remaining tasks: %#v", rest)
	}
	if len(tasks) != 3 {
		t.Fatalf("input slice modified: %#v", tasks)
	}
}
