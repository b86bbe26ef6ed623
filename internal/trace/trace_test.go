package trace

import (
	"encoding/json"
	"testing"
)

func TestDefaultFormatterInstructionOnly(t *testing.T) {
	r := Record{PC: 0x1000, InstBytes: 0xDEADBEEF, DecodedText: "addi"}
	got := DefaultFormatter{}.Format(r, Options{LogInstruction: true})
	want := "PC:0x00001000 Inst:0xdeadbeef (addi)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDefaultFormatterOmitsDisabledCategories(t *testing.T) {
	r := Record{
		PC:       0x10,
		IsBranch: true,
		Branch:   Branch{Taken: true, Target: 0x20},
		MemEvents: []MemEvent{
			{Type: MemWrite, Address: 0x1000, Data: 0x42},
		},
	}
	got := DefaultFormatter{}.Format(r, Options{})
	if got != "" {
		t.Fatalf("expected empty string with all categories off, got %q", got)
	}
}

func TestDefaultFormatterBranchRequiresIsBranch(t *testing.T) {
	r := Record{Branch: Branch{Taken: true}}
	got := DefaultFormatter{}.Format(r, Options{LogBranchPrediction: true})
	if got != "" {
		t.Fatalf("non-branch record produced a BP field: %q", got)
	}
}

func TestDefaultFormatterMemEventsExcludesEmptySet(t *testing.T) {
	r := Record{}
	got := DefaultFormatter{}.Format(r, Options{LogMemEvents: true})
	if got != "" {
		t.Fatalf("empty mem-events record produced a Mem field: %q", got)
	}
}

func TestDefaultFormatterCombinesCategories(t *testing.T) {
	r := Record{
		PC:          0x8,
		InstBytes:   0x1,
		DecodedText: "beq",
		IsBranch:    true,
		Branch:      Branch{Taken: true, Target: 0x100, PredictedTaken: false, PredictedTarget: 0x4},
		MemEvents: []MemEvent{
			{Type: MemRead, Address: 0x2000, Data: 0x99},
		},
	}
	got := DefaultFormatter{}.Format(r, Options{LogInstruction: true, LogBranchPrediction: true, LogMemEvents: true})
	want := "PC:0x00000008 Inst:0x00000001 (beq) BP:(T:1 P:0 Target:0x100 PTarget:0x4) Mem:[R:0x2000=99]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestJSONFormatterCombinesCategories(t *testing.T) {
	r := Record{
		PC:          0x8,
		InstBytes:   0x1,
		DecodedText: "beq",
		CycleBegin:  10,
		CycleEnd:    11,
		IsBranch:    true,
		Branch:      Branch{Taken: true, Target: 0x100, PredictedTaken: false, PredictedTarget: 0x4},
		MemEvents: []MemEvent{
			{Type: MemRead, Address: 0x2000, Size: 4, Data: 0x99, Latency: 1},
		},
		Extra: []Extra{{Key: "note", Value: "x"}},
	}
	got := JSONFormatter{}.Format(r, Options{LogInstruction: true, LogBranchPrediction: true, LogMemEvents: true})

	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("JSONFormatter produced invalid JSON %q: %v", got, err)
	}
	if pc, _ := decoded["pc"].(float64); uint64(pc) != r.PC {
		t.Fatalf("decoded pc = %v, want %d", decoded["pc"], r.PC)
	}
	branch, ok := decoded["branch"].(map[string]any)
	if !ok {
		t.Fatalf("decoded branch field missing or wrong shape: %v", decoded["branch"])
	}
	if taken, _ := branch["taken"].(bool); !taken {
		t.Fatal("decoded branch.taken = false, want true")
	}
	mem, ok := decoded["mem"].([]any)
	if !ok || len(mem) != 1 {
		t.Fatalf("decoded mem field = %v, want a one-element array", decoded["mem"])
	}
	extra, ok := decoded["extra"].(map[string]any)
	if !ok || extra["note"] != "x" {
		t.Fatalf("decoded extra field = %v, want {note: x}", decoded["extra"])
	}
}

func TestJSONFormatterOmitsDisabledCategories(t *testing.T) {
	r := Record{
		PC:       0x10,
		IsBranch: true,
		Branch:   Branch{Taken: true, Target: 0x20},
		MemEvents: []MemEvent{
			{Type: MemWrite, Address: 0x1000, Data: 0x42},
		},
	}
	got := JSONFormatter{}.Format(r, Options{})

	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("JSONFormatter produced invalid JSON %q: %v", got, err)
	}
	if len(decoded) != 0 {
		t.Fatalf("decoded = %v, want an empty object with all categories off", decoded)
	}
}

func TestOptionsEnabled(t *testing.T) {
	if (Options{}).Enabled() {
		t.Fatal("zero-value Options reports enabled")
	}
	if !(Options{LogMemEvents: true}).Enabled() {
		t.Fatal("Options with one category set reports disabled")
	}
}
