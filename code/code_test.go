package code

import (
	"strings"
	"testing"
	"time"
)

func TestMake(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int
		expected []byte
	}{
		{OpConstant, []int{65534}, []byte{byte(OpConstant), 255, 254}},
		{OpAdd, []int{}, []byte{byte(OpAdd)}},
		{OpGetLocal, []int{255}, []byte{byte(OpGetLocal), 255}},
		{OpAssignLocal, []int{3}, []byte{byte(OpAssignLocal), 3}},
		{OpAssignGlobal, []int{65535}, []byte{byte(OpAssignGlobal), 255, 255}},
		{OpClosure, []int{65535, 255}, []byte{byte(OpClosure), 255, 255, 255}},
		{OpGreaterOrEqual, []int{}, []byte{byte(OpGreaterOrEqual)}},
	}

	for _, tt := range tests {
		instruction := Make(tt.op, tt.operands...)

		if len(instruction) != len(tt.expected) {
			t.Fatalf("instruction has wrong length. want=%d, got=%d", len(tt.expected), len(instruction))
		}

		for i, b := range tt.expected {
			if instruction[i] != b {
				t.Errorf("wrong byte at pos %d. want=%d, got=%d", i, b, instruction[i])
			}
		}
	}
}

func TestInstructionsString(t *testing.T) {
	instructions := []Instructions{
		Make(OpAdd),
		Make(OpGetLocal, 1),
		Make(OpConstant, 2),
		Make(OpConstant, 65535),
		Make(OpClosure, 65535, 255),
		Make(OpAssignLocal, 4),
	}

	expected := `0000 OpAdd
0001 OpGetLocal 1
0003 OpConstant 2
0006 OpConstant 65535
0009 OpClosure 65535 255
0013 OpAssignLocal 4
`

	concatted := Instructions{}
	for _, ins := range instructions {
		concatted = append(concatted, ins...)
	}

	if concatted.String() != expected {
		t.Errorf("instructions wrongly formatted.\nwant=%q\ngot=%q", expected, concatted.String())
	}
}

func TestReadOperands(t *testing.T) {
	tests := []struct {
		op        Opcode
		operands  []int
		bytesRead int
	}{
		{OpConstant, []int{65535}, 2},
		{OpGetLocal, []int{255}, 1},
		{OpClosure, []int{65535, 255}, 3},
		{OpAssignGlobal, []int{1234}, 2},
	}

	for _, tt := range tests {
		instruction := Make(tt.op, tt.operands...)

		def, err := Lookup(byte(tt.op))
		if err != nil {
			t.Fatalf("definition not found: %q", err)
		}

		operandsRead, n := ReadOperands(def, instruction[1:])
		if n != tt.bytesRead {
			t.Fatalf("n wrong. want=%d, got=%d", tt.bytesRead, n)
		}

		for i, want := range tt.operands {
			if operandsRead[i] != want {
				t.Errorf("operand wrong. want=%d, got=%d", want, operandsRead[i])
			}
		}
	}
}

func TestLookupUnknownOpcode(t *testing.T) {
	_, err := Lookup(0xFF)
	if err == nil {
		t.Fatal("expected an error for an undefined opcode, got nil")
	}
}

// TestInstructionsStringUnknownOpcodeDoesNotHang guards against a bad opcode byte
// stalling the disassembler loop: it must report the error and keep advancing.
func TestInstructionsStringUnknownOpcodeDoesNotHang(t *testing.T) {
	instructions := Instructions{}
	instructions = append(instructions, Make(OpAdd)...)
	instructions = append(instructions, 0xFF)
	instructions = append(instructions, Make(OpAdd)...)

	done := make(chan string, 1)
	go func() { done <- instructions.String() }()

	select {
	case out := <-done:
		if !strings.Contains(out, "ERROR:") {
			t.Errorf("expected an ERROR line for the unknown opcode, got %q", out)
		}
		if strings.Count(out, "OpAdd") != 2 {
			t.Errorf("expected disassembly to resume after the bad opcode, got %q", out)
		}
	case <-time.After(time.Second):
		t.Fatal("Instructions.String() did not return: unknown opcode caused an infinite loop")
	}
}
