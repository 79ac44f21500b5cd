// Package debugdump exports a JSON-serializable snapshot of compiler/VM
// introspection data for external tooling — editors, a disassembler
// pipeline, anything that wants the compiled form of a Vela program without
// linking against the compiler itself.
//
// This is a one-way export. There is no decode path: the dump is consumed,
// never reloaded back into a *compiler.Bytecode.
package debugdump

import (
	"github.com/go-faster/jx"

	"github.com/vela-lang/vela/compiler"
)

// Dump is the serializable snapshot of a compiled program.
type Dump struct {
	Disassembly string
	Constants   []string
	Globals     []SymbolBinding
}

// SymbolBinding names one global binding visible at the time the dump was
// taken; used when a dump is requested mid-REPL-session.
type SymbolBinding struct {
	Name  string
	Index int
}

// FromBytecode builds a Dump from a compiled program's bytecode.
func FromBytecode(bc *compiler.Bytecode) Dump {
	constants := make([]string, len(bc.Constants))
	for i, c := range bc.Constants {
		constants[i] = c.Inspect()
	}

	return Dump{
		Disassembly: bc.Instructions.String(),
		Constants:   constants,
	}
}

// WithGlobals attaches the currently bound global symbols to a Dump, for use
// when disassembling a live REPL session rather than a one-shot script.
func (d Dump) WithGlobals(st *compiler.SymbolTable) Dump {
	for name, sym := range st.Store() {
		if sym.Scope != compiler.GlobalScope {
			continue
		}
		d.Globals = append(d.Globals, SymbolBinding{Name: name, Index: sym.Index})
	}
	return d
}

// Encode renders a Dump as JSON using a low-allocation encoder, since the
// disassembly text for a large program can run to many kilobytes.
func Encode(d Dump) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()

	e.FieldStart("disassembly")
	e.Str(d.Disassembly)

	e.FieldStart("constants")
	e.ArrStart()
	for _, c := range d.Constants {
		e.Str(c)
	}
	e.ArrEnd()

	e.FieldStart("globals")
	e.ArrStart()
	for _, g := range d.Globals {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(g.Name)
		e.FieldStart("index")
		e.Int(g.Index)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.ObjEnd()

	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}
