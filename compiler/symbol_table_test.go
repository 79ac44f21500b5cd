package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefineResolveGlobal(t *testing.T) {
	global := NewSymbolTable()

	a := global.Define("a")
	assert.Equal(t, Symbol{Name: "a", Scope: GlobalScope, Index: 0}, a)

	b := global.Define("b")
	assert.Equal(t, Symbol{Name: "b", Scope: GlobalScope, Index: 1}, b)

	resolved, ok := global.Resolve("a")
	assert.True(t, ok)
	assert.Equal(t, a, resolved)
}

func TestResolveLocal(t *testing.T) {
	global := NewSymbolTable()
	global.Define("a")
	global.Define("b")

	local := NewEnclosedSymbolTable(global)
	local.Define("c")
	local.Define("d")

	expected := []Symbol{
		{Name: "a", Scope: GlobalScope, Index: 0},
		{Name: "b", Scope: GlobalScope, Index: 1},
		{Name: "c", Scope: LocalScope, Index: 0},
		{Name: "d", Scope: LocalScope, Index: 1},
	}

	for _, sym := range expected {
		resolved, ok := local.Resolve(sym.Name)
		assert.True(t, ok, "name %q not resolvable", sym.Name)
		assert.Equal(t, sym, resolved)
	}
}

func TestResolveNestedLocal(t *testing.T) {
	global := NewSymbolTable()
	global.Define("a")

	firstLocal := NewEnclosedSymbolTable(global)
	firstLocal.Define("b")

	secondLocal := NewEnclosedSymbolTable(firstLocal)
	secondLocal.Define("c")

	resolved, ok := secondLocal.Resolve("a")
	assert.True(t, ok)
	assert.Equal(t, GlobalScope, resolved.Scope)

	resolved, ok = secondLocal.Resolve("b")
	assert.True(t, ok)
	assert.Equal(t, FreeScope, resolved.Scope, "b should have been captured as free in the second-level local scope")

	resolved, ok = secondLocal.Resolve("c")
	assert.True(t, ok)
	assert.Equal(t, LocalScope, resolved.Scope)
}

func TestDefineResolveBuiltins(t *testing.T) {
	global := NewSymbolTable()
	firstLocal := NewEnclosedSymbolTable(global)
	secondLocal := NewEnclosedSymbolTable(firstLocal)

	expected := []Symbol{
		{Name: "len", Scope: BuiltinScope, Index: 0},
		{Name: "push", Scope: BuiltinScope, Index: 1},
	}
	for i, sym := range expected {
		global.DefineBuiltin(i, sym.Name)
	}

	for _, table := range []*SymbolTable{global, firstLocal, secondLocal} {
		for _, sym := range expected {
			resolved, ok := table.Resolve(sym.Name)
			assert.True(t, ok, "builtin %q not resolvable", sym.Name)
			assert.Equal(t, sym, resolved)
		}
	}
}

func TestResolveFree(t *testing.T) {
	global := NewSymbolTable()
	global.Define("a")

	firstLocal := NewEnclosedSymbolTable(global)
	firstLocal.Define("b")

	secondLocal := NewEnclosedSymbolTable(firstLocal)
	secondLocal.Define("c")
	secondLocal.Define("d")

	resolved, ok := secondLocal.Resolve("c")
	assert.True(t, ok)
	assert.Equal(t, Symbol{Name: "c", Scope: LocalScope, Index: 0}, resolved)

	resolved, ok = secondLocal.Resolve("b")
	assert.True(t, ok)
	assert.Equal(t, Symbol{Name: "b", Scope: FreeScope, Index: 0}, resolved)

	assert.Len(t, secondLocal.FreeSymbols, 1)
	assert.Equal(t, Symbol{Name: "b", Scope: LocalScope, Index: 0}, secondLocal.FreeSymbols[0])
}

func TestDefineAndResolveFunctionName(t *testing.T) {
	global := NewSymbolTable()
	global.DefineFunctionName("countDown")

	resolved, ok := global.Resolve("countDown")
	assert.True(t, ok)
	assert.Equal(t, Symbol{Name: "countDown", Scope: FunctionScope, Index: 0}, resolved)
}

func TestStoreExposesOwnBindingsOnly(t *testing.T) {
	global := NewSymbolTable()
	global.Define("a")

	local := NewEnclosedSymbolTable(global)
	local.Define("b")

	store := local.Store()
	assert.Len(t, store, 1, "Store() must not include bindings from Outer")
	_, ok := store["b"]
	assert.True(t, ok)
	_, ok = store["a"]
	assert.False(t, ok, "Store() leaked an outer-scope binding")
}
