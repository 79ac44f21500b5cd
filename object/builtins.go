package object

import (
	"fmt"
	"time"
)

// Variadic marks a builtin that accepts any number of arguments.
const Variadic = -1

// Builtins is the ordered table of built-in functions available to every
// compiled program. Order matters: a builtin's position in this slice is the
// operand emitted by OpGetBuiltin, so entries must never be reordered once a
// program has been compiled against them.
var Builtins = []struct {
	// The name of the built-in function.
	Name string

	// Arity is the required argument count, or [Variadic] if any count is accepted.
	Arity int

	// The definition (and implementation) of the built-in function.
	Builtin *Builtin
}{
	{
		"len",
		1,
		&Builtin{Fn: func(args ...Object) Object {
			switch arg := args[0].(type) {
			case *String:
				return &Integer{Value: int64(len(arg.Value))}
			case *Array:
				return &Integer{Value: int64(len(arg.Elements))}
			case *Hash:
				return &Integer{Value: int64(len(arg.Pairs))}
			default:
				return newError("argument to `len` not supported, got %s", args[0].Type())
			}
		}},
	},
	{
		"print",
		Variadic,
		&Builtin{Fn: func(args ...Object) Object {
			parts := make([]string, len(args))
			for i, arg := range args {
				parts[i] = arg.Inspect()
			}
			if len(parts) == 0 {
				fmt.Println()
			} else {
				fmt.Println(joinSpace(parts))
			}
			return nil
		}},
	},
	{
		"push",
		2,
		&Builtin{Fn: func(args ...Object) Object {
			arr, ok := args[0].(*Array)
			if !ok {
				return newError("argument to `push` must be ARRAY, got %s", args[0].Type())
			}
			arr.Elements = append(arr.Elements, args[1])
			return arr
		}},
	},
	{
		"pop",
		1,
		&Builtin{Fn: func(args ...Object) Object {
			arr, ok := args[0].(*Array)
			if !ok {
				return newError("argument to `pop` must be ARRAY, got %s", args[0].Type())
			}
			length := len(arr.Elements)
			if length == 0 {
				return NULL
			}
			last := arr.Elements[length-1]
			arr.Elements = arr.Elements[:length-1]
			return last
		}},
	},
	{
		"is_null",
		1,
		&Builtin{Fn: func(args ...Object) Object {
			if _, ok := args[0].(*Null); ok {
				return TRUE
			}
			return FALSE
		}},
	},
	{
		"insert",
		3,
		&Builtin{Fn: func(args ...Object) Object {
			h, ok := args[0].(*Hash)
			if !ok {
				return newError("first argument to `insert` must be HASH, got %s", args[0].Type())
			}
			key, ok := args[1].(Hashable)
			if !ok {
				return newError("key type %s is not hashable", args[1].Type())
			}
			if h.Pairs == nil {
				h.Pairs = make(map[HashKey]HashPair)
			}
			hashed := key.HashKey()
			previous, existed := h.Pairs[hashed]
			h.Pairs[hashed] = HashPair{Key: args[1], Value: args[2]}
			if existed {
				return previous.Value
			}
			return NULL
		}},
	},
	{
		"delete",
		2,
		&Builtin{Fn: func(args ...Object) Object {
			h, ok := args[0].(*Hash)
			if !ok {
				return newError("first argument to `delete` must be HASH, got %s", args[0].Type())
			}
			key, ok := args[1].(Hashable)
			if !ok {
				return newError("key type %s is not hashable", args[1].Type())
			}
			hashed := key.HashKey()
			previous, existed := h.Pairs[hashed]
			if !existed {
				return NULL
			}
			delete(h.Pairs, hashed)
			return previous.Value
		}},
	},
	{
		"sleep",
		1,
		&Builtin{Fn: func(args ...Object) Object {
			secs, ok := args[0].(*Integer)
			if !ok {
				return newError("argument to `sleep` must be INTEGER, got %s", args[0].Type())
			}
			if secs.Value < 0 {
				return newError("argument to `sleep` must be non-negative, got %d", secs.Value)
			}
			time.Sleep(time.Duration(secs.Value) * time.Second)
			return NULL
		}},
	},
}

func joinSpace(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

func newError(format string, a ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, a...)}
}

// GetBuiltinByName retrieves a built-in function definition by its name from the predefined [Builtins] collection.
//
// It returns a pointer to the corresponding [Builtin] or nil if the name is not found.
func GetBuiltinByName(name string) *Builtin {
	for _, def := range Builtins {
		if def.Name == name {
			return def.Builtin
		}
	}
	return nil
}

// GetBuiltinArity returns the declared arity for the named builtin, or 0 if
// the name is not a known builtin.
func GetBuiltinArity(name string) int {
	for _, def := range Builtins {
		if def.Name == name {
			return def.Arity
		}
	}
	return 0
}
