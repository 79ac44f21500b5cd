// Package vm implements the stack-based virtual machine that executes Vela
// bytecode produced by the compiler package.
//
// The VM maintains an operand stack, a store of global bindings, and a stack
// of call frames. Each frame owns the instruction pointer and local variable
// slots for one function invocation; the main program runs inside a
// synthetic frame wrapping the top-level bytecode.
package vm

import (
	"fmt"

	"github.com/vela-lang/vela/code"
	"github.com/vela-lang/vela/compiler"
	"github.com/vela-lang/vela/object"
)

const (
	// StackSize is the operand stack's capacity in values.
	StackSize = 2048

	// GlobalsSize is the globals store's capacity in values.
	GlobalsSize = 65536

	// MaxFrames is the call-frame stack's capacity.
	MaxFrames = 1024
)

// True, False, and Null alias the shared object singletons for readability
// within this package.
var (
	True  = object.TRUE
	False = object.FALSE
	Null  = object.NULL
)

// VM executes compiled Vela bytecode.
type VM struct {
	constants []object.Object

	stack []object.Object
	sp    int // sp always points to the next free slot; stack top is stack[sp-1]

	globals []object.Object

	frames      []*Frame
	framesIndex int
}

// Options controls the capacities a VM is constructed with. A zero-value
// Options is not valid; use DefaultOptions to get one pre-filled with the
// package-level defaults, then override only the fields that need to change.
type Options struct {
	StackSize   int
	GlobalsSize int
	MaxFrames   int
}

// DefaultOptions returns the package's historical hardcoded capacities,
// matching the documented defaults in the configuration file.
func DefaultOptions() Options {
	return Options{
		StackSize:   StackSize,
		GlobalsSize: GlobalsSize,
		MaxFrames:   MaxFrames,
	}
}

// New creates a VM ready to execute the given bytecode, with a fresh globals
// store sized to the package defaults.
func New(bytecode *compiler.Bytecode) *VM {
	return NewWithOptions(bytecode, DefaultOptions())
}

// NewWithOptions creates a VM ready to execute the given bytecode, with a
// fresh globals store sized per opts. Use this to apply capacities loaded
// from internal/config rather than the package defaults.
func NewWithOptions(bytecode *compiler.Bytecode, opts Options) *VM {
	mainFn := &object.CompiledFunction{Instructions: bytecode.Instructions}
	mainClosure := &object.Closure{Fn: mainFn}
	mainFrame := NewFrame(mainClosure)

	frames := make([]*Frame, opts.MaxFrames)
	frames[0] = mainFrame

	return &VM{
		constants:   bytecode.Constants,
		stack:       make([]object.Object, opts.StackSize),
		sp:          0,
		globals:     make([]object.Object, opts.GlobalsSize),
		frames:      frames,
		framesIndex: 1,
	}
}

// NewWithGlobalsStore creates a VM that reuses an existing globals store,
// letting the REPL carry bindings across successive inputs.
func NewWithGlobalsStore(bytecode *compiler.Bytecode, globals []object.Object) *VM {
	vm := New(bytecode)
	vm.globals = globals
	return vm
}

func (vm *VM) currentFrame() *Frame {
	return vm.frames[vm.framesIndex-1]
}

func (vm *VM) pushFrame(f *Frame) error {
	if vm.framesIndex >= len(vm.frames) {
		return fmt.Errorf("frame stack overflow")
	}
	vm.frames[vm.framesIndex] = f
	vm.framesIndex++
	return nil
}

func (vm *VM) popFrame() *Frame {
	vm.framesIndex--
	return vm.frames[vm.framesIndex]
}

// LastPoppedStackElem returns the most recently popped stack element, i.e.
// the value of the program's final expression statement.
func (vm *VM) LastPoppedStackElem() object.Object {
	return vm.stack[vm.sp]
}

// Run executes the bytecode loaded into the VM until the main frame is
// exhausted or a runtime error occurs.
func (vm *VM) Run() error {
	for vm.currentFrame().ip < len(vm.currentFrame().Instructions())-1 {
		vm.currentFrame().ip++

		ip := vm.currentFrame().ip
		ins := vm.currentFrame().Instructions()
		op := code.Opcode(ins[ip])

		switch op {
		case code.OpConstant:
			constIndex := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			if int(constIndex) >= len(vm.constants) {
				return fmt.Errorf("constant index out of range: %d", constIndex)
			}
			if err := vm.push(vm.constants[constIndex]); err != nil {
				return err
			}

		case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv:
			if err := vm.executeBinaryOperation(op); err != nil {
				return err
			}

		case code.OpPop:
			vm.pop()

		case code.OpTrue:
			if err := vm.push(True); err != nil {
				return err
			}

		case code.OpFalse:
			if err := vm.push(False); err != nil {
				return err
			}

		case code.OpNull:
			if err := vm.push(Null); err != nil {
				return err
			}

		case code.OpEqual, code.OpNotEqual, code.OpGreaterThan, code.OpGreaterOrEqual:
			if err := vm.executeComparison(op); err != nil {
				return err
			}

		case code.OpBang:
			if err := vm.executeBangOperator(); err != nil {
				return err
			}

		case code.OpMinus:
			if err := vm.executeMinusOperator(); err != nil {
				return err
			}

		case code.OpJump:
			pos := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip = pos - 1

		case code.OpJumpNotTruthy:
			pos := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			condition := vm.pop()
			if !isTruthy(condition) {
				vm.currentFrame().ip = pos - 1
			}

		case code.OpSetGlobal:
			globalIndex := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			if int(globalIndex) >= len(vm.globals) {
				return fmt.Errorf("global index out of range: %d", globalIndex)
			}
			vm.globals[globalIndex] = vm.pop()

		case code.OpGetGlobal:
			globalIndex := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			val := vm.globals[globalIndex]
			if val == nil {
				return fmt.Errorf("undefined global variable at index %d", globalIndex)
			}
			if err := vm.push(val); err != nil {
				return err
			}

		case code.OpAssignGlobal:
			globalIndex := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			if vm.globals[globalIndex] == nil {
				return fmt.Errorf("cannot assign to undefined global variable at index %d", globalIndex)
			}
			vm.globals[globalIndex] = vm.pop()
			if err := vm.push(Null); err != nil {
				return err
			}

		case code.OpSetLocal:
			localIndex := code.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip++
			vm.currentFrame().Locals[localIndex] = vm.pop()

		case code.OpGetLocal:
			localIndex := code.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip++
			if err := vm.push(vm.currentFrame().Locals[localIndex]); err != nil {
				return err
			}

		case code.OpAssignLocal:
			localIndex := code.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip++
			vm.currentFrame().Locals[localIndex] = vm.pop()
			if err := vm.push(Null); err != nil {
				return err
			}

		case code.OpGetBuiltin:
			builtinIndex := code.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip++
			if int(builtinIndex) >= len(object.Builtins) {
				return fmt.Errorf("builtin index out of range: %d", builtinIndex)
			}
			def := object.Builtins[builtinIndex]
			if err := vm.push(def.Builtin); err != nil {
				return err
			}

		case code.OpGetFree:
			freeIndex := code.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip++
			currentClosure := vm.currentFrame().cl
			if err := vm.push(currentClosure.Free[freeIndex]); err != nil {
				return err
			}

		case code.OpCurrentClosure:
			if err := vm.push(vm.currentFrame().cl); err != nil {
				return err
			}

		case code.OpArray:
			numElements := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			array := vm.buildArray(vm.sp-numElements, vm.sp)
			vm.sp -= numElements
			if err := vm.push(array); err != nil {
				return err
			}

		case code.OpHash:
			numElements := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			hash, err := vm.buildHash(vm.sp-numElements, vm.sp)
			if err != nil {
				return err
			}
			vm.sp -= numElements
			if err := vm.push(hash); err != nil {
				return err
			}

		case code.OpIndex:
			index := vm.pop()
			left := vm.pop()
			if err := vm.executeIndexExpression(left, index); err != nil {
				return err
			}

		case code.OpClosure:
			constIndex := code.ReadUint16(ins[ip+1:])
			numFree := code.ReadUint8(ins[ip+3:])
			vm.currentFrame().ip += 3
			if err := vm.pushClosure(int(constIndex), int(numFree)); err != nil {
				return err
			}

		case code.OpCall:
			numArgs := code.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip++
			if err := vm.executeCall(int(numArgs)); err != nil {
				return err
			}

		case code.OpReturnValue:
			returnValue := vm.pop()
			vm.popFrame()
			if err := vm.push(returnValue); err != nil {
				return err
			}

		case code.OpReturn:
			vm.popFrame()
			if err := vm.push(Null); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown opcode: %d", op)
		}
	}

	return nil
}

func (vm *VM) push(obj object.Object) error {
	if vm.sp >= len(vm.stack) {
		return fmt.Errorf("stack overflow")
	}
	vm.stack[vm.sp] = obj
	vm.sp++
	return nil
}

func (vm *VM) pop() object.Object {
	obj := vm.stack[vm.sp-1]
	vm.sp--
	return obj
}

func (vm *VM) executeBinaryOperation(op code.Opcode) error {
	right := vm.pop()
	left := vm.pop()

	leftType := left.Type()
	rightType := right.Type()

	switch {
	case leftType == object.INTEGER_OBJ && rightType == object.INTEGER_OBJ:
		return vm.executeBinaryIntegerOperation(op, left, right)
	case leftType == object.STRING_OBJ && rightType == object.STRING_OBJ && op == code.OpAdd:
		l := left.(*object.String)
		r := right.(*object.String)
		return vm.push(&object.String{Value: l.Value + r.Value})
	default:
		return fmt.Errorf("arithmetic operations are only supported between strings or integers")
	}
}

func (vm *VM) executeBinaryIntegerOperation(op code.Opcode, left, right object.Object) error {
	leftVal := left.(*object.Integer).Value
	rightVal := right.(*object.Integer).Value

	var result int64
	switch op {
	case code.OpAdd:
		result = leftVal + rightVal
	case code.OpSub:
		result = leftVal - rightVal
	case code.OpMul:
		result = leftVal * rightVal
	case code.OpDiv:
		if rightVal == 0 {
			return fmt.Errorf("division by zero")
		}
		result = leftVal / rightVal
	default:
		return fmt.Errorf("unknown integer operator: %d", op)
	}
	return vm.push(&object.Integer{Value: result})
}

func (vm *VM) executeComparison(op code.Opcode) error {
	right := vm.pop()
	left := vm.pop()

	if left.Type() == object.INTEGER_OBJ && right.Type() == object.INTEGER_OBJ {
		return vm.executeIntegerComparison(op, left, right)
	}

	if left.Type() == object.STRING_OBJ && right.Type() == object.STRING_OBJ {
		lv := left.(*object.String).Value
		rv := right.(*object.String).Value
		switch op {
		case code.OpEqual:
			return vm.push(nativeBoolToBooleanObject(lv == rv))
		case code.OpNotEqual:
			return vm.push(nativeBoolToBooleanObject(lv != rv))
		default:
			return fmt.Errorf("unknown operator: %d (%s %s)", op, left.Type(), right.Type())
		}
	}

	if left.Type() != right.Type() {
		return fmt.Errorf("type mismatch: %s %s", left.Type(), right.Type())
	}

	switch op {
	case code.OpEqual:
		return vm.push(nativeBoolToBooleanObject(left == right))
	case code.OpNotEqual:
		return vm.push(nativeBoolToBooleanObject(left != right))
	case code.OpGreaterThan:
		lb, lok := left.(*object.Boolean)
		rb, rok := right.(*object.Boolean)
		if !lok || !rok {
			return fmt.Errorf("type mismatch: %s %s", left.Type(), right.Type())
		}
		return vm.push(nativeBoolToBooleanObject(lb.Value && !rb.Value))
	case code.OpGreaterOrEqual:
		lb, lok := left.(*object.Boolean)
		rb, rok := right.(*object.Boolean)
		if !lok || !rok {
			return fmt.Errorf("type mismatch: %s %s", left.Type(), right.Type())
		}
		return vm.push(nativeBoolToBooleanObject(lb.Value || !rb.Value))
	default:
		return fmt.Errorf("unknown operator: %d (%s %s)", op, left.Type(), right.Type())
	}
}

func (vm *VM) executeIntegerComparison(op code.Opcode, left, right object.Object) error {
	leftVal := left.(*object.Integer).Value
	rightVal := right.(*object.Integer).Value

	switch op {
	case code.OpEqual:
		return vm.push(nativeBoolToBooleanObject(leftVal == rightVal))
	case code.OpNotEqual:
		return vm.push(nativeBoolToBooleanObject(leftVal != rightVal))
	case code.OpGreaterThan:
		return vm.push(nativeBoolToBooleanObject(leftVal > rightVal))
	case code.OpGreaterOrEqual:
		return vm.push(nativeBoolToBooleanObject(leftVal >= rightVal))
	default:
		return fmt.Errorf("unknown operator: %d", op)
	}
}

func (vm *VM) executeBangOperator() error {
	operand := vm.pop()

	switch operand {
	case True:
		return vm.push(False)
	case False:
		return vm.push(True)
	case Null:
		return vm.push(True)
	default:
		return vm.push(False)
	}
}

func (vm *VM) executeMinusOperator() error {
	operand := vm.pop()

	integer, ok := operand.(*object.Integer)
	if !ok {
		return fmt.Errorf("unsupported type for negation: %s", operand.Type())
	}
	return vm.push(&object.Integer{Value: -integer.Value})
}

func (vm *VM) buildArray(startIndex, endIndex int) object.Object {
	elements := make([]object.Object, endIndex-startIndex)
	copy(elements, vm.stack[startIndex:endIndex])
	return &object.Array{Elements: elements}
}

func (vm *VM) buildHash(startIndex, endIndex int) (object.Object, error) {
	pairs := make(map[object.HashKey]object.HashPair)

	for i := startIndex; i < endIndex; i += 2 {
		key := vm.stack[i]
		value := vm.stack[i+1]

		hashKey, ok := key.(object.Hashable)
		if !ok {
			return nil, fmt.Errorf("key type %s is not hashable", key.Type())
		}
		pairs[hashKey.HashKey()] = object.HashPair{Key: key, Value: value}
	}

	return &object.Hash{Pairs: pairs}, nil
}

func (vm *VM) executeIndexExpression(left, index object.Object) error {
	switch {
	case left.Type() == object.ARRAY_OBJ && index.Type() == object.INTEGER_OBJ:
		return vm.executeArrayIndex(left, index)
	case left.Type() == object.HASH_OBJ:
		return vm.executeHashIndex(left, index)
	default:
		return fmt.Errorf("index operator not supported: %s", left.Type())
	}
}

func (vm *VM) executeArrayIndex(array, index object.Object) error {
	arrayObject := array.(*object.Array)
	i := index.(*object.Integer).Value
	max := int64(len(arrayObject.Elements) - 1)

	if i < 0 || i > max {
		return fmt.Errorf("index %d out of bounds for array length %d", i, len(arrayObject.Elements))
	}

	return vm.push(arrayObject.Elements[i])
}

func (vm *VM) executeHashIndex(hash, index object.Object) error {
	hashObject := hash.(*object.Hash)

	key, ok := index.(object.Hashable)
	if !ok {
		return fmt.Errorf("key type %s is not hashable", index.Type())
	}

	pair, ok := hashObject.Pairs[key.HashKey()]
	if !ok {
		return vm.push(Null)
	}
	return vm.push(pair.Value)
}

func (vm *VM) pushClosure(constIndex, numFree int) error {
	constant := vm.constants[constIndex]
	function, ok := constant.(*object.CompiledFunction)
	if !ok {
		return fmt.Errorf("not a function: %+v", constant)
	}

	free := make([]object.Object, numFree)
	for i := 0; i < numFree; i++ {
		free[i] = vm.stack[vm.sp-numFree+i]
	}
	vm.sp -= numFree

	closure := &object.Closure{Fn: function, Free: free}
	return vm.push(closure)
}

func (vm *VM) executeCall(numArgs int) error {
	callee := vm.stack[vm.sp-1-numArgs]

	switch callee := callee.(type) {
	case *object.Closure:
		return vm.callClosure(callee, numArgs)
	case *object.Builtin:
		return vm.callBuiltin(callee, numArgs)
	default:
		return fmt.Errorf("calling non-function and non-built-in")
	}
}

func (vm *VM) callClosure(cl *object.Closure, numArgs int) error {
	if numArgs != cl.Fn.NumParameters {
		return fmt.Errorf("wrong number of arguments: want=%d, got=%d", cl.Fn.NumParameters, numArgs)
	}

	frame := NewFrame(cl)
	copy(frame.Locals, vm.stack[vm.sp-numArgs:vm.sp])
	vm.sp = vm.sp - numArgs - 1

	return vm.pushFrame(frame)
}

func (vm *VM) callBuiltin(builtin *object.Builtin, numArgs int) error {
	name := builtinName(builtin)
	arity := object.GetBuiltinArity(name)
	if arity != object.Variadic && numArgs != arity {
		return fmt.Errorf("wrong number of arguments: want=%d, got=%d", arity, numArgs)
	}

	args := vm.stack[vm.sp-numArgs : vm.sp]
	result := builtin.Fn(args...)
	vm.sp = vm.sp - numArgs - 1

	if result == nil {
		return vm.push(Null)
	}
	if errObj, ok := result.(*object.Error); ok {
		return fmt.Errorf("%s", errObj.Message)
	}
	return vm.push(result)
}

func builtinName(b *object.Builtin) string {
	for _, def := range object.Builtins {
		if def.Builtin == b {
			return def.Name
		}
	}
	return ""
}

func nativeBoolToBooleanObject(input bool) *object.Boolean {
	if input {
		return True
	}
	return False
}

func isTruthy(obj object.Object) bool {
	switch obj := obj.(type) {
	case *object.Boolean:
		return obj.Value
	case *object.Null:
		_ = obj
		return false
	default:
		return true
	}
}
