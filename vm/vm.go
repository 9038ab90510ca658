package vm

import (
	"encoding/binary"
	"fmt"

	"athena/symbols"
	"athena/trace"
	"athena/types"

	"go.uber.org/zap"
)

// run executes st until it suspends or ends
func (e *Engine) run(st *State) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(st, fmt.Errorf("panic: %v", r))
		}
	}()

	st.Status = StatusRunning
	st.ticks = 0
	for st.Status == StatusRunning {
		if err := st.step(); err != nil {
			e.fail(st, err)
			return
		}
	}

	switch st.Status {
	case StatusEnded:
		st.release()
	case StatusAwaitingInput, StatusYielded:
		trace.Suspend(st.prog.Name, st.Line(), st.Status.String())
	}
}

// fail ends st with a runtime error
func (e *Engine) fail(st *State, err error) {
	line := 0
	if st.prog != nil {
		line = st.prog.LineForPos(st.pos)
	}
	re := runtimeError(err, line)
	st.Err = re
	st.Status = StatusEnded

	name := ""
	if st.prog != nil {
		name = st.prog.Name
	}
	e.log.Warn("script runtime error",
		zap.String("script", name),
		zap.Int("line", re.Line),
		zap.Int("actor", st.actor),
		zap.Int("owner", st.owner),
		zap.String("id", st.ID.String()),
		zap.Error(re))
	trace.Error(name, re.Line, re.Code, re.Msg)
	st.release()
}

// step decodes and executes one instruction
func (st *State) step() error {
	code := st.prog.Code
	if st.pos < 0 || st.pos >= len(code) {
		return types.Errorf(types.E_INTERNAL, "position %d outside program", st.pos)
	}
	st.ticks++
	if limit := st.engine.tickLimit; limit > 0 && st.ticks > limit {
		return ErrTickLimit
	}

	at := st.pos
	op := OpCode(code[at])
	st.pos++

	switch op {
	case OP_END:
		st.End()
		return nil

	case OP_INT:
		v, n := binary.Uvarint(code[st.pos:])
		if n <= 0 {
			return types.Errorf(types.E_INTERNAL, "bad integer literal at %d", at)
		}
		st.pos += n
		return st.push(types.NewInt(int64(v)))

	case OP_STR:
		end := indexZero(code, st.pos)
		if end < 0 {
			return types.Errorf(types.E_INTERNAL, "unterminated string at %d", at)
		}
		s := string(code[st.pos:end])
		st.pos = end + 1
		return st.push(types.NewConstStr(s))

	case OP_NAME:
		id := get3(code, st.pos)
		st.pos += 3
		return st.push(types.Ref{ID: id})

	case OP_POS:
		off := get3(code, st.pos)
		st.pos += 3
		return st.push(types.LabelValue{Pos: off})

	case OP_UNRESOLVED:
		return types.Errorf(types.E_INTERNAL, "unresolved reference at %d", at)

	case OP_ARG:
		return st.push(types.ArgMarker{})

	case OP_DUP:
		if len(st.stack) <= st.defsp {
			return types.Errorf(types.E_INTERNAL, "dup on empty stack at %d", at)
		}
		return st.push(types.Copy(st.stack[len(st.stack)-1]))

	case OP_CALL:
		return st.callBuiltin(at)

	case OP_CALLSUB, OP_CALLFUNC:
		return st.callFrame(op)

	case OP_RETURN, OP_RETURN_NONE:
		return st.ret(op)

	case OP_GOTO:
		target, err := st.jumpTarget(at)
		if err != nil {
			return err
		}
		st.pos = target
		return nil

	case OP_JUMP_ZERO:
		target, err := st.jumpTarget(at)
		if err != nil {
			return err
		}
		v, err := st.pop()
		if err != nil {
			return err
		}
		n, err := st.operand(v)
		if err != nil {
			return err
		}
		if n == 0 {
			st.pos = target
		} else {
			st.pos = at + 5
		}
		return nil

	case OP_EOL:
		st.stack = st.stack[:st.defsp]
		return nil
	}

	if op.IsUnary() {
		v, err := st.pop()
		if err != nil {
			return err
		}
		a, err := st.operand(v)
		if err != nil {
			return err
		}
		return st.push(types.NewInt(unary(op, a)))
	}
	if op.IsBinary() {
		vb, err := st.pop()
		if err != nil {
			return err
		}
		va, err := st.pop()
		if err != nil {
			return err
		}
		a, err := st.operand(va)
		if err != nil {
			return err
		}
		b, err := st.operand(vb)
		if err != nil {
			return err
		}
		r, err := arith(op, a, b)
		if err != nil {
			return err
		}
		return st.push(types.NewInt(r))
	}
	return types.Errorf(types.E_INTERNAL, "unknown opcode %d at %d", byte(op), at)
}

// jumpTarget decodes the tagged operand of the jump at at
func (st *State) jumpTarget(at int) (int, error) {
	code := st.prog.Code
	tag := OpCode(code[at+1])
	arg := get3(code, at+2)
	if tag != OP_POS {
		return 0, types.Errorf(types.E_LABEL, "jump target %s is not a label", st.prog.symbolName(arg))
	}
	return arg, nil
}

// callBuiltin runs the OP_CALL at at
func (st *State) callBuiltin(at int) error {
	e := st.engine
	id := get3(st.prog.Code, at+1)
	st.pos = at + 4

	marker, err := st.findMarker()
	if err != nil {
		return err
	}
	sym := e.syms.Get(id)
	if sym.Kind != symbols.KindFunction {
		return types.Errorf(types.E_FUNC, "%s is not a builtin", sym.Name)
	}
	b, ok := e.registry.At(int(sym.Value))
	if !ok {
		return types.Errorf(types.E_FUNC, "builtin %s is not registered", sym.Name)
	}

	args := st.stack[marker+1:]
	if trace.IsEnabled() {
		trace.Call(st.prog.Name, st.Line(), b.Name, args)
	}
	st.jumped = false
	result, err := b.Fn(st, args)
	if err != nil {
		return err
	}

	if st.Status == StatusAwaitingInput && st.Resume.Mode == Rerun {
		st.Resume.Offset = at
		st.pos = at
		return nil
	}
	if st.jumped {
		st.jumped = false
		st.stack = st.stack[:st.defsp]
		return nil
	}
	st.stack = st.stack[:marker]
	if result != nil {
		return st.push(result)
	}
	return nil
}

// callFrame runs callsub or callfunc: arguments are copied into a new
// frame topped by the linkage slots argc, old defsp, caller program and
// return position.
func (st *State) callFrame(op OpCode) error {
	marker, err := st.findMarker()
	if err != nil {
		return err
	}
	args := st.stack[marker+1:]
	if len(args) == 0 {
		return types.Errorf(types.E_ARGS, "%s without a target", op)
	}

	var (
		target     *Program
		targetPos  int
		targetName string
	)
	switch op {
	case OP_CALLSUB:
		l, ok := args[0].(types.LabelValue)
		if !ok {
			return types.Errorf(types.E_LABEL, "callsub target %s is not a label", args[0])
		}
		target, targetPos, targetName = st.prog, l.Pos, fmt.Sprintf("@%d", l.Pos)
	case OP_CALLFUNC:
		v, err := st.Resolve(args[0])
		if err != nil {
			return err
		}
		name, ok := types.ToStr(v)
		if !ok || !types.IsString(v) {
			return types.Errorf(types.E_TYPE, "callfunc target %s is not a string", v)
		}
		fn, ok := st.engine.Function(name)
		if !ok {
			return types.Errorf(types.E_FUNC, "function %q not found", name)
		}
		target, targetName = fn, name
	}

	copies := make([]types.Value, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := st.Resolve(a)
		if err != nil {
			return err
		}
		copies = append(copies, types.Copy(v))
	}

	st.stack = st.stack[:marker]
	for _, v := range copies {
		if err := st.push(v); err != nil {
			return err
		}
	}
	linkage := []types.Value{
		types.NewInt(int64(len(copies))),
		types.NewInt(int64(st.defsp)),
		types.ScriptRef{Script: st.prog},
		types.ReturnInfo{Pos: st.pos},
	}
	for _, v := range linkage {
		if err := st.push(v); err != nil {
			return err
		}
	}

	if trace.IsEnabled() {
		trace.Frame(st.prog.Name, st.Line(), targetName, len(copies))
	}
	st.defsp = len(st.stack)
	st.prog = target
	st.pos = targetPos
	return nil
}

// ret unwinds the innermost frame; at top level it ends the script
func (st *State) ret(op OpCode) error {
	var result types.Value = types.NewInt(0)
	if op == OP_RETURN {
		v, err := st.pop()
		if err != nil {
			return err
		}
		r, err := st.Resolve(v)
		if err != nil {
			return err
		}
		result = types.Copy(r)
	}

	if st.defsp == 0 {
		st.End()
		return nil
	}
	_, base, err := st.frame()
	if err != nil {
		return err
	}
	script, ok1 := st.stack[st.defsp-2].(types.ScriptRef)
	oldDefsp, ok2 := st.stack[st.defsp-3].(types.IntValue)
	ri, _ := st.stack[st.defsp-1].(types.ReturnInfo)
	prog, ok3 := script.Script.(*Program)
	if !ok1 || !ok2 || !ok3 {
		return types.Errorf(types.E_FRAME, "frame linkage corrupt")
	}

	if trace.IsEnabled() {
		trace.Return(st.prog.Name, st.Line(), result)
	}
	st.stack = st.stack[:base]
	st.defsp = int(oldDefsp.Val)
	st.prog = prog
	st.pos = ri.Pos
	return st.push(result)
}
