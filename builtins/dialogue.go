package builtins

import (
	"math"
	"strconv"
	"strings"
	"time"

	"athena/trace"
	"athena/types"
)

// MenuCancel is the choice a client sends to cancel a menu
const MenuCancel = 255

// Default bounds for input
const (
	InputMin = 0
	InputMax = math.MaxInt32
)

// builtinMes shows a line of dialogue to the actor
// mes(text) -> none
func builtinMes(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("mes", args, 1); err != nil {
		return nil, err
	}
	if err := needActor(s, "mes"); err != nil {
		return nil, err
	}
	text, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	trace.Dialogue(s.Actor(), text)
	s.Host().Message(s.Actor(), s.Owner(), text)
	return nil, nil
}

// builtinNext shows a "next" button and pauses until the actor clicks it
// next() -> none
func builtinNext(s Script, args []types.Value) (types.Value, error) {
	if err := needActor(s, "next"); err != nil {
		return nil, err
	}
	s.Host().Next(s.Actor(), s.Owner())
	s.Yield(0)
	return nil, nil
}

// builtinClose shows a close button and ends the script
// close() -> none
func builtinClose(s Script, args []types.Value) (types.Value, error) {
	if err := needActor(s, "close"); err != nil {
		return nil, err
	}
	s.Host().Close(s.Actor(), s.Owner())
	s.End()
	return nil, nil
}

// builtinInput asks the actor for a number or, for a string variable,
// a line of text. The call runs twice: the first run prompts, the rerun
// stores the answer. Numbers are clamped to min..max; strings are checked
// by length.
// input(var [, min [, max]]) -> int (-1 below min, 1 above max, 0 ok)
func builtinInput(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("input", args, 1); err != nil {
		return nil, err
	}
	if err := needActor(s, "input"); err != nil {
		return nil, err
	}
	ref, err := refArg(args[0])
	if err != nil {
		return nil, err
	}
	isText := strings.HasSuffix(s.RefName(ref), "$")

	answer, ok := s.Input()
	if !ok {
		s.Host().Prompt(s.Actor(), s.Owner(), isText)
		s.AwaitInput(true)
		return nil, nil
	}

	lo, hi := int64(InputMin), int64(InputMax)
	if len(args) > 1 {
		if lo, err = intArg(s, args[1]); err != nil {
			return nil, err
		}
	}
	if len(args) > 2 {
		if hi, err = intArg(s, args[2]); err != nil {
			return nil, err
		}
	}

	if isText {
		text, _ := types.ToStr(answer)
		if err := s.Assign(ref, types.NewStr(text)); err != nil {
			return nil, err
		}
		return types.NewInt(bounds(int64(len(text)), lo, hi)), nil
	}

	n, ok := types.ToInt(answer)
	if !ok {
		return nil, types.Errorf(types.E_TYPE, "input answer %s is not a number", answer)
	}
	result := bounds(n, lo, hi)
	switch result {
	case -1:
		n = lo
	case 1:
		n = hi
	}
	if err := s.Assign(ref, types.NewInt(n)); err != nil {
		return nil, err
	}
	return types.NewInt(result), nil
}

func bounds(n, lo, hi int64) int64 {
	switch {
	case n < lo:
		return -1
	case n > hi:
		return 1
	}
	return 0
}

// menuOptions splits each option text on ':' into separate entries
func menuOptions(texts []string) []string {
	var out []string
	for _, t := range texts {
		out = append(out, strings.Split(t, ":")...)
	}
	return out
}

// builtinMenu offers choices that each jump to a label. The choice is
// stored in @menu; cancelling ends the script.
// menu(text, label [, text, label]...) -> none
func builtinMenu(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("menu", args, 2); err != nil {
		return nil, err
	}
	if len(args)%2 != 0 {
		return nil, types.Errorf(types.E_ARGS, "menu needs text/label pairs")
	}
	if err := needActor(s, "menu"); err != nil {
		return nil, err
	}

	var (
		options []string
		targets []types.Value
	)
	for i := 0; i < len(args); i += 2 {
		text, err := strArg(s, args[i])
		if err != nil {
			return nil, err
		}
		if _, ok := args[i+1].(types.LabelValue); !ok {
			return nil, types.Errorf(types.E_LABEL, "menu target %s is not a label", args[i+1])
		}
		for _, opt := range strings.Split(text, ":") {
			options = append(options, opt)
			targets = append(targets, args[i+1])
		}
	}

	answer, ok := s.Input()
	if !ok {
		s.Host().Menu(s.Actor(), s.Owner(), options)
		s.AwaitInput(true)
		return nil, nil
	}

	choice, _ := types.ToInt(answer)
	if choice == MenuCancel || choice < 1 || choice > int64(len(targets)) {
		s.Host().Close(s.Actor(), s.Owner())
		s.End()
		return nil, nil
	}
	menuVar, err := s.Intern("@menu")
	if err != nil {
		return nil, err
	}
	if err := s.Assign(menuVar, types.NewInt(choice)); err != nil {
		return nil, err
	}
	return nil, s.Jump(targets[choice-1])
}

// builtinSelect offers choices and evaluates to the 1-based choice
// select(text...) -> int
func builtinSelect(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("select", args, 1); err != nil {
		return nil, err
	}
	if err := needActor(s, "select"); err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(args))
	for _, a := range args {
		text, err := strArg(s, a)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	s.Host().Menu(s.Actor(), s.Owner(), menuOptions(texts))
	s.AwaitInput(false)
	return nil, nil
}

// builtinSleep2 pauses the script for a number of milliseconds
// sleep2(ms) -> none
func builtinSleep2(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("sleep2", args, 1); err != nil {
		return nil, err
	}
	ms, err := intArg(s, args[0])
	if err != nil {
		return nil, err
	}
	if ms < 0 {
		ms = 0
	}
	s.Yield(time.Duration(ms) * time.Millisecond)
	return nil, nil
}

// ParseAnswer converts a line typed by a user into the value delivered
// to a suspended script: a decimal number when it parses as one,
// otherwise the text
func ParseAnswer(line string) types.Value {
	line = strings.TrimSpace(line)
	if n, err := strconv.ParseInt(line, 10, 64); err == nil {
		return types.NewInt(n)
	}
	return types.NewStr(line)
}
