package builtins

import (
	"athena/types"

	"go.uber.org/zap"
)

// builtinDebugmes writes a message to the server log
// debugmes(text) -> none
func builtinDebugmes(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("debugmes", args, 1); err != nil {
		return nil, err
	}
	text, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	s.Logger().Info("debugmes",
		zap.String("message", text),
		zap.Int("actor", s.Actor()),
		zap.Int("owner", s.Owner()))
	return nil, nil
}
