package builtins

import (
	"crypto/md5"
	"encoding/hex"

	"athena/types"

	"golang.org/x/crypto/ripemd160"
)

// builtinMD5 returns the hex MD5 digest of a string
// md5(str) -> str
func builtinMD5(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("md5", args, 1); err != nil {
		return nil, err
	}
	str, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	sum := md5.Sum([]byte(str))
	return types.NewStr(hex.EncodeToString(sum[:])), nil
}

// builtinRIPEMD160 returns the hex RIPEMD-160 digest of a string
// ripemd160(str) -> str
func builtinRIPEMD160(s Script, args []types.Value) (types.Value, error) {
	if err := needArgs("ripemd160", args, 1); err != nil {
		return nil, err
	}
	str, err := strArg(s, args[0])
	if err != nil {
		return nil, err
	}
	h := ripemd160.New()
	h.Write([]byte(str))
	return types.NewStr(hex.EncodeToString(h.Sum(nil))), nil
}
