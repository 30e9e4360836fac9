package radio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestModeCommandMapping(t *testing.T) {
	cases := map[byte]string{
		'0': CmdMD0,
		'1': CmdMD1,
		'2': CmdMD2,
		'3': CmdMD3,
		'4': CmdMD4,
		'5': CmdMD5,
		'9': CmdMD2, // unrecognized digit defaults to USB
	}
	for digit, want := range cases {
		require.Equal(t, want, modeCommand(digit))
	}
}

// TestModeCommandAlwaysWellFormed checks that modeCommand never panics and
// always returns a well-formed, ';'-terminated "MD<digit>;" command for any
// input byte, including digits outside '0'..'5'.
func TestModeCommandAlwaysWellFormed(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		digit := rapid.Byte().Draw(rt, "digit")
		cmd := modeCommand(digit)
		require.True(t, strings.HasPrefix(cmd, "MD"))
		require.True(t, strings.HasSuffix(cmd, ";"))
		require.Len(t, cmd, 4)
	})
}
