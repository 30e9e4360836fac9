package radio

// Kenwood-style CAT command constants, all ';'-terminated ASCII.
const (
	CmdRX  = ";RX;"
	CmdTX0 = ";TX0;"

	CmdFAQuery = "FA;"

	CmdMD0 = "MD0;"
	CmdMD1 = "MD1;" // LSB
	CmdMD2 = "MD2;" // USB
	CmdMD3 = "MD3;" // CW
	CmdMD4 = "MD4;" // FM
	CmdMD5 = "MD5;" // AM

	CmdUA0 = "UA0;" // stream off
	CmdUA1 = "UA1;" // stream + speaker on
	CmdUA2 = "UA2;" // stream + speaker off
)

// modeCommand maps a mode digit (as produced by state.DigitFromMode) to its
// MD<digit>; command, defaulting to USB for anything unrecognized.
func modeCommand(digit byte) string {
	switch digit {
	case '0':
		return CmdMD0
	case '1':
		return CmdMD1
	case '2':
		return CmdMD2
	case '3':
		return CmdMD3
	case '4':
		return CmdMD4
	case '5':
		return CmdMD5
	default:
		return CmdMD2
	}
}
