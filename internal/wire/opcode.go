package wire

// Opcodes as they appear on the wire ahead of their string arguments.
// Command and Login have no opcode byte of their own.
const (
	opQueryCreate  byte = 0x00
	opQueryClose   byte = 0x02
	opQueryBind    byte = 0x03
	opQueryResults byte = 0x04
	opQueryExecute byte = 0x05
	opQueryInfo    byte = 0x06
	opQueryOptions byte = 0x07
	opCreateDB     byte = 0x08
	opAdd          byte = 0x09
	opPut          byte = 0x0C
	// opPutBinary gets its own opcode rather than reusing opAdd, and is
	// sent with a dedicated byte-array path (Codec.SendBytes) instead of
	// being terminated like a string.
	opPutBinary     byte = 0x0D
	opQueryContext  byte = 0x0E
	opQueryUpdating byte = 0x1E
	opQueryFull     byte = 0x1F
)

// Status bytes terminating every request/response exchange.
const (
	statusOK    byte = 0x00
	statusError byte = 0x01
)
