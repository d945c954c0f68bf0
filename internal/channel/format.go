package channel

// PayloadFormat selects the encoding used for the next frame's application
// payload. The format is per-connection and switches mid-stream: a SetFormat
// message is sent in the *current* format and takes effect starting with the
// frame that follows it (deferred switch), per spec.
type PayloadFormat byte

const (
	FormatJSON PayloadFormat = iota
	FormatMsgpackNamed
	FormatMsgpackUnnamed
	FormatBincode
)

func (f PayloadFormat) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpackNamed:
		return "msgpack-named"
	case FormatMsgpackUnnamed:
		return "msgpack-unnamed"
	case FormatBincode:
		return "bincode"
	default:
		return "unknown"
	}
}
