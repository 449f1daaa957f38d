package xinput

const (
	// absolute coordinates used on the wire
	AbsX = 0xffff
	AbsY = 0xffff

	// MessageSize is the size of one packed message.
	MessageSize = 16
)

const (
	msgTouchBegin             = 1
	msgTouchUpdate            = 2
	msgTouchEndWithPayload    = 3
	msgTouchEndWithoutPayload = 4
	msgPointerMotion          = 5
	msgButtonDown             = 6
	msgButtonUp               = 7
	msgScrollMotion           = 8
)

// Message is one fixed-size little-endian record of the xinput touch
// protocol.
type Message struct {
	Type     uint16
	TouchID  uint32
	X        int32
	Y        int32
	Pressure uint8
	Button   uint32
}

func (msg *Message) Unpack(buffer []byte) {
	msg.Type = uint16(buffer[0])
	msg.TouchID = uint32(buffer[1]) | (uint32(buffer[2]) << 8)
	msg.X = int32(buffer[3]) | (int32(buffer[4]) << 8) | (int32(buffer[5]) << 16) | (int32(buffer[6]) << 24)
	msg.Y = int32(buffer[7]) | (int32(buffer[8]) << 8) | (int32(buffer[9]) << 16) | (int32(buffer[10]) << 24)
	msg.Pressure = uint8(buffer[11])
	msg.Button = uint32(buffer[12]) | (uint32(buffer[13]) << 8) | (uint32(buffer[14]) << 16) | (uint32(buffer[15]) << 24)
}

func (msg *Message) Pack() []byte {
	var buffer [MessageSize]byte

	buffer[0] = byte(msg.Type)
	buffer[1] = byte(msg.TouchID)
	buffer[2] = byte(msg.TouchID >> 8)
	buffer[3] = byte(msg.X)
	buffer[4] = byte(msg.X >> 8)
	buffer[5] = byte(msg.X >> 16)
	buffer[6] = byte(msg.X >> 24)
	buffer[7] = byte(msg.Y)
	buffer[8] = byte(msg.Y >> 8)
	buffer[9] = byte(msg.Y >> 16)
	buffer[10] = byte(msg.Y >> 24)
	buffer[11] = byte(msg.Pressure)
	buffer[12] = byte(msg.Button)
	buffer[13] = byte(msg.Button >> 8)
	buffer[14] = byte(msg.Button >> 16)
	buffer[15] = byte(msg.Button >> 24)

	return buffer[:]
}

// normalize maps wire coordinates to [0,1].
func normalize(x, y int32) (float64, float64) {
	return clamp(float64(x) / AbsX), clamp(float64(y) / AbsY)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
