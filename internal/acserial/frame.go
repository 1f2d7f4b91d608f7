package acserial

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/ac-mqtt-bridge/internal/ac"
)

// Frame layout:
//
//	[0]    0xAA start
//	[1]    length (frame length - 1)
//	[2]    appliance type 0xAC
//	[3]    length ^ appliance type
//	[4:6]  reserved
//	[6]    message id
//	[7]    frame protocol version
//	[8]    device protocol version
//	[9]    message type
//	[10:]  body, CRC-8 of body, checksum
const (
	frameStart     = 0xAA
	applianceAC    = 0xAC
	headerLen      = 10
	protoVersion   = 0x03
	minFrameLen    = headerLen + 1 + 2
	statusBodyLen  = 13
	serialNumLimit = 32
)

// Message types.
const (
	msgControl      = 0x02
	msgQuery        = 0x03
	msgNotify       = 0x05
	msgSerialNumber = 0x07
	msgNetworkState = 0x0D
)

// Body tags.
const (
	bodySet    = 0x40
	bodyQuery  = 0x41
	bodyStatus = 0xC0
)

var (
	errShortFrame = errors.New("short frame")
	errChecksum   = errors.New("bad checksum")
	errCRC        = errors.New("bad body crc")
	errHeader     = errors.New("bad header")
)

// crc8 is CRC-8/MAXIM (reflected polynomial 0x8C, init 0).
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8C
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// checksum makes the byte sum of f[1:] zero modulo 256.
func checksum(f []byte) byte {
	var sum byte
	for _, b := range f {
		sum += b
	}
	return -sum
}

func buildFrame(msgType, msgID byte, body []byte) []byte {
	n := headerLen + len(body) + 2
	f := make([]byte, n)
	f[0] = frameStart
	f[1] = byte(n - 1)
	f[2] = applianceAC
	f[3] = f[1] ^ applianceAC
	f[6] = msgID
	f[8] = protoVersion
	f[9] = msgType
	copy(f[headerLen:], body)
	f[n-2] = crc8(body)
	f[n-1] = checksum(f[1 : n-1])
	return f
}

// parseFrame validates a complete frame and returns its type and body.
func parseFrame(f []byte) (byte, []byte, error) {
	if len(f) < minFrameLen || int(f[1])+1 != len(f) {
		return 0, nil, errShortFrame
	}
	if f[0] != frameStart || f[2] != applianceAC || f[3] != f[1]^applianceAC {
		return 0, nil, errHeader
	}
	n := len(f)
	if checksum(f[1:n-1]) != f[n-1] {
		return 0, nil, errChecksum
	}
	body := f[headerLen : n-2]
	if crc8(body) != f[n-2] {
		return 0, nil, errCRC
	}
	return f[9], body, nil
}

func encodeSet(c ac.Config) []byte {
	b := make([]byte, 23)
	b[0] = bodySet
	b[1] = 0x02
	if c.On {
		b[1] |= 0x01
	}
	b[2] = byte(c.Mode)<<5 | (c.ClampedSoll()-ac.MinSetpoint)&0x0F
	b[3] = byte(c.Fan)
	b[7] = 0x30 | byte(c.Louver)&0x0F
	if c.Turbo {
		b[8] |= 0x20
		b[10] |= 0x02
	}
	if c.Eco {
		b[9] |= 0x80
	}
	return b
}

func encodeQuery() []byte {
	b := make([]byte, 22)
	copy(b, []byte{bodyQuery, 0x81, 0x00, 0xFF, 0x03, 0xFF, 0x00, 0x02})
	b[21] = 0x03
	return b
}

// encodeNetworkState reports module connectivity to the unit's display.
func encodeNetworkState(connected, up bool) []byte {
	b := make([]byte, 20)
	b[0] = 0x01 // module type: wifi
	if up {
		b[1] = 0x01
		b[2] = 0x04 // signal level
	}
	b[7] = 0xFF
	if !connected {
		b[8] = 0x01
	}
	return b
}

func encodeSerialNumberRequest() []byte {
	return make([]byte, 1)
}

func decodeStatus(b []byte) (ac.Status, error) {
	if len(b) < statusBodyLen || b[0] != bodyStatus {
		return ac.Status{}, fmt.Errorf("status body: %w", errShortFrame)
	}
	conf := ac.Config{
		On:     b[1]&0x01 != 0,
		Mode:   ac.Mode(b[2] >> 5),
		Soll:   b[2]&0x0F + ac.MinSetpoint,
		Fan:    ac.Fan(b[3] & 0x7F),
		Louver: ac.Louver(b[7] & 0x0F),
		Turbo:  b[8]&0x20 != 0 || b[10]&0x02 != 0,
		Eco:    b[9]&0x10 != 0,
	}
	return ac.Status{
		Indoor:  temperature(b[11]),
		Outdoor: temperature(b[12]),
		Conf:    conf,
	}, nil
}

func temperature(raw byte) float64 {
	return (float64(raw) - 50) / 2
}

func decodeSerialNumber(b []byte) string {
	if len(b) > serialNumLimit {
		b = b[:serialNumLimit]
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

// decoder reassembles frames from a byte stream.
type decoder struct {
	buf []byte
}

// feed appends data and returns every complete, valid frame. Invalid frames
// are skipped by resynchronising on the next start byte.
func (d *decoder) feed(data []byte) (frames [][]byte, dropped int) {
	d.buf = append(d.buf, data...)
	for {
		i := bytes.IndexByte(d.buf, frameStart)
		if i < 0 {
			d.buf = d.buf[:0]
			return frames, dropped
		}
		d.buf = d.buf[i:]
		if len(d.buf) < 2 {
			return frames, dropped
		}
		n := int(d.buf[1]) + 1
		if n < minFrameLen {
			d.buf = d.buf[1:]
			dropped++
			continue
		}
		if len(d.buf) < n {
			return frames, dropped
		}
		f := d.buf[:n]
		if _, _, err := parseFrame(f); err != nil {
			d.buf = d.buf[1:]
			dropped++
			continue
		}
		frames = append(frames, append([]byte(nil), f...))
		d.buf = d.buf[n:]
	}
}
