package wayland

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Wire format: every message is an 8-byte header followed by the
// argument payload. The header is the target object ID (uint32 LE)
// and a second word holding the total message size in its upper 16
// bits and the opcode in its lower 16. All integers are little
// endian; strings carry a length that includes the terminating NUL
// and are padded to a 32-bit boundary, as are arrays.
const (
	headerSize     = 8
	maxMessageSize = 1<<16 - 1
)

// Message is one framed protocol message in either direction.
type Message struct {
	Object uint32
	Opcode uint16
	Data   []byte
}

// Args starts decoding the message's argument payload.
func (m Message) Args() *Args {
	return &Args{data: m.Data}
}

// ReadMessage reads one framed message from r.
func ReadMessage(r io.Reader) (Message, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, err
	}
	object := binary.LittleEndian.Uint32(header[0:4])
	word := binary.LittleEndian.Uint32(header[4:8])
	size := word >> 16
	opcode := uint16(word & 0xffff)
	if size < headerSize {
		return Message{}, errors.Errorf("message size %d below header size", size)
	}
	data := make([]byte, size-headerSize)
	if len(data) > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return Message{}, err
		}
	}
	return Message{Object: object, Opcode: opcode, Data: data}, nil
}

// Args decodes the argument payload of one event in order.
type Args struct {
	data []byte
	off  int
}

// Uint32 reads the next 32-bit unsigned argument.
func (a *Args) Uint32() (uint32, error) {
	if a.off+4 > len(a.data) {
		return 0, errors.Errorf("argument truncated at offset %d", a.off)
	}
	v := binary.LittleEndian.Uint32(a.data[a.off : a.off+4])
	a.off += 4
	return v, nil
}

// String reads the next string argument. A zero length encodes the
// null string and decodes to "".
func (a *Args) String() (string, error) {
	n, err := a.Uint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	end := a.off + int(n)
	if end > len(a.data) {
		return "", errors.Errorf("string argument truncated at offset %d", a.off)
	}
	if a.data[end-1] != 0 {
		return "", errors.Errorf("string argument at offset %d is not NUL terminated", a.off)
	}
	s := string(a.data[a.off : end-1])
	a.off = end + pad(int(n))
	return s, nil
}

// Array reads the next array argument as raw bytes.
func (a *Args) Array() ([]byte, error) {
	n, err := a.Uint32()
	if err != nil {
		return nil, err
	}
	end := a.off + int(n)
	if end > len(a.data) {
		return nil, errors.Errorf("array argument truncated at offset %d", a.off)
	}
	b := a.data[a.off:end]
	a.off = end + pad(int(n))
	return b, nil
}

// UintArray decodes an array payload of 32-bit unsigned values, the
// encoding protocol enums use in array arguments.
func UintArray(b []byte) []uint32 {
	vals := make([]uint32, 0, len(b)/4)
	for len(b) >= 4 {
		vals = append(vals, binary.LittleEndian.Uint32(b[:4]))
		b = b[4:]
	}
	return vals
}

func pad(n int) int {
	return (4 - n%4) % 4
}

// Request accumulates the arguments of one outgoing request.
type Request struct {
	object uint32
	opcode uint16
	data   []byte
}

// NewRequest starts a request for the given object and opcode.
func NewRequest(object uint32, opcode uint16) *Request {
	return &Request{object: object, opcode: opcode}
}

// PutUint32 appends a 32-bit unsigned argument.
func (r *Request) PutUint32(v uint32) *Request {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	r.data = append(r.data, b[:]...)
	return r
}

// PutString appends a string argument with NUL terminator and padding.
func (r *Request) PutString(s string) *Request {
	n := len(s) + 1
	r.PutUint32(uint32(n))
	r.data = append(r.data, s...)
	r.data = append(r.data, 0)
	for i := 0; i < pad(n); i++ {
		r.data = append(r.data, 0)
	}
	return r
}

// PutArray appends an array argument with padding.
func (r *Request) PutArray(b []byte) *Request {
	r.PutUint32(uint32(len(b)))
	r.data = append(r.data, b...)
	for i := 0; i < pad(len(b)); i++ {
		r.data = append(r.data, 0)
	}
	return r
}

// Encode frames the request for the wire.
func (r *Request) Encode() ([]byte, error) {
	size := headerSize + len(r.data)
	if size > maxMessageSize {
		return nil, errors.Errorf("request size %d exceeds protocol maximum %d", size, maxMessageSize)
	}
	buf := make([]byte, headerSize, size)
	binary.LittleEndian.PutUint32(buf[0:4], r.object)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size)<<16|uint32(r.opcode))
	return append(buf, r.data...), nil
}
