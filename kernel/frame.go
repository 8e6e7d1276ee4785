package kernel

import "encoding/binary"

const (
	frameSize  = 32
	frameMagic = 0x7A5C0DE1
)

type switchReason uint8

const (
	reasonBootstrap switchReason = iota
	reasonYield
	reasonPreempt
	reasonExit
)

func (r switchReason) String() string {
	switch r {
	case reasonBootstrap:
		return "bootstrap"
	case reasonYield:
		return "yield"
	case reasonPreempt:
		return "preempt"
	case reasonExit:
		return "exit"
	default:
		return "unknown"
	}
}

// frame is the saved execution state of a suspended task.
//
// Layout (little-endian):
//   - u32: magic
//   - u32: task id
//   - u64: switch sequence number at save
//   - u64: resume point (suspensions so far)
//   - u8: reason
//   - u8: status at save
//   - 6 bytes zero
type frame struct {
	id     TaskID
	seq    uint64
	resume uint64
	reason switchReason
	status Status
}

func (f frame) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], frameMagic)
	binary.LittleEndian.PutUint32(b[4:8], uint32(f.id))
	binary.LittleEndian.PutUint64(b[8:16], f.seq)
	binary.LittleEndian.PutUint64(b[16:24], f.resume)
	b[24] = byte(f.reason)
	b[25] = byte(f.status)
	for i := 26; i < frameSize; i++ {
		b[i] = 0
	}
}

func decodeFrame(b []byte) (frame, bool) {
	if len(b) < frameSize || binary.LittleEndian.Uint32(b[0:4]) != frameMagic {
		return frame{}, false
	}
	f := frame{
		id:     TaskID(binary.LittleEndian.Uint32(b[4:8])),
		seq:    binary.LittleEndian.Uint64(b[8:16]),
		resume: binary.LittleEndian.Uint64(b[16:24]),
		reason: switchReason(b[24]),
		status: Status(b[25]),
	}
	if f.reason > reasonExit || f.status > StatusKill {
		return frame{}, false
	}
	return f, true
}
