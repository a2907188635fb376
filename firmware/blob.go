package firmware

import "camsensor-go/errcode"

// ReadBlob evaluates the buffer object name under h and copies it into dst.
//
// It returns the length the firmware reported, which may be smaller than
// len(dst). A reported length larger than len(dst) fails with
// errcode.BufferTooSmall and leaves dst untouched. The evaluated object is
// released on every path.
func ReadBlob(ns Namespace, h Handle, name string, dst []byte) (int, error) {
	const op = "firmware.read_blob"

	obj, err := ns.Evaluate(h, name)
	if err != nil {
		return 0, &errcode.E{C: errcode.NoSuchBlob, Op: op, Msg: name, Err: err}
	}
	defer obj.Release()

	if obj == nil || obj.Type != ObjectBuffer {
		return 0, &errcode.E{C: errcode.NoSuchBlob, Op: op, Msg: name + ": not a buffer"}
	}
	n := len(obj.Buffer)
	if n > len(dst) {
		return 0, &errcode.E{C: errcode.BufferTooSmall, Op: op, Msg: name}
	}
	copy(dst, obj.Buffer[:min(len(dst), n)])
	return n, nil
}
