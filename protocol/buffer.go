package protocol

// buffer is an extension to the byte slice with functions for efficiently
// growing it, used by Encode to build a reply line without the
// intermediate string allocations strings.Join would require.
type buffer []byte

const bufferMinAutoInitSize = 64

// reset truncates the buffer's length to zero, allowing it to be reused.
func (b *buffer) reset() {
	*b = (*b)[:0]
}

func (b *buffer) writeString(s string) {
	i := b.grow(len(s))
	*b = append((*b)[:i], s...)
}

func (b *buffer) writeByte(v byte) {
	i := b.grow(1)
	(*b)[i] = v
	*b = (*b)[:i+1]
}

// grow returns the index where n more bytes should be written, extending
// the buffer's capacity if needed.
func (b *buffer) grow(n int) int {
	l := len(*b)
	if n <= cap(*b)-l {
		*b = (*b)[:l+n]
		return l
	}
	if *b == nil && n <= bufferMinAutoInitSize {
		*b = make([]byte, n, bufferMinAutoInitSize)
		return 0
	}
	c := cap(*b)
	buf := make([]byte, 2*c+n)
	copy(buf, *b)
	*b = buf[:l+n]
	return l
}
