package permission

// Mask64 is a set of permission bits. The highest bit is the wildcard.
type Mask64 uint64

const rootMask Mask64 = 1 << (MaxBits - 1)

// Has reports whether bit is set, or the wildcard bit is.
func (m Mask64) Has(bit int) bool {
	if m&rootMask != 0 {
		return true
	}
	if bit < 0 || bit >= MaxBits {
		return false
	}
	return m&(1<<bit) != 0
}

// IsRoot reports whether the wildcard bit is set.
func (m Mask64) IsRoot() bool {
	return m&rootMask != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	*m |= 1 << bit
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	*m &^= 1 << bit
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
