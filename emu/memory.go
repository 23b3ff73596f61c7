package emu

import "fmt"

// MemorySize is the Z80 address space.
const MemorySize = 1 << 16

// Memory is a flat 64 KiB memory. Addresses wrap.
type Memory struct {
	data [MemorySize]byte

	reads, writes uint64
}

// NewMemory creates a zeroed memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint16) uint8 {
	m.reads++
	return m.data[addr]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint16, v uint8) {
	m.writes++
	m.data[addr] = v
}

// Read16 reads a little-endian word.
func (m *Memory) Read16(addr uint16) uint16 {
	return uint16(m.Read8(addr)) | uint16(m.Read8(addr+1))<<8
}

// Write16 writes a little-endian word.
func (m *Memory) Write16(addr uint16, v uint16) {
	m.Write8(addr, uint8(v))
	m.Write8(addr+1, uint8(v>>8))
}

// Peek reads one byte without counting an access.
func (m *Memory) Peek(addr uint16) uint8 {
	return m.data[addr]
}

// Load copies data into memory at origin.
func (m *Memory) Load(origin uint16, data []byte) error {
	if int(origin)+len(data) > MemorySize {
		return fmt.Errorf("image of %d bytes at %04Xh exceeds 64 KiB", len(data), origin)
	}
	copy(m.data[origin:], data)
	return nil
}

// Slice returns a copy of n bytes starting at addr, wrapping at the top.
func (m *Memory) Slice(addr uint16, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.data[addr+uint16(i)]
	}
	return out
}

// Accesses returns the number of counted reads and writes.
func (m *Memory) Accesses() (reads, writes uint64) {
	return m.reads, m.writes
}

// Reset clears memory and the access counters.
func (m *Memory) Reset() {
	*m = Memory{}
}
