package emu

// IOBus is the port space seen by IN, OUT and the interrupt acknowledge
// cycle.
type IOBus interface {
	// In reads a port. The full 16-bit address is presented, as the Z80
	// drives B or A onto the high byte.
	In(port uint16) uint8
	// Out writes a port.
	Out(port uint16, v uint8)
	// Ack returns the byte the interrupting device places on the data bus:
	// an opcode in IM0, the vector low byte in IM2.
	Ack() uint8
}

// PortWrite records one OUT.
type PortWrite struct {
	Port  uint16
	Value uint8
}

// Ports is a simple IOBus keyed by the low port byte. Reads of unmapped
// ports return 0xFF, like a floating bus.
type Ports struct {
	in     map[uint8]uint8
	writes []PortWrite
	vector uint8
}

// NewPorts creates an empty port space whose acknowledge byte is RST 38h.
func NewPorts() *Ports {
	return &Ports{in: make(map[uint8]uint8), vector: 0xFF}
}

// SetInput sets the value read from a port.
func (p *Ports) SetInput(port uint8, v uint8) { p.in[port] = v }

// SetVector sets the interrupt acknowledge byte.
func (p *Ports) SetVector(v uint8) { p.vector = v }

// In implements IOBus.
func (p *Ports) In(port uint16) uint8 {
	if v, ok := p.in[uint8(port)]; ok {
		return v
	}
	return 0xFF
}

// Out implements IOBus.
func (p *Ports) Out(port uint16, v uint8) {
	p.writes = append(p.writes, PortWrite{Port: port, Value: v})
}

// Ack implements IOBus.
func (p *Ports) Ack() uint8 { return p.vector }

// Writes returns every OUT in order.
func (p *Ports) Writes() []PortWrite {
	return append([]PortWrite(nil), p.writes...)
}
