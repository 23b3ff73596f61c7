// Package loader reads Z80 program images: raw binaries placed at an
// origin, and Intel HEX files.
package loader

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/z80exec/emu"
)

// ErrChecksum reports an Intel HEX record whose checksum does not match.
var ErrChecksum = errors.New("hex record checksum mismatch")

// Segment is a contiguous run of bytes at an address.
type Segment struct {
	// Addr is the load address.
	Addr uint16
	// Data is the segment contents.
	Data []byte
}

// End returns the address one past the segment, which may be 0x10000.
func (s Segment) End() int {
	return int(s.Addr) + len(s.Data)
}

// Program is a loaded image ready to be placed in memory.
type Program struct {
	// EntryPoint is where execution starts: the origin of a raw binary or
	// the start address record of a HEX file, else the lowest segment.
	EntryPoint uint16
	// Segments holds the image contents in file order.
	Segments []Segment
}

// Size returns the number of image bytes.
func (p *Program) Size() int {
	n := 0
	for _, s := range p.Segments {
		n += len(s.Data)
	}
	return n
}

// LoadIntoMemory copies every segment into memory.
func (p *Program) LoadIntoMemory(m *emu.Memory) error {
	for _, s := range p.Segments {
		if err := m.Load(s.Addr, s.Data); err != nil {
			return fmt.Errorf("failed to load segment at %04Xh: %w", s.Addr, err)
		}
	}
	return nil
}

// Load reads an image file. Files ending in .hex or .ihx are parsed as
// Intel HEX; anything else is a raw binary placed at origin.
func Load(path string, origin uint16) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihx":
		return ParseHex(bytes.NewReader(data))
	}
	return Binary(data, origin)
}

// Binary wraps a raw image placed at origin.
func Binary(data []byte, origin uint16) (*Program, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if int(origin)+len(data) > emu.MemorySize {
		return nil, fmt.Errorf("image of %d bytes at %04Xh exceeds 64 KiB", len(data), origin)
	}
	return &Program{
		EntryPoint: origin,
		Segments:   []Segment{{Addr: origin, Data: append([]byte(nil), data...)}},
	}, nil
}

// Intel HEX record types.
const (
	recData          = 0x00
	recEOF           = 0x01
	recExtSegment    = 0x02
	recStartSegment  = 0x03
	recExtLinear     = 0x04
	recStartLinear   = 0x05
	minRecordPayload = 5 // count, address (2), type, checksum
)

// ParseHex reads an Intel HEX image. Adjacent data records are merged into
// one segment. Extended address records must keep the image inside the
// 64 KiB address space.
func ParseHex(r io.Reader) (*Program, error) {
	prog := &Program{}
	var base uint32
	entrySet := false
	sawEOF := false

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if sawEOF {
			return nil, fmt.Errorf("line %d: data after end-of-file record", line)
		}
		if text[0] != ':' {
			return nil, fmt.Errorf("line %d: missing start code", line)
		}

		rec, err := hex.DecodeString(text[1:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < minRecordPayload || len(rec) != int(rec[0])+minRecordPayload {
			return nil, fmt.Errorf("line %d: bad record length", line)
		}
		var sum uint8
		for _, b := range rec {
			sum += b
		}
		if sum != 0 {
			return nil, fmt.Errorf("line %d: %w", line, ErrChecksum)
		}

		addr := uint16(rec[1])<<8 | uint16(rec[2])
		payload := rec[4 : len(rec)-1]

		switch rec[3] {
		case recData:
			full := base + uint32(addr)
			if full+uint32(len(payload)) > emu.MemorySize {
				return nil, fmt.Errorf("line %d: data at %05Xh outside 64 KiB", line, full)
			}
			prog.addData(uint16(full), payload)
		case recEOF:
			sawEOF = true
		case recExtSegment:
			if len(payload) != 2 {
				return nil, fmt.Errorf("line %d: bad extended segment record", line)
			}
			base = (uint32(payload[0])<<8 | uint32(payload[1])) << 4
		case recExtLinear:
			if len(payload) != 2 {
				return nil, fmt.Errorf("line %d: bad extended linear record", line)
			}
			base = (uint32(payload[0])<<8 | uint32(payload[1])) << 16
		case recStartSegment, recStartLinear:
			if len(payload) != 4 {
				return nil, fmt.Errorf("line %d: bad start address record", line)
			}
			prog.EntryPoint = uint16(payload[2])<<8 | uint16(payload[3])
			entrySet = true
		default:
			return nil, fmt.Errorf("line %d: unknown record type %02X", line, rec[3])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex image: %w", err)
	}
	if !sawEOF {
		return nil, fmt.Errorf("missing end-of-file record")
	}
	if len(prog.Segments) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	if !entrySet {
		prog.EntryPoint = prog.Segments[0].Addr
		for _, s := range prog.Segments {
			if s.Addr < prog.EntryPoint {
				prog.EntryPoint = s.Addr
			}
		}
	}
	return prog, nil
}

func (p *Program) addData(addr uint16, data []byte) {
	if n := len(p.Segments); n > 0 && p.Segments[n-1].End() == int(addr) {
		p.Segments[n-1].Data = append(p.Segments[n-1].Data, data...)
		return
	}
	p.Segments = append(p.Segments, Segment{Addr: addr, Data: append([]byte(nil), data...)})
}

// WriteHex writes p as Intel HEX with at most 16 data bytes per record.
func WriteHex(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)
	for _, s := range p.Segments {
		for off := 0; off < len(s.Data); off += 16 {
			end := off + 16
			if end > len(s.Data) {
				end = len(s.Data)
			}
			writeRecord(bw, s.Addr+uint16(off), recData, s.Data[off:end])
		}
	}
	writeRecord(bw, 0, recStartLinear, []byte{0, 0, byte(p.EntryPoint >> 8), byte(p.EntryPoint)})
	writeRecord(bw, 0, recEOF, nil)
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, addr uint16, typ uint8, data []byte) {
	rec := make([]byte, 0, len(data)+minRecordPayload)
	rec = append(rec, byte(len(data)), byte(addr>>8), byte(addr), typ)
	rec = append(rec, data...)
	var sum uint8
	for _, b := range rec {
		sum += b
	}
	rec = append(rec, -sum)
	fmt.Fprintf(w, ":%s\n", strings.ToUpper(hex.EncodeToString(rec)))
}
