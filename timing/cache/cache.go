package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/z80exec/insts"
	"github.com/sarchlab/z80exec/timing/control"
)

// Config holds memo configuration parameters.
type Config struct {
	// Sets is the number of sets.
	Sets int
	// Ways is the associativity.
	Ways int
}

// DefaultConfig returns a memo large enough for the hot loop of a typical
// program: a few hundred distinct (vector, position, mode) tuples.
func DefaultConfig() Config {
	return Config{
		Sets: 256,
		Ways: 4,
	}
}

// Validate checks the geometry.
func (c Config) Validate() error {
	if c.Sets <= 0 {
		return fmt.Errorf("cache sets must be > 0")
	}
	if c.Sets > MaxSets {
		return fmt.Errorf("cache sets must be <= %d", MaxSets)
	}
	if c.Ways <= 0 {
		return fmt.Errorf("cache ways must be > 0")
	}
	return nil
}

// Statistics holds memo statistics.
type Statistics struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// Bypasses counts inputs that cannot be keyed exactly, such as
	// positions that are not one-hot. They go straight to the backing
	// evaluator.
	Bypasses uint64
}

// HitRate returns hits over lookups.
func (s Statistics) HitRate() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Lookups)
}

// Memo is a set-associative memo of control vectors. The tag/LRU state lives
// in an Akita directory whose block size is one, so the tag is the exact
// packed input key.
type Memo struct {
	config    Config
	directory *akitacache.DirectoryImpl
	dataStore []control.Signals
	backing   Evaluator
	vectors   map[insts.Vector]uint64
	stats     Statistics
}

// New creates a memo in front of backing.
func New(config Config, backing Evaluator) *Memo {
	return &Memo{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			1,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: make([]control.Signals, config.Sets*config.Ways),
		backing:   backing,
		vectors:   make(map[insts.Vector]uint64),
	}
}

// Config returns the memo configuration.
func (m *Memo) Config() Config {
	return m.config
}

// Stats returns memo statistics.
func (m *Memo) Stats() Statistics {
	return m.stats
}

// ResetStats clears memo statistics.
func (m *Memo) ResetStats() {
	m.stats = Statistics{}
}

// blockIndex computes the index into dataStore for a block.
func (m *Memo) blockIndex(block *akitacache.Block) int {
	return block.SetID*m.config.Ways + block.WayID
}

// Key layout, low to high: 14 mode bits, 6 T bits, 6 M bits, vector id.
const (
	modeBits = 14
	tShift   = modeBits
	mShift   = tShift + 6
	idShift  = mShift + 6
)

// The directory address is the key shifted above a 16-bit hash of itself.
// Akita picks the set from the low address bits, so the hash spreads keys
// over the sets while the address stays unique and serves as the exact tag.
const (
	setBits = 16
	setMask = 1<<setBits - 1
	// MaxSets is the largest set count the address layout spreads over.
	MaxSets = 1 << setBits
)

func modeKey(md control.Mode) uint64 {
	var k uint64
	for i, b := range []bool{
		md.Reset, md.TestMode, md.InIntr, md.InNMI, md.InHalt, md.IM1, md.IM2,
		md.UseIXIY, md.RepeatEn, md.FlagZ, md.FlagN, md.FlagS, md.FlagC, md.CondTrue,
	} {
		if b {
			k |= 1 << i
		}
	}
	return k
}

// mix is a Fibonacci hash of key down to setBits bits.
func mix(key uint64) uint64 {
	return (key * 0x9E3779B97F4A7C15) >> (64 - setBits)
}

// address packs in exactly into a directory address. ok is false for
// inputs the layout cannot represent.
func (m *Memo) address(in control.Inputs) (uint64, bool) {
	if !in.Pos.Valid() {
		return 0, false
	}
	id, found := m.vectors[in.Vector]
	if !found {
		id = uint64(len(m.vectors))
		m.vectors[in.Vector] = id
	}
	key := id<<idShift | uint64(in.Pos.M)<<mShift | uint64(in.Pos.T)<<tShift | modeKey(in.Mode)
	return key<<setBits | mix(key)&setMask, true
}

// Evaluate returns the memoised control vector for in, filling the memo from
// the backing evaluator on a miss.
func (m *Memo) Evaluate(in control.Inputs) control.Signals {
	key, ok := m.address(in)
	if !ok {
		m.stats.Bypasses++
		return m.backing.Evaluate(in)
	}
	m.stats.Lookups++

	block := m.directory.Lookup(0, key)
	if block != nil && block.IsValid {
		m.stats.Hits++
		m.directory.Visit(block)
		return m.dataStore[m.blockIndex(block)]
	}

	m.stats.Misses++
	s := m.backing.Evaluate(in)

	victim := m.directory.FindVictim(key)
	if victim == nil {
		return s
	}
	if victim.IsValid {
		m.stats.Evictions++
	}
	m.dataStore[m.blockIndex(victim)] = s
	victim.Tag = key
	victim.IsValid = true
	victim.IsDirty = false
	m.directory.Visit(victim)

	return s
}

// Invalidate drops every line.
func (m *Memo) Invalidate() {
	for _, set := range m.directory.GetSets() {
		for _, block := range set.Blocks {
			block.IsValid = false
		}
	}
}

// Reset invalidates all lines and clears statistics.
func (m *Memo) Reset() {
	m.directory.Reset()
	m.stats = Statistics{}
	m.vectors = make(map[insts.Vector]uint64)
}
