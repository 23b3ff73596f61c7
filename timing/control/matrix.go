package control

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/z80exec/insts"
)

// Matrix construction errors.
var (
	// ErrConflict reports two matrix entries that can fire on the same tick
	// and assign different values to the same line.
	ErrConflict = errors.New("conflicting matrix entries")
	// ErrFetchOwned reports a class entry inside M1 T1..T3, which belongs to
	// the shared opcode-fetch schedule.
	ErrFetchOwned = errors.New("class entry in the opcode fetch window")
	// ErrReservedLine reports an entry assigning a line only the defaults or
	// the matrix itself may drive.
	ErrReservedLine = errors.New("entry assigns a reserved line")
	// ErrPosition reports an entry outside M1..M6 / T1..T6.
	ErrPosition = errors.New("entry outside the cycle range")
	// ErrGuard reports an entry whose guard can never match.
	ErrGuard = errors.New("unsatisfiable guard")
)

// FetchClass is the pseudo-class owning the shared opcode-fetch schedule.
// Its entries apply on every tick regardless of the decode vector.
const FetchClass = insts.NumClasses

// fetchWindow is the last T of M1 owned by the opcode-fetch schedule.
const fetchWindow = 3

// reserved lines are driven by the defaults and by the matrix itself.
const reserved = Mask(1<<Fetch | 1<<Valid)

// Entry is one matrix cell assignment.
type Entry struct {
	Class    insts.Class
	M, T     int
	Guard    Guard
	Override Override
}

// String renders the entry.
func (e Entry) String() string {
	name := "Fetch"
	if e.Class != FetchClass {
		name = e.Class.String()
	}
	return fmt.Sprintf("%s M%dT%d [%s] %s", name, e.M, e.T, e.Guard, e.Override)
}

// Matrix is the instruction matrix: (class, M, T) -> guarded overrides.
type Matrix struct {
	cells [insts.NumClasses + 1][MaxCycle + 1][MaxCycle + 1][]Entry
	count int
}

// NewMatrix builds a matrix from entries and validates each cell.
func NewMatrix(entries []Entry) (*Matrix, error) {
	m := &Matrix{}
	for _, e := range entries {
		if err := checkEntry(e); err != nil {
			return nil, err
		}
		cell := &m.cells[e.Class][e.M][e.T]
		for _, other := range *cell {
			if err := compatible(e, other); err != nil {
				return nil, err
			}
		}
		*cell = append(*cell, e)
		m.count++
	}
	return m, nil
}

func checkEntry(e Entry) error {
	if e.Class > FetchClass || e.M < 1 || e.M > MaxCycle || e.T < 1 || e.T > MaxCycle {
		return fmt.Errorf("%w: %s", ErrPosition, e)
	}
	if e.Class != FetchClass && e.M == 1 && e.T <= fetchWindow {
		return fmt.Errorf("%w: %s", ErrFetchOwned, e)
	}
	if e.Class == FetchClass && (e.M != 1 || e.T > fetchWindow) {
		return fmt.Errorf("%w: %s", ErrPosition, e)
	}
	if e.Override.Mask()&reserved != 0 {
		return fmt.Errorf("%w: %s", ErrReservedLine, e)
	}
	if !e.Guard.Satisfiable() {
		return fmt.Errorf("%w: %s", ErrGuard, e)
	}
	return nil
}

func compatible(a, b Entry) error {
	if !a.Guard.Overlaps(b.Guard) {
		return nil
	}
	if bad := a.Override.Conflicts(b.Override); bad != 0 {
		return fmt.Errorf("%w: %v on %s / %s", ErrConflict, bad.List(), a, b)
	}
	return nil
}

// Len returns the number of entries.
func (m *Matrix) Len() int { return m.count }

// Cell returns the entries of (class, M, T).
func (m *Matrix) Cell(c insts.Class, mi, ti int) []Entry {
	if c > FetchClass || mi < 1 || mi > MaxCycle || ti < 1 || ti > MaxCycle {
		return nil
	}
	return m.cells[c][mi][ti]
}

// Entries returns every entry of class c ordered by position.
func (m *Matrix) Entries(c insts.Class) []Entry {
	var out []Entry
	for mi := 1; mi <= MaxCycle; mi++ {
		for ti := 1; ti <= MaxCycle; ti++ {
			out = append(out, m.Cell(c, mi, ti)...)
		}
	}
	return out
}

// Apply writes the overrides matching (v, mi, ti, conds) into s and reports
// whether the vector decoded to any class.
func (m *Matrix) Apply(s *Signals, v insts.Vector, mi, ti int, conds Cond) bool {
	if mi == 1 && ti <= fetchWindow {
		applyCell(s, m.cells[FetchClass][mi][ti], conds)
	}
	for _, c := range v.List() {
		applyCell(s, m.cells[c][mi][ti], conds)
	}
	return v.Valid()
}

func applyCell(s *Signals, cell []Entry, conds Cond) {
	for i := range cell {
		if cell[i].Guard.Match(conds) {
			cell[i].Override.ApplyTo(s)
		}
	}
}

// Verify checks that, for every given decode vector and cycle position, the
// entries of different classes that can fire together agree on every line
// they share. It returns all conflicts joined into one error.
func (m *Matrix) Verify(vectors []insts.Vector) error {
	var errs []error
	seen := make(map[string]bool)
	for _, v := range vectors {
		classes := append(v.List(), FetchClass)
		for mi := 1; mi <= MaxCycle; mi++ {
			for ti := 1; ti <= MaxCycle; ti++ {
				for i, a := range classes {
					for _, b := range classes[i+1:] {
						for _, ea := range m.cells[a][mi][ti] {
							for _, eb := range m.cells[b][mi][ti] {
								err := compatible(ea, eb)
								if err == nil || seen[err.Error()] {
									continue
								}
								seen[err.Error()] = true
								errs = append(errs, err)
							}
						}
					}
				}
			}
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errors.Join(errs...)
}

// Schedule summarises the timeline of class c under conds: the number of
// ticks spent in each machine cycle, following NextM and SetM1 requests
// from M1 T4 on. Fetch owns M1 T1..T3. It is a reading aid for tooling and
// tests; the sequencer itself lives outside the unit.
func (m *Matrix) Schedule(v insts.Vector, conds Cond) []int {
	var lengths []int
	mi, ti := 1, fetchWindow+1
	for mi <= MaxCycle && ti <= MaxCycle {
		s := Defaults(At(mi, ti))
		m.Apply(&s, v, mi, ti, conds)
		switch {
		case s.On(SetM1):
			return append(lengths, ti)
		case s.On(NextM):
			lengths = append(lengths, ti)
			mi, ti = mi+1, 1
		default:
			ti++
		}
	}
	return nil
}
