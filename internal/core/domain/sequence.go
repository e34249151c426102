package domain

// Sequence orders snapshots of one call. Entries are ascending; the range
// [RangeStart, RangeEnd] stands for sequence numbers compacted by the server.
type Sequence struct {
	Entries    []uint64 `json:"entries"`
	RangeStart uint64   `json:"rangeStart"`
	RangeEnd   uint64   `json:"rangeEnd"`
}

func (s Sequence) Empty() bool {
	return len(s.Entries) == 0 && s.RangeStart == 0 && s.RangeEnd == 0
}

func (s Sequence) first() uint64 {
	if s.RangeStart > 0 {
		return s.RangeStart
	}
	if len(s.Entries) > 0 {
		return s.Entries[0]
	}
	return 0
}

func (s Sequence) last() uint64 {
	if len(s.Entries) > 0 && s.Entries[len(s.Entries)-1] > 0 {
		return s.Entries[len(s.Entries)-1]
	}
	return s.RangeEnd
}

func (s Sequence) inRange(v uint64) bool {
	return v >= s.RangeStart && v <= s.RangeEnd
}

type Order int

const (
	OrderEqual Order = iota
	OrderLess
	OrderGreater
	OrderDesync
)

func (o Order) String() string {
	switch o {
	case OrderEqual:
		return "equal"
	case OrderLess:
		return "less"
	case OrderGreater:
		return "greater"
	default:
		return "desync"
	}
}

// Compare orders a relative to b: OrderLess means b is newer.
func Compare(a, b Sequence) Order {
	if a.last() < b.first() {
		return OrderLess
	}
	if a.first() > b.last() {
		return OrderGreater
	}

	aOnly, bOnly := uniqueEntries(a, b), uniqueEntries(b, a)

	switch {
	case len(aOnly) == 0 && len(bOnly) == 0:
		switch {
		case a.RangeEnd > b.RangeEnd:
			return OrderGreater
		case a.RangeEnd < b.RangeEnd:
			return OrderLess
		case a.RangeStart < b.RangeStart:
			return OrderGreater
		case a.RangeStart > b.RangeStart:
			return OrderLess
		default:
			return OrderEqual
		}
	case len(bOnly) == 0:
		return OrderGreater
	case len(aOnly) == 0:
		return OrderLess
	}

	// Both sides have unique entries. If one falls strictly inside the other
	// side's span the two histories diverged.
	for _, v := range aOnly {
		if v > b.first() && v < b.last() {
			return OrderDesync
		}
	}
	for _, v := range bOnly {
		if v > a.first() && v < a.last() {
			return OrderDesync
		}
	}
	if aOnly[0] > bOnly[0] {
		return OrderGreater
	}
	return OrderLess
}

// uniqueEntries returns the entries of a that b neither lists nor covers by its range.
func uniqueEntries(a, b Sequence) []uint64 {
	seen := make(map[uint64]struct{}, len(b.Entries))
	for _, v := range b.Entries {
		seen[v] = struct{}{}
	}
	var out []uint64
	for _, v := range a.Entries {
		if _, ok := seen[v]; ok || b.inRange(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

type Overwrite int

const (
	OverwriteReject Overwrite = iota
	OverwriteAccept
	OverwriteDesync
)

// ShouldOverwrite decides whether next may replace current.
func ShouldOverwrite(current, next Sequence) Overwrite {
	if current.Empty() || next.Empty() {
		return OverwriteAccept
	}
	switch Compare(current, next) {
	case OrderLess:
		return OverwriteAccept
	case OrderDesync:
		return OverwriteDesync
	default:
		return OverwriteReject
	}
}
