package adfa

// Bitmap is one column of the shared yybm table: bit Mask of entry Index+c is set when code
// unit c keeps a base state on its self-loop.
type Bitmap struct {
	Spans []Span
	On    *State
	Index int
	Mask  uint8
}

// Bitmaps collects the bitmaps of one output block. Eight bitmaps share each table row.
type Bitmaps struct {
	list  []*Bitmap
	width int
}

// NewBitmaps covers the code units below min(ceiling, 256).
func NewBitmaps(ceiling uint32) *Bitmaps {
	return &Bitmaps{width: int(min(ceiling, 256))}
}

func (bm *Bitmaps) Len() int {
	return len(bm.list)
}

// Width is the number of entries per table row.
func (bm *Bitmaps) Width() int {
	return bm.width
}

// find returns the bitmap whose looping set equals the one of spans toward on, creating it
// when there is none.
func (bm *Bitmaps) find(spans []Span, on *State) *Bitmap {
	for _, b := range bm.list {
		if Matches(b.Spans, b.On, spans, on) {
			return b
		}
	}
	k := len(bm.list)
	b := &Bitmap{Spans: spans, On: on, Index: k / 8 * bm.width, Mask: 0x80 >> (k % 8)}
	bm.list = append(bm.list, b)
	return b
}

// Lookup returns the bitmap created for base state on.
func (bm *Bitmaps) Lookup(on *State) *Bitmap {
	if bm == nil {
		return nil
	}
	for _, b := range bm.list {
		if b.On == on {
			return b
		}
	}
	return nil
}

// Matches reports whether the code units leading g1 to s1 are exactly those leading g2 to
// s2.
func Matches(g1 []Span, s1 *State, g2 []Span, s2 *State) bool {
	i1, i2 := 0, 0
	var lb1, lb2 uint32
	for {
		for ; i1 < len(g1) && g1[i1].To != s1; i1++ {
			lb1 = g1[i1].Ub
		}
		for ; i2 < len(g2) && g2[i2].To != s2; i2++ {
			lb2 = g2[i2].Ub
		}
		if i1 == len(g1) {
			return i2 == len(g2)
		}
		if i2 == len(g2) {
			return false
		}
		if lb1 != lb2 || g1[i1].Ub != g2[i2].Ub {
			return false
		}
		lb1, lb2 = g1[i1].Ub, g2[i2].Ub
		i1++
		i2++
	}
}

// Table renders the rows of yybm.
func (bm *Bitmaps) Table() []byte {
	rows := (len(bm.list) + 7) / 8
	tab := make([]byte, rows*bm.width)
	for _, b := range bm.list {
		var lb uint32
		for _, sp := range b.Spans {
			if sp.To == b.On {
				for c := lb; c < sp.Ub && c < uint32(bm.width); c++ {
					tab[b.Index+int(c)] |= b.Mask
				}
			}
			lb = sp.Ub
		}
	}
	return tab
}

// Unmap removes the spans leading to x, letting their neighbours absorb them. The caller
// tests x's code units before dispatching on the result.
func Unmap(base []Span, x *State) []Span {
	var res []Span
	cur := Span{}
	var lb uint32
	for _, b := range base {
		if b.To == x {
			if cur.Ub-lb > 1 {
				cur.Ub = b.Ub
			}
			continue
		}
		if b.To != cur.To {
			if cur.Ub != 0 {
				lb = cur.Ub
				res = append(res, cur)
			}
			cur.To = b.To
		}
		cur.Ub = b.Ub
	}
	cur.Ub = base[len(base)-1].Ub
	return append(res, cur)
}
