package skeleton

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/liran-funaro/re2go/diag"
	"github.com/liran-funaro/re2go/graph"
)

// Key is the expected outcome of one input vector.
type Key struct {
	Len   uint32
	Match uint32
	// Rule is the matching rank, 0 when no rule matches.
	Rule uint32
}

// Data is a path cover: the concatenated input vectors and one key per vector.
type Data struct {
	Input   []uint32
	Keys    []Key
	Ceiling uint32
	// Partial is set when the size limit cut the cover short or some transition leads
	// where the input can no longer end.
	Partial bool
}

// Cover builds input vectors exercising every transition of the automaton, each one at both
// ends of its range. Every vector ends with a code unit that leaves the automaton, so the
// scanner never reads past it.
func (sk *Skeleton) Cover() *Data {
	prefix := sk.prefixes()
	suffix := sk.suffixes()
	data := &Data{Ceiling: sk.dfa.Charset.Ceiling()}

	add := func(v []uint32) bool {
		if sk.opts.MaxSize > 0 && len(data.Input)+len(v) > sk.opts.MaxSize {
			data.Partial = true
			return false
		}
		n, r := sk.dfa.Match(v)
		key := Key{Len: uint32(len(v)), Match: uint32(n)}
		if r != nil {
			key.Rule = uint32(r.Rank)
		}
		data.Input = append(data.Input, v...)
		data.Keys = append(data.Keys, key)
		return true
	}

	for _, id := range sk.bfsOrder() {
		for _, a := range sk.nodes[id].arcs {
			var tail []uint32
			if a.to != graph.Nil {
				s, ok := suffix[a.to]
				if !ok {
					data.Partial = true
					continue
				}
				tail = s
			}
			for _, c := range boundaries(a.ranges) {
				v := make([]uint32, 0, len(prefix[id])+1+len(tail))
				v = append(append(append(v, prefix[id]...), c), tail...)
				if !add(v) {
					sk.logCover(data)
					sk.opts.Reporter.Warn(diag.TooLargeToCheck, sk.opts.Line, sk.opts.Cond,
						"path cover exceeds %d code units, generated data is partial", sk.opts.MaxSize)
					return data
				}
			}
		}
	}
	sk.logCover(data)
	return data
}

func (sk *Skeleton) logCover(data *Data) {
	if sk.opts.Log == nil {
		return
	}
	sk.opts.Log.WithFields(logrus.Fields{
		"cond":    sk.opts.Cond,
		"vectors": len(data.Keys),
		"units":   len(data.Input),
		"partial": data.Partial,
	}).Debug("path cover")
}

// boundaries returns the lowest and highest code unit of rs.
func boundaries(rs graph.Ranges) []uint32 {
	lo, hi := rs[0].Lb, rs[len(rs)-1].Ub-1
	if lo == hi {
		return []uint32{lo}
	}
	return []uint32{lo, hi}
}

func (sk *Skeleton) bfsOrder() []graph.StateID {
	seen := make([]bool, len(sk.nodes))
	order := []graph.StateID{0}
	seen[0] = true
	for i := 0; i < len(order); i++ {
		for _, a := range sk.nodes[order[i]].arcs {
			if a.to != graph.Nil && !seen[a.to] {
				seen[a.to] = true
				order = append(order, a.to)
			}
		}
	}
	return order
}

// prefixes returns a shortest input reaching every state.
func (sk *Skeleton) prefixes() map[graph.StateID][]uint32 {
	res := map[graph.StateID][]uint32{0: nil}
	queue := []graph.StateID{0}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, a := range sk.nodes[id].arcs {
			if a.to == graph.Nil {
				continue
			}
			if _, ok := res[a.to]; ok {
				continue
			}
			p := make([]uint32, len(res[id]), len(res[id])+1)
			copy(p, res[id])
			res[a.to] = append(p, a.ranges[0].Lb)
			queue = append(queue, a.to)
		}
	}
	return res
}

// suffixes returns a shortest input leaving the automaton from every state that can.
func (sk *Skeleton) suffixes() map[graph.StateID][]uint32 {
	type edge struct {
		from graph.StateID
		c    uint32
	}
	rev := make([][]edge, len(sk.nodes))
	res := make(map[graph.StateID][]uint32)
	var queue []graph.StateID
	for i, n := range sk.nodes {
		id := graph.StateID(i)
		for _, a := range n.arcs {
			if a.to == graph.Nil {
				if _, ok := res[id]; !ok {
					res[id] = []uint32{a.ranges[0].Lb}
					queue = append(queue, id)
				}
				continue
			}
			rev[a.to] = append(rev[a.to], edge{from: id, c: a.ranges[0].Lb})
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range rev[id] {
			if _, ok := res[e.from]; ok {
				continue
			}
			res[e.from] = append([]uint32{e.c}, res[id]...)
			queue = append(queue, e.from)
		}
	}
	return res
}

// Width is the number of bytes of one code unit in the input stream.
func (d *Data) Width() int {
	switch {
	case d.Ceiling <= 0x100:
		return 1
	case d.Ceiling <= 0x10000:
		return 2
	}
	return 4
}

// WriteInput writes the input vectors as little-endian code units of Width bytes.
func (d *Data) WriteInput(w io.Writer) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 4)
	width := d.Width()
	for _, c := range d.Input {
		binary.LittleEndian.PutUint32(buf, c)
		if _, err := bw.Write(buf[:width]); err != nil {
			return errors.Wrap(err, "writing skeleton input")
		}
	}
	return errors.Wrap(bw.Flush(), "writing skeleton input")
}

// WriteKeys writes every key as three little-endian uint32: length, match length, rule.
func (d *Data) WriteKeys(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, k := range d.Keys {
		if err := binary.Write(bw, binary.LittleEndian, k); err != nil {
			return errors.Wrap(err, "writing skeleton keys")
		}
	}
	return errors.Wrap(bw.Flush(), "writing skeleton keys")
}

// Replay runs scan over every vector and returns the index of the first vector whose outcome
// differs from its key, or -1.
func (d *Data) Replay(scan func(input []uint32) (int, uint32)) int {
	off := 0
	for i, k := range d.Keys {
		n, rule := scan(d.Input[off : off+int(k.Len)])
		if rule != k.Rule || (rule != 0 && uint32(n) != k.Match) {
			return i
		}
		off += int(k.Len)
	}
	return -1
}
