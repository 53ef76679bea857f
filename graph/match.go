package graph

// Match scans input from the start state and returns the length and rule of the longest
// match, or (0, nil) when no rule matches. A rule with trailing context matches up to the
// last context marker passed, as the emitted code does.
func (d *DFA) Match(input []uint32) (int, *Rule) {
	var rule *Rule
	length, ctx := 0, 0
	s := StateID(0)
	for pos := 0; ; pos++ {
		st := d.States[s]
		if st.IsContext {
			ctx = pos
		}
		if st.Rule != nil {
			rule, length = st.Rule, pos
		}
		if pos == len(input) {
			break
		}
		c := d.Charset.ClassOf(input[pos])
		if c < 0 {
			break
		}
		if s = st.Arcs[c]; s == Nil {
			break
		}
	}
	if rule != nil && rule.HasContext() {
		length = ctx
	}
	return length, rule
}

// Units converts a string to the code units the automaton reads.
func Units(s string) []uint32 {
	res := make([]uint32, len(s))
	for i := 0; i < len(s); i++ {
		res[i] = uint32(s[i])
	}
	return res
}
