package graph

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// Rule sets understood by both regexp/syntax and lexmachine. None of them is nullable.
var oracleRuleSets = [][]string{
	{`a`, `ab`, `abc`, `b+`},
	{`if`, `[a-z]+`, `[0-9]+`, `[ ]+`},
	{`x(yz)*`, `xy`, `(xyz)+z`},
	{`[a-c]`, `[b-d]`},
	{`(a|b)*abb`, `a+`, `b`},
	{`[0-9]+[.][0-9]*`, `[0-9]+`, `[.]`},
}

type oracleMatch struct {
	rank   Rank
	length int
}

// posixOracle picks the longest leftmost-longest match among all rules, the first rule on
// ties.
func posixOracle(t *testing.T, patterns []string) func(string) oracleMatch {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.CompilePOSIX(`^(` + p + `)`)
		require.NoError(t, err)
		res[i] = re
	}
	return func(input string) oracleMatch {
		best := oracleMatch{rank: RankNone}
		for i, re := range res {
			loc := re.FindStringIndex(input)
			if loc == nil {
				continue
			}
			if best.rank == RankNone || loc[1] > best.length {
				best = oracleMatch{rank: Rank(i + 1), length: loc[1]}
			}
		}
		return best
	}
}

func lexmachineOracle(t *testing.T, patterns []string) func(string) oracleMatch {
	lexer := lexmachine.NewLexer()
	for i, p := range patterns {
		rank := Rank(i + 1)
		lexer.Add([]byte(p), func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
			return oracleMatch{rank: rank, length: len(m.Bytes)}, nil
		})
	}
	require.NoError(t, lexer.Compile())
	return func(input string) oracleMatch {
		scanner, err := lexer.Scanner([]byte(input))
		require.NoError(t, err)
		tok, err, eof := scanner.Next()
		if err != nil || eof {
			return oracleMatch{rank: RankNone}
		}
		return tok.(oracleMatch)
	}
}

func TestLongestMatchPriorityLaw(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	alphabet := "abcdxyzif0123. "
	for _, rs := range oracleRuleSets {
		d := buildDFA(t, rs...)
		d.Minimize(MinimizeMoore)
		oracles := map[string]func(string) oracleMatch{
			"posix":      posixOracle(t, rs),
			"lexmachine": lexmachineOracle(t, rs),
		}
		for k := 0; k < 300; k++ {
			input := randomString(rnd, alphabet, 10)
			if input == "" {
				continue
			}
			n, rule := d.Match(Units(input))
			got := oracleMatch{rank: rule.rank(), length: n}
			for name, oracle := range oracles {
				require.Equal(t, oracle(input), got, "%s: rules %q input %q", name, rs, input)
			}
		}
	}
}
