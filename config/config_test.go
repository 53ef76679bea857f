package config

import (
	"go/format"
	"os"
	"path/filepath"
	"testing"

	"github.com/gobuffalo/envy"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/liran-funaro/re2go/diag"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	require.NoError(t, Default().WithTarget(TargetC).Validate())
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
	}{
		{"target", Default().WithTarget("rust")},
		{"minimize", Default().WithMinimize("brzozowski")},
		{"wide bytes", Default().WithCeiling(0x110000, "byte")},
		{"ceiling", Default().WithCeiling(1, "byte")},
		{"warning", func() Config { c := Default(); c.Warnings = []string{"no-such"}; return c }()},
		{"thresholds", func() Config { c := Default(); c.Thresholds.Linear = 9; return c }()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, diag.ErrFatalConfig))
		})
	}
	require.NoError(t, Default().WithCeiling(0x110000, "rune").Validate())
}

func TestSetterTableFormatted(t *testing.T) {
	src, err := os.ReadFile("env.go")
	require.NoError(t, err)
	out, err := format.Source(src)
	require.NoError(t, err)
	require.Equal(t, string(out), string(src))
}

func TestWithTargetSwitchesAPI(t *testing.T) {
	c := Default().WithTarget(TargetC)
	require.Equal(t, "YYPEEK()", c.API.Peek)
	require.True(t, c.SupportsComputedGoto())
	require.Equal(t, "abort();", c.NoMatch)
	c = c.WithTarget(TargetGo)
	require.Equal(t, "in.Peek()", c.API.Peek)
	require.False(t, c.SupportsComputedGoto())
	require.Equal(t, `panic("re2go: no rule matched")`, c.NoMatch)

	c = Default()
	c.API.Peek = "s[i]"
	c.NoMatch = "return -1"
	require.Equal(t, "s[i]", c.WithTarget(TargetC).API.Peek)
	require.Equal(t, "return -1", c.WithTarget(TargetC).NoMatch)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "re2go.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: c\nbitmaps: true\nthresholds:\n  binary: 6\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, TargetC, c.Target)
	require.True(t, c.Bitmaps)
	require.Equal(t, 6, c.Thresholds.Binary)
	require.Equal(t, 8, c.Thresholds.Switch)
	require.Equal(t, "YYSKIP()", c.API.Skip)
	require.Equal(t, "abort();", c.NoMatch)

	require.NoError(t, os.WriteFile(path, []byte("nosuchkey: 1\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	envy.Temp(func() {
		envy.Set("RE2GO_MINIMIZE", MinimizeTable)
		envy.Set("RE2GO_BITMAPS", "true")
		envy.Set("RE2GO_WARNINGS", "shadowed-rules,no-match-empty-string")
		c, err := FromEnv(Default())
		require.NoError(t, err)
		require.Equal(t, MinimizeTable, c.Minimize)
		require.True(t, c.Bitmaps)
		require.Equal(t, []string{"shadowed-rules", "no-match-empty-string"}, c.Warnings)

		envy.Set("RE2GO_WERROR", "maybe")
		_, err = FromEnv(Default())
		require.Error(t, err)
	})
}

func TestSet(t *testing.T) {
	c, err := Default().Set(1, "flags:bitmaps", "1")
	require.NoError(t, err)
	require.True(t, c.Bitmaps)

	c, err = c.Set(2, "define:YYPEEK", "s[cur]")
	require.NoError(t, err)
	require.Equal(t, "s[cur]", c.API.Peek)

	_, err = c.Set(3, "flags:nope", "1")
	require.True(t, errors.Is(err, diag.ErrFatalConfig))

	_, err = c.Set(4, "cgoto:threshold", "x")
	require.Error(t, err)

	_, err = c.Set(5, "labelprefix", "")
	require.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	require.Equal(t, "in.Fill(3)", Placeholder(Default().API.Fill, 3))
}

func TestReporterWarnings(t *testing.T) {
	c := Default()
	c.Warnings = []string{"shadowed-rules", "no-unreachable-rules"}
	r := c.Reporter(diag.Discard())
	require.True(t, r.Enabled(diag.ShadowedRule))
	require.False(t, r.Enabled(diag.UnreachableRule))
}
