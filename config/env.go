package config

import (
	"strconv"
	"strings"

	"github.com/gobuffalo/envy"

	"github.com/liran-funaro/re2go/diag"
)

// FromEnv applies the RE2GO_* environment variables over c.
func FromEnv(c Config) (Config, error) {
	if t := envy.Get("RE2GO_TARGET", ""); t != "" {
		c = c.WithTarget(t)
	}
	c.Minimize = envy.Get("RE2GO_MINIMIZE", c.Minimize)
	c.LabelPrefix = envy.Get("RE2GO_LABEL_PREFIX", c.LabelPrefix)
	c.NoMatch = envy.Get("RE2GO_NO_MATCH", c.NoMatch)
	c.EmptyClass = envy.Get("RE2GO_EMPTY_CLASS", c.EmptyClass)
	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{"RE2GO_WERROR", &c.WarningsAreErrors},
		{"RE2GO_BITMAPS", &c.Bitmaps},
		{"RE2GO_NESTED_IFS", &c.NestedIfs},
		{"RE2GO_COMPUTED_GOTOS", &c.ComputedGotos},
		{"RE2GO_LINE_DIRECTIVES", &c.LineDirectives},
	} {
		v := envy.Get(b.name, "")
		if v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return c, diag.Fatalf(0, "environment %s: %v", b.name, err)
		}
		*b.dst = on
	}
	if w := envy.Get("RE2GO_WARNINGS", ""); w != "" {
		c.Warnings = append(c.Warnings, strings.Split(w, ",")...)
	}
	return c, nil
}

type setter func(c *Config, value string) error

func setString(dst func(c *Config) *string) setter {
	return func(c *Config, value string) error {
		*dst(c) = value
		return nil
	}
}

func setBool(dst func(c *Config) *bool) setter {
	return func(c *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*dst(c) = n != 0
		return nil
	}
}

func setInt(dst func(c *Config) *int) setter {
	return func(c *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

var setters = map[string]setter{
	"flags:nested-ifs":      setBool(func(c *Config) *bool { return &c.NestedIfs }),
	"flags:bitmaps":         setBool(func(c *Config) *bool { return &c.Bitmaps }),
	"flags:bitmaps-hex":     setBool(func(c *Config) *bool { return &c.BitmapHex }),
	"flags:computed-gotos":  setBool(func(c *Config) *bool { return &c.ComputedGotos }),
	"yyfill:enable":         setBool(func(c *Config) *bool { return &c.Fill }),
	"yyfill:parameter":      setBool(func(c *Config) *bool { return &c.FillParam }),
	"cgoto:threshold":       setInt(func(c *Config) *int { return &c.Thresholds.ComputedGoto }),
	"labelprefix":           setString(func(c *Config) *string { return &c.LabelPrefix }),
	"condprefix":            setString(func(c *Config) *string { return &c.CondLabel }),
	"condenumprefix":        setString(func(c *Config) *string { return &c.CondPrefix }),
	"nomatch":               setString(func(c *Config) *string { return &c.NoMatch }),
	"define:YYCTYPE":        setString(func(c *Config) *string { return &c.CharType }),
	"define:YYPEEK":         setString(func(c *Config) *string { return &c.API.Peek }),
	"define:YYSKIP":         setString(func(c *Config) *string { return &c.API.Skip }),
	"define:YYBACKUP":       setString(func(c *Config) *string { return &c.API.Backup }),
	"define:YYRESTORE":      setString(func(c *Config) *string { return &c.API.Restore }),
	"define:YYBACKUPCTX":    setString(func(c *Config) *string { return &c.API.BackupCtx }),
	"define:YYRESTORECTX":   setString(func(c *Config) *string { return &c.API.RestoreCtx }),
	"define:YYLESSTHAN":     setString(func(c *Config) *string { return &c.API.LessThan }),
	"define:YYFILL":         setString(func(c *Config) *string { return &c.API.Fill }),
	"define:YYGETCONDITION": setString(func(c *Config) *string { return &c.API.Cond }),
	"flags:empty-class": func(c *Config, value string) error {
		c.EmptyClass = value
		return nil
	},
}

// Set applies one in-block override "re2go:key = value;". The key comes without the
// "re2go:" prefix.
func (c Config) Set(line int, key, value string) (Config, error) {
	set, ok := setters[key]
	if !ok {
		return c, diag.Fatalf(line, "unrecognized configuration '%s'", key)
	}
	if c.Skeleton && strings.HasPrefix(key, "define:") && key != "define:YYCTYPE" {
		return c, nil
	}
	if err := set(&c, value); err != nil {
		return c, diag.Fatalf(line, "bad value for configuration '%s': %v", key, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
