package codegen

import (
	_ "embed"
	"regexp"

	"github.com/liran-funaro/re2go/config"
	"github.com/liran-funaro/re2go/diag"
)

//go:embed input_template.go
var inputTextFull string

var inputCode = regexp.MustCompile(`(?s)^.*?// \[INPUT PLACEHOLDER]\n\n(.*)$`).FindStringSubmatch(inputTextFull)[1]

// GenerateInput writes the Input type implementing the default Go input API.
func GenerateInput(out Sink, cfg config.Config) error {
	if cfg.Target != config.TargetGo {
		return diag.Fatalf(0, "the input runtime is only available for the %s target", config.TargetGo)
	}
	out.WriteText(inputCode)
	return nil
}
