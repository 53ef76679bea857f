package codegen

// Sink receives the generated code.
type Sink interface {
	WriteText(s string)
	// WriteLineInfo makes the following lines report the given source position. Line 0
	// returns to the position in the output itself.
	WriteLineInfo(file string, line int)
	// WriteBlock writes user code re-indented to depth.
	WriteBlock(depth int, text string)
}

type nullSink struct{}

func (nullSink) WriteText(string) {}
func (nullSink) WriteLineInfo(string, int) {}
func (nullSink) WriteBlock(int, string) {}
