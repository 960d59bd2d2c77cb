package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// printer renders command results in the selected format. Text rendering is
// left to each command.
type printer struct {
	format string
	w      io.Writer
	json   *json.Encoder
	yaml   *yaml.Encoder
}

func (o *options) printer() *printer {
	p := &printer{format: o.output, w: o.outW}
	switch o.output {
	case "json":
		p.json = json.NewEncoder(o.outW)
		p.json.SetIndent("", "  ")
	case "yaml":
		p.yaml = yaml.NewEncoder(o.outW)
		p.yaml.SetIndent(2)
	}
	return p
}

// print writes v as one JSON value or YAML document, or calls text.
func (p *printer) print(v any, text func(io.Writer)) error {
	switch {
	case p.json != nil:
		return p.json.Encode(v)
	case p.yaml != nil:
		return p.yaml.Encode(v)
	default:
		text(p.w)
		return nil
	}
}

// close flushes the YAML stream.
func (p *printer) close() error {
	if p.yaml != nil {
		return p.yaml.Close()
	}
	return nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
