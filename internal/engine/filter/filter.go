// Package filter provides an optional record pre-filter using expr-lang/expr.
package filter

import (
	"fmt"
	"strings"

	"Go2TraceSpectra/internal/core/model"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RecordEnv is the environment a filter expression is evaluated against.
type RecordEnv struct {
	Src     string `expr:"src"`
	Dst     string `expr:"dst"`
	SrcPort int    `expr:"src_port"`
	DstPort int    `expr:"dst_port"`
	Length  int    `expr:"length"`
	// Flags is the flag kind, e.g. "SYN-ACK", or "" for other combinations.
	Flags string `expr:"flags"`
	Syn   bool   `expr:"syn"`
	Ack   bool   `expr:"ack"`
	Fin   bool   `expr:"fin"`
	Psh   bool   `expr:"psh"`
	Rst   bool   `expr:"rst"`
}

// Filter is a compiled record predicate.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile compiles a filter expression. An empty expression yields a nil
// filter, which matches every record.
func Compile(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(RecordEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile filter '%s': %v", model.ErrConfig, source, err)
	}
	return &Filter{source: source, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match evaluates the filter against a record. Evaluation errors count as
// no match.
func (f *Filter) Match(rec *model.PacketRecord) bool {
	if f == nil {
		return true
	}
	out, err := expr.Run(f.program, recordToEnv(rec))
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

func recordToEnv(rec *model.PacketRecord) RecordEnv {
	return RecordEnv{
		Src:     rec.Source.Host,
		Dst:     rec.Destination.Host,
		SrcPort: rec.Source.Port,
		DstPort: rec.Destination.Port,
		Length:  rec.Length,
		Flags:   string(rec.Flags.Kind()),
		Syn:     rec.Flags.Has(model.FlagSYN),
		Ack:     rec.Flags.Has(model.FlagACK),
		Fin:     rec.Flags.Has(model.FlagFIN),
		Psh:     rec.Flags.Has(model.FlagPSH),
		Rst:     rec.Flags.Has(model.FlagRST),
	}
}
