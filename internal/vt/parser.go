package vt

import (
	"bytes"

	"github.com/charmbracelet/x/ansi"
	ansiparser "github.com/charmbracelet/x/ansi/parser"
)

const (
	maxParams     = ansiparser.MaxParamsSize
	maxParamValue = ansiparser.MaxParam
	maxOSCBytes   = 64 * 1024
)

// Parser turns a VT/xterm output stream into Ops. The DEC-compatible state
// machine is charmbracelet/x/ansi's; Parser converts its dispatches into the
// Op variants the Interpreter applies.
//
// Partial sequences and partial UTF-8 are kept between calls, so a stream may
// be fed in arbitrary chunks. It is not safe for concurrent use.
type Parser struct {
	sm   *ansi.Parser
	emit func(Op)

	// last is the byte being fed; it tells a BEL-terminated OSC apart.
	last byte
}

// NewParser returns a parser in the ground state.
func NewParser() *Parser {
	p := &Parser{sm: ansi.NewParser()}

	p.sm.SetParamsSize(maxParams)
	p.sm.SetDataSize(maxOSCBytes)
	p.sm.SetHandler(ansi.Handler{
		Print:     p.print,
		Execute:   p.execute,
		HandleCsi: p.handleCsi,
		HandleEsc: p.handleEsc,
		HandleDcs: p.handleDcs,
		HandleOsc: p.handleOsc,
	})

	return p
}

// Advance feeds data through the state machine, calling emit for every
// completed operation in stream order.
func (p *Parser) Advance(data []byte, emit func(Op)) {
	p.emit = emit
	defer func() { p.emit = nil }()

	for _, b := range data {
		p.last = b
		p.sm.Advance(b)
	}
}

func (p *Parser) print(r rune) {
	p.emit(Print{Rune: r})
}

func (p *Parser) execute(b byte) {
	p.emit(Execute{Byte: b})
}

func (p *Parser) handleCsi(cmd ansi.Cmd, params ansi.Params) {
	p.emit(CSI{Params: flattenParams(params), Intermediates: intermediates(cmd), Final: cmd.Final()})
}

func (p *Parser) handleEsc(cmd ansi.Cmd) {
	p.emit(ESC{Intermediates: intermediates(cmd), Final: cmd.Final()})
}

// handleDcs receives a completed device control string and replays it as
// hook, one put per data byte, and unhook.
func (p *Parser) handleDcs(cmd ansi.Cmd, params ansi.Params, data []byte) {
	p.emit(DCSHook{Params: flattenParams(params), Intermediates: intermediates(cmd), Final: cmd.Final()})

	for _, b := range data {
		p.emit(DCSPut{Byte: b})
	}

	p.emit(DCSUnhook{})
}

func (p *Parser) handleOsc(_ int, data []byte) {
	parts := bytes.Split(data, []byte{';'})

	params := make([][]byte, len(parts))
	for i, part := range parts {
		params[i] = append([]byte(nil), part...)
	}

	p.emit(OSC{Params: params, BellTerminated: p.last == 0x07})
}

// flattenParams copies params out of the state machine's buffer. Missing
// values become 0, sub-parameters are flattened, and values saturate at
// maxParamValue.
func flattenParams(params ansi.Params) []int {
	if len(params) == 0 {
		return nil
	}

	out := make([]int, len(params))
	for i, param := range params {
		out[i] = min(param.Param(0), maxParamValue)
	}

	return out
}

// intermediates returns the private marker followed by the intermediate
// byte, omitting whichever is absent.
func intermediates(cmd ansi.Cmd) []byte {
	var out []byte

	if b := cmd.Prefix(); b != 0 {
		out = append(out, b)
	}

	if b := cmd.Intermediate(); b != 0 {
		out = append(out, b)
	}

	return out
}
