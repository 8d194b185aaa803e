package vt

import "fmt"

// Op is one structured operation produced by the Parser.
//
// The concrete types are Print, Execute, CSI, OSC, ESC, DCSHook, DCSPut and
// DCSUnhook. Interpreter.Apply is the single consumer.
type Op interface {
	isOp()
}

// Print places one decoded scalar value at the cursor.
type Print struct {
	Rune rune
}

// Execute is a C0 control code.
type Execute struct {
	Byte byte
}

// CSI is a control sequence: ESC [ params intermediates final.
//
// Omitted parameters are reported as 0. A leading private marker such as '?'
// is kept as the first intermediate byte; of the intermediates proper only
// the last one survives.
type CSI struct {
	Params        []int
	Intermediates []byte
	Final         byte
}

// OSC is an operating system command split on ';'.
type OSC struct {
	Params         [][]byte
	BellTerminated bool
}

// ESC is an escape sequence that is not a CSI, OSC or DCS introducer.
type ESC struct {
	Intermediates []byte
	Final         byte
}

// DCSHook opens a device control string.
type DCSHook struct {
	Params        []int
	Intermediates []byte
	Final         byte
}

// DCSPut is one data byte of a device control string.
type DCSPut struct {
	Byte byte
}

// DCSUnhook closes a device control string.
type DCSUnhook struct{}

func (Print) isOp()     {}
func (Execute) isOp()   {}
func (CSI) isOp()       {}
func (OSC) isOp()       {}
func (ESC) isOp()       {}
func (DCSHook) isOp()   {}
func (DCSPut) isOp()    {}
func (DCSUnhook) isOp() {}

// Private returns the private marker of the sequence, or 0.
func (c CSI) Private() byte {
	if len(c.Intermediates) > 0 && c.Intermediates[0] >= '<' && c.Intermediates[0] <= '?' {
		return c.Intermediates[0]
	}

	return 0
}

// Param returns the parameter at index, or def when it is missing or zero.
func (c CSI) Param(index, def int) int {
	if index >= 0 && index < len(c.Params) && c.Params[index] > 0 {
		return c.Params[index]
	}

	return def
}

// String renders the sequence for debug logging.
func (c CSI) String() string {
	return fmt.Sprintf("CSI %s%v %q", c.Intermediates, c.Params, c.Final)
}
