package scripted_debugger

import (
	"fmt"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
)

type breakpointKind int

const (
	sourceBreakpoint breakpointKind = iota
	functionBreakpoint
	addressBreakpoint
	watchpoint
	catchpoint
)

func (k breakpointKind) stopReason() constants.StoppedReasonType {
	switch k {
	case functionBreakpoint:
		return constants.FunctionBreakpointStopped
	case watchpoint:
		return constants.DataBreakpointStopped
	case catchpoint:
		return constants.ExceptionStopped
	}
	return constants.BreakpointStopped
}

// breakpoint 场景后端中的断点
type breakpoint struct {
	d          *ScriptedDebugger
	kind       breakpointKind
	number     int
	path       string
	line       int
	function   string
	address    uint64
	expression string
	access     debugger.AccessType
	filter     string
	condition  string
	enabled    bool
	pending    bool
	hits       int
}

func (b *breakpoint) Number() int {
	return b.number
}

func (b *breakpoint) Pending() bool {
	b.d.mutex.Lock()
	defer b.d.mutex.Unlock()
	return b.pending
}

func (b *breakpoint) Location() (debugger.Location, bool) {
	switch b.kind {
	case sourceBreakpoint:
		return debugger.Location{Path: b.path, Line: b.line}, true
	case addressBreakpoint:
		return debugger.Location{PC: b.address}, true
	case functionBreakpoint:
		b.d.mutex.Lock()
		defer b.d.mutex.Unlock()
		for _, frames := range b.d.stacks {
			for _, f := range frames {
				if f.Function == b.function {
					return debugger.Location{Path: f.Path, Line: f.Line, PC: f.PC}, true
				}
			}
		}
	}
	return debugger.Location{}, false
}

func (b *breakpoint) Condition() string {
	return b.condition
}

func (b *breakpoint) SetCondition(condition string) error {
	b.condition = condition
	return nil
}

func (b *breakpoint) Enabled() bool {
	return b.enabled
}

func (b *breakpoint) SetEnabled(enabled bool) error {
	b.enabled = enabled
	return nil
}

func (b *breakpoint) HitCount() int {
	b.d.mutex.Lock()
	defer b.d.mutex.Unlock()
	return b.hits
}

func (b *breakpoint) matches(at *LocationSpec) bool {
	switch b.kind {
	case sourceBreakpoint:
		return at.Path == b.path && at.Line == b.line
	case functionBreakpoint:
		return at.Function == b.function
	case addressBreakpoint:
		return at.Address == b.address
	case watchpoint:
		return at.Expression == b.expression
	case catchpoint:
		return at.Exception == b.filter
	}
	return false
}

func (d *ScriptedDebugger) insert(bp *breakpoint) debugger.Breakpoint {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	bp.d = d
	bp.number = d.nextBreakpoint
	bp.enabled = true
	d.nextBreakpoint++
	d.created++
	d.breakpoints[bp.number] = bp
	return bp
}

func (d *ScriptedDebugger) CreateSourceBreakpoint(path string, line int) (debugger.Breakpoint, error) {
	if line <= 0 {
		return nil, fmt.Errorf("invalid line %d", line)
	}
	d.mutex.Lock()
	pending := !d.knownSource(path)
	d.mutex.Unlock()
	return d.insert(&breakpoint{kind: sourceBreakpoint, path: path, line: line, pending: pending}), nil
}

func (d *ScriptedDebugger) CreateFunctionBreakpoint(name string) (debugger.Breakpoint, error) {
	if name == "" {
		return nil, fmt.Errorf("function name required")
	}
	d.mutex.Lock()
	pending := !d.knownFunction(name)
	d.mutex.Unlock()
	return d.insert(&breakpoint{kind: functionBreakpoint, function: name, pending: pending}), nil
}

func (d *ScriptedDebugger) CreateAddressBreakpoint(address uint64) (debugger.Breakpoint, error) {
	if address == 0 {
		return nil, fmt.Errorf("Cannot insert breakpoint at address 0x0")
	}
	return d.insert(&breakpoint{kind: addressBreakpoint, address: address}), nil
}

func (d *ScriptedDebugger) CreateWatchpoint(expression string, access debugger.AccessType) (debugger.Breakpoint, error) {
	if _, err := d.Evaluate(nil, expression); err != nil {
		return nil, err
	}
	return d.insert(&breakpoint{kind: watchpoint, expression: expression, access: access}), nil
}

func (d *ScriptedDebugger) CreateCatchpoint(filter string) (debugger.Breakpoint, error) {
	switch filter {
	case "throw", "catch", "rethrow":
	default:
		return nil, fmt.Errorf("unknown exception filter %s", filter)
	}
	return d.insert(&breakpoint{kind: catchpoint, filter: filter}), nil
}

func (d *ScriptedDebugger) DeleteBreakpoint(bp debugger.Breakpoint) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.breakpoints[bp.Number()]; !ok {
		return fmt.Errorf("No breakpoint number %d.", bp.Number())
	}
	delete(d.breakpoints, bp.Number())
	d.deleted++
	return nil
}
