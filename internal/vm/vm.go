// Package vm implements the PL/0 stack machine (spec.md §4.6): three
// registers (P, B, T) over one linear integer stack holding both
// activation-record headers and values, ten opcodes, and a resumable
// single-step API so an external debugger can drive execution one
// instruction at a time (spec.md §5, §9 "VM state must be capturable
// between steps").
//
// The construction style — a functional-options constructor building
// an Instance/VM aggregate — is grounded on the teacher pack's own
// stack-machine example, db47h/ngaro's vm.Instance (DataSize,
// AddressSize, Input, Output options); the switch-dispatched fetch
// loop below is the same shape as ngaro's vm.Instance.Run, adapted
// from ngaro's single fixed-width Cell tape to PL/0's three-field
// (op, L, A) instruction and its separate frame-header convention.
package vm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/hdz0318/pl0/internal/diag"
	"github.com/hdz0318/pl0/internal/pcode"
)

// Status is the outcome of one Step call (spec.md §6 step API).
type Status int

const (
	Continue Status = iota
	Halted
	NeedInput
	Errored
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Halted:
		return "halted"
	case NeedInput:
		return "need-input"
	case Errored:
		return "errored"
	}
	return "?"
}

// RuntimeError is a halting VM fault, tagged with one of the runtime
// kinds from the closed diagnostic taxonomy (spec.md §7).
type RuntimeError struct {
	Kind    diag.Kind
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// DefaultMaxStack is the recommended stack-depth ceiling (spec.md §4.6:
// "recommended >= 4096 words").
const DefaultMaxStack = 4096

// InputFeed is a pull-based queue of integers for the RED opcode. Next
// reports false when no value is currently available; Push appends a
// value that becomes available to a future Next call, which is how a
// cooperative debugger resumes a VM parked in NeedInput (spec.md §5).
type InputFeed struct {
	values []int64
	pos    int
}

// NewInputFeed creates a feed pre-loaded with values, in order.
func NewInputFeed(values ...int64) *InputFeed {
	return &InputFeed{values: values}
}

// Next pops the next queued value, if any.
func (f *InputFeed) Next() (int64, bool) {
	if f.pos >= len(f.values) {
		return 0, false
	}
	v := f.values[f.pos]
	f.pos++
	return v, true
}

// Push appends a value to the end of the feed.
func (f *InputFeed) Push(v int64) {
	f.values = append(f.values, v)
}

// ReadInputFeed parses whitespace-separated integers from r into an
// InputFeed, per spec.md §6 ("Integers separated by any whitespace").
func ReadInputFeed(r io.Reader) (*InputFeed, error) {
	var values []int64
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		var v int64
		if _, err := fmt.Sscanf(sc.Text(), "%d", &v); err != nil {
			return nil, fmt.Errorf("vm: malformed input integer %q: %w", sc.Text(), err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &InputFeed{values: values}, nil
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithMaxStack overrides DefaultMaxStack.
func WithMaxStack(n int) Option {
	return func(vm *VM) { vm.stack = make([]int64, n) }
}

// WithInput attaches the feed RED reads from. Without this option the
// VM starts with an empty feed, so any RED immediately reports
// NeedInput.
func WithInput(in *InputFeed) Option {
	return func(vm *VM) { vm.input = in }
}

// WithOutput sets the writer WRT appends lines to. Defaults to
// io.Discard.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.output = w }
}

// WithLogger attaches a logrus.Logger used for per-step tracing at
// Debug level. Defaults to a logger with output discarded.
func WithLogger(l *logrus.Logger) Option {
	return func(vm *VM) { vm.log = l }
}

// VM is the whole resumable machine state: registers, stack, halted
// flag, and I/O. It holds no hidden globals, so Snapshot can report a
// complete, independently inspectable picture between Step calls.
type VM struct {
	code pcode.Program

	p int // program counter: next instruction index
	b int // base pointer: current frame's base
	t int // stack pointer: index of the top occupied slot, -1 when empty

	stack []int64

	input  *InputFeed
	output io.Writer
	log    *logrus.Logger

	status Status
	err    *RuntimeError
	lastOp string

	steps int64
}

// New creates a VM ready to execute code from P=0, B=0, T=-1.
func New(code pcode.Program, opts ...Option) *VM {
	vm := &VM{
		code:   code,
		p:      0,
		b:      0,
		t:      -1,
		input:  NewInputFeed(),
		output: io.Discard,
		log:    newDiscardLogger(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.stack == nil {
		vm.stack = make([]int64, DefaultMaxStack)
	}
	return vm
}

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Snapshot is the debugger-facing view of VM state (spec.md §6).
type Snapshot struct {
	PC     int
	BP     int
	SP     int
	Stack  []int64
	LastOp string
}

// Snapshot returns a copy of the current registers and live stack
// region (indices 0..SP], the part of the stack actually in use.
func (vm *VM) Snapshot() Snapshot {
	live := make([]int64, vm.t+1)
	copy(live, vm.stack[:vm.t+1])
	return Snapshot{PC: vm.p, BP: vm.b, SP: vm.t, Stack: live, LastOp: vm.lastOp}
}

// Halted reports whether the VM has stopped (successfully or on
// error) and will no longer make progress on Step.
func (vm *VM) Halted() bool {
	return vm.status == Halted || vm.status == Errored
}

// Err returns the fault that halted the VM, or nil.
func (vm *VM) Err() *RuntimeError {
	return vm.err
}

// PushInput feeds one more integer to a VM parked on NeedInput,
// letting a caller resume it with the next Step call.
func (vm *VM) PushInput(v int64) {
	vm.input.Push(v)
}

func (vm *VM) fail(kind diag.Kind, format string, args ...any) Status {
	vm.err = &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
	vm.status = Errored
	return Errored
}

// base walks the static chain l times from the current frame.
func (vm *VM) base(l int) int {
	b := vm.b
	for i := 0; i < l; i++ {
		b = int(vm.stack[b])
	}
	return b
}

func (vm *VM) push(v int64) bool {
	vm.t++
	if vm.t >= len(vm.stack) {
		vm.fail(diag.VMStackOverflow, "data stack exceeded %d words", len(vm.stack))
		return false
	}
	vm.stack[vm.t] = v
	return true
}

func (vm *VM) pop() int64 {
	v := vm.stack[vm.t]
	vm.t--
	return v
}

// Run drives Step to completion: until Halted or Errored. A NeedInput
// that the input feed cannot satisfy is treated as permanent exhaustion
// (spec.md §7 VMInputExhausted), matching the batch pl0vm CLI's
// non-interactive use; an interactive/debugger caller should call Step
// directly instead and push more input on NeedInput.
func (vm *VM) Run() error {
	for {
		status, err := vm.Step()
		switch status {
		case Continue:
			continue
		case Halted:
			return nil
		case Errored:
			return err
		case NeedInput:
			vm.fail(diag.VMInputExhausted, "read past end of input")
			return vm.err
		}
	}
}

// Step executes exactly one instruction and reports the resulting
// status. Calling Step again after Halted or Errored is a no-op that
// repeats the same terminal status.
func (vm *VM) Step() (Status, error) {
	if vm.Halted() {
		return vm.status, vm.err
	}

	if vm.p < 0 || vm.p >= len(vm.code) {
		vm.fail(diag.VMCodeFault, "instruction fetch at %d is out of bounds (code length %d)", vm.p, len(vm.code))
		return vm.status, vm.err
	}

	instr := vm.code[vm.p]
	vm.lastOp = instr.String()
	vm.steps++
	vm.log.WithFields(logrus.Fields{
		"pc": vm.p, "b": vm.b, "t": vm.t, "instr": vm.lastOp, "step": vm.steps,
	}).Debug("vm: step")

	switch instr.Op {
	case pcode.LIT:
		if !vm.push(int64(instr.A)) {
			return vm.status, vm.err
		}
		vm.p++

	case pcode.LOD:
		if !vm.push(vm.stack[vm.base(instr.L)+instr.A]) {
			return vm.status, vm.err
		}
		vm.p++

	case pcode.STO:
		v := vm.pop()
		vm.stack[vm.base(instr.L)+instr.A] = v
		vm.p++

	case pcode.CAL:
		sl := int64(vm.base(instr.L))
		dl := int64(vm.b)
		ra := int64(vm.p + 1)
		newBase := vm.t + 1
		if newBase+2 >= len(vm.stack) {
			vm.fail(diag.VMStackOverflow, "data stack exceeded %d words", len(vm.stack))
			return vm.status, vm.err
		}
		vm.stack[newBase] = sl
		vm.stack[newBase+1] = dl
		vm.stack[newBase+2] = ra
		vm.b = newBase
		vm.p = instr.A

	case pcode.INT:
		vm.t += instr.A
		if vm.t >= len(vm.stack) {
			vm.fail(diag.VMStackOverflow, "data stack exceeded %d words", len(vm.stack))
			return vm.status, vm.err
		}
		vm.p++

	case pcode.JMP:
		vm.p = instr.A

	case pcode.JPC:
		v := vm.pop()
		if v == 0 {
			vm.p = instr.A
		} else {
			vm.p++
		}

	case pcode.OPR:
		if !vm.opr(instr.A) {
			return vm.status, vm.err
		}

	case pcode.RED:
		v, ok := vm.input.Next()
		if !ok {
			vm.status = NeedInput
			return NeedInput, nil
		}
		if !vm.push(v) {
			return vm.status, vm.err
		}
		vm.p++

	case pcode.WRT:
		v := vm.pop()
		fmt.Fprintln(vm.output, v)
		vm.p++

	default:
		vm.fail(diag.VMCodeFault, "unknown opcode %v at instruction %d", instr.Op, vm.p)
		return vm.status, vm.err
	}

	if vm.status == Halted {
		return Halted, nil
	}
	return Continue, nil
}

// opr executes one OPR subcode. Returns false if it raised a fault.
func (vm *VM) opr(sub int) bool {
	switch pcode.Op(sub) {
	case pcode.OprReturn:
		// A return from the root block's own frame (B==0: no CAL ever
		// set it to anything else) has no real caller to resume — its
		// saved SL/DL/RA slots were never written by a CAL, so returning
		// through them would jump into garbage. This is the program's
		// natural halt.
		if vm.b == 0 {
			vm.status = Halted
			return true
		}
		vm.t = vm.b - 1
		vm.p = int(vm.stack[vm.b+2])
		vm.b = int(vm.stack[vm.b+1])
		return true

	case pcode.OprNeg:
		top := vm.stack[vm.t]
		if top == minInt64 {
			vm.fail(diag.VMArithError, "negation overflow on %d", top)
			return false
		}
		vm.stack[vm.t] = -top
		vm.p++
		return true

	case pcode.OprAdd:
		b, a := vm.pop(), vm.pop()
		sum, ok := addOvf(a, b)
		if !ok {
			vm.fail(diag.VMArithError, "addition overflow: %d + %d", a, b)
			return false
		}
		if !vm.push(sum) {
			return false
		}
		vm.p++
		return true

	case pcode.OprSub:
		b, a := vm.pop(), vm.pop()
		diff, ok := subOvf(a, b)
		if !ok {
			vm.fail(diag.VMArithError, "subtraction overflow: %d - %d", a, b)
			return false
		}
		if !vm.push(diff) {
			return false
		}
		vm.p++
		return true

	case pcode.OprMul:
		b, a := vm.pop(), vm.pop()
		prod, ok := mulOvf(a, b)
		if !ok {
			vm.fail(diag.VMArithError, "multiplication overflow: %d * %d", a, b)
			return false
		}
		if !vm.push(prod) {
			return false
		}
		vm.p++
		return true

	case pcode.OprDiv:
		b, a := vm.pop(), vm.pop()
		if b == 0 {
			vm.fail(diag.VMDivByZero, "division by zero: %d / 0", a)
			return false
		}
		if a == minInt64 && b == -1 {
			vm.fail(diag.VMArithError, "division overflow: %d / %d", a, b)
			return false
		}
		if !vm.push(a / b) {
			return false
		}
		vm.p++
		return true

	case pcode.OprOdd:
		v := vm.stack[vm.t]
		if v&1 != 0 {
			vm.stack[vm.t] = 1
		} else {
			vm.stack[vm.t] = 0
		}
		vm.p++
		return true

	case pcode.OprEq, pcode.OprNeq, pcode.OprLt, pcode.OprGe, pcode.OprGt, pcode.OprLe:
		b, a := vm.pop(), vm.pop()
		var result bool
		switch pcode.Op(sub) {
		case pcode.OprEq:
			result = a == b
		case pcode.OprNeq:
			result = a != b
		case pcode.OprLt:
			result = a < b
		case pcode.OprGe:
			result = a >= b
		case pcode.OprGt:
			result = a > b
		case pcode.OprLe:
			result = a <= b
		}
		v := int64(0)
		if result {
			v = 1
		}
		if !vm.push(v) {
			return false
		}
		vm.p++
		return true
	}

	vm.fail(diag.VMCodeFault, "unknown OPR subcode %d", sub)
	return false
}

const minInt64 = -1 << 63

func addOvf(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func subOvf(a, b int64) (int64, bool) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, false
	}
	return diff, true
}

func mulOvf(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a == -1 && b == minInt64 {
		return 0, false
	}
	if b == -1 && a == minInt64 {
		return 0, false
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}
