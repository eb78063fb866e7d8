// Package pcode defines PL/0's object code: a flat array of fixed-shape
// instructions (spec.md §5), each an opcode plus an (L, A) operand
// pair, together with a disassembler and a persisted text format for
// dumping/loading a compiled program independent of a live compilation.
// The disassembler is grounded on the teacher's own
// ASTCompiler.DiassembleBytecode (nilan/compiler/ast_compiler.go),
// generalized from nilan's variable-width binary instruction stream to
// PL/0's fixed three-field instruction shape.
package pcode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Op is one of PL/0's ten opcodes (spec.md §5).
type Op int

const (
	LIT Op = iota
	OPR
	LOD
	STO
	CAL
	INT
	JMP
	JPC
	RED
	WRT
)

var opNames = map[Op]string{
	LIT: "LIT", OPR: "OPR", LOD: "LOD", STO: "STO", CAL: "CAL",
	INT: "INT", JMP: "JMP", JPC: "JPC", RED: "RED", WRT: "WRT",
}

var namesToOp = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// OPR subcodes (spec.md §5): the A operand of an OPR instruction.
const (
	OprReturn Op = iota
	OprNeg
	OprAdd
	OprSub
	OprMul
	OprDiv
	OprOdd
	OprEq
	OprNeq
	OprLt
	OprGe
	OprGt
	OprLe
)

var oprNames = map[int]string{
	0: "ret", 1: "neg", 2: "add", 3: "sub", 4: "mul", 5: "div",
	6: "odd", 7: "eq", 8: "neq", 9: "lt", 10: "ge", 11: "gt", 12: "le",
}

// Instruction is one (Op, L, A) triple. L is a static-link level
// difference (LOD/STO/CAL) or unused (0) for every other opcode; A is
// an opcode-dependent immediate: a literal value (LIT), a frame offset
// (LOD/STO), an instruction index (CAL/JMP/JPC), a frame size (INT), or
// an OPR subcode.
type Instruction struct {
	Op Op
	L  int
	A  int
}

func (i Instruction) String() string {
	if i.Op == OPR {
		if name, ok := oprNames[i.A]; ok {
			return fmt.Sprintf("OPR  0, %d (%s)", i.A, name)
		}
	}
	return fmt.Sprintf("%-4s %d, %d", i.Op, i.L, i.A)
}

// Program is the full linear instruction array codegen produces and
// the VM executes, addressed by instruction index ("P" in spec.md §6).
type Program []Instruction

// Disassemble renders the program as one human-readable line per
// instruction, each prefixed with its instruction index.
func (p Program) Disassemble() string {
	var b strings.Builder
	for i, instr := range p {
		fmt.Fprintf(&b, "%4d  %s\n", i, instr)
	}
	return b.String()
}

// Dump writes p in the persisted text format, one instruction per line
// as "<index>\t<op>\t<L>\t<A>", so a compiled program can be saved and
// later reloaded byte-for-byte without recompiling (spec.md §6 "emit
// bytecode" mode).
func (p Program) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, instr := range p {
		if _, err := fmt.Fprintf(bw, "%d\t%s\t%d\t%d\n", i, instr.Op, instr.L, instr.A); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load parses the text format Dump writes back into a Program. It
// verifies that instruction indices are contiguous starting at 0, the
// invariant Dump always produces, so a hand-edited or truncated file is
// rejected rather than silently misinterpreted.
func Load(r io.Reader) (Program, error) {
	var prog Program
	scanner := bufio.NewScanner(r)
	wantIndex := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return nil, fmt.Errorf("pcode: malformed line %q: expected 4 tab-separated fields", line)
		}
		index, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("pcode: malformed instruction index %q: %w", fields[0], err)
		}
		if index != wantIndex {
			return nil, fmt.Errorf("pcode: out-of-order instruction index %d, expected %d", index, wantIndex)
		}
		op, ok := namesToOp[fields[1]]
		if !ok {
			return nil, fmt.Errorf("pcode: unknown opcode %q", fields[1])
		}
		l, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("pcode: malformed L operand %q: %w", fields[2], err)
		}
		a, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("pcode: malformed A operand %q: %w", fields[3], err)
		}
		prog = append(prog, Instruction{Op: op, L: l, A: a})
		wantIndex++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return prog, nil
}
