// Package optimize implements the two optional passes spec.md §4.4
// describes: AST-level constant folding/simplification ahead of
// codegen, and a linear peephole pass with jump-target compaction
// after it. Both are pure, both are driven by an explicit flag, and
// both are bounded to a fixed point within 8 passes (spec.md §4.4),
// mirroring the "no phase holds mutable state across a compilation"
// rule the rest of the pipeline follows.
package optimize

import (
	"math"

	"github.com/hdz0318/pl0/internal/ast"
	"github.com/hdz0318/pl0/internal/diag"
	"github.com/hdz0318/pl0/internal/pcode"
)

// maxPasses bounds the peephole pass's fixed-point iteration (spec.md
// §4.4: "Fixed point is reached in a bounded number of passes (<= 8)").
const maxPasses = 8

// FoldProgram applies AST-level constant folding and identity
// simplification (spec.md §4.4 item 1) to prog in place.
func FoldProgram(prog *ast.Program, diags *diag.Bag) {
	foldBlock(prog.Block, diags)
}

func foldBlock(b *ast.Block, diags *diag.Bag) {
	for _, p := range b.Procs {
		foldBlock(p.Block, diags)
	}
	b.Body = foldStmt(b.Body, diags)
}

func foldStmt(s ast.Stmt, diags *diag.Bag) ast.Stmt {
	switch n := s.(type) {
	case *ast.AssignStmt:
		n.Expr = foldExpr(n.Expr, diags)
		return n
	case *ast.CallStmt:
		for i, a := range n.Args {
			n.Args[i] = foldExpr(a, diags)
		}
		return n
	case *ast.CompoundStmt:
		for i, inner := range n.Stmts {
			n.Stmts[i] = foldStmt(inner, diags)
		}
		return n
	case *ast.IfStmt:
		foldCondition(n.Cond, diags)
		n.Then = foldStmt(n.Then, diags)
		if n.Else != nil {
			n.Else = foldStmt(n.Else, diags)
		}
		return n
	case *ast.WhileStmt:
		foldCondition(n.Cond, diags)
		n.Body = foldStmt(n.Body, diags)
		return n
	case *ast.ReadStmt:
		return n
	case *ast.WriteStmt:
		for i, e := range n.Exprs {
			n.Exprs[i] = foldExpr(e, diags)
		}
		return n
	default:
		return s
	}
}

func foldCondition(c *ast.Condition, diags *diag.Bag) {
	if c.Odd {
		c.Operand = foldExpr(c.Operand, diags)
		return
	}
	c.Left = foldExpr(c.Left, diags)
	c.Right = foldExpr(c.Right, diags)
}

// foldExpr folds constant arithmetic bottom-up and simplifies the
// identities spec.md §4.4 names: x+0, x-0, x*1, x*0, x/1. Division by a
// literal zero is a compile-time SemConstDivZero, and the original
// (unfolded) expression is returned so later phases still see a
// well-formed tree.
func foldExpr(e ast.Expr, diags *diag.Bag) ast.Expr {
	switch n := e.(type) {
	case *ast.ParenExpr:
		n.Inner = foldExpr(n.Inner, diags)
		if lit, ok := n.Inner.(*ast.NumberExpr); ok {
			return lit
		}
		return n

	case *ast.UnaryExpr:
		n.Operand = foldExpr(n.Operand, diags)
		if !n.Negate {
			return n.Operand
		}
		if lit, ok := n.Operand.(*ast.NumberExpr); ok {
			return &ast.NumberExpr{Pos: n.Pos, Value: -lit.Value}
		}
		return n

	case *ast.BinaryExpr:
		n.Left = foldExpr(n.Left, diags)
		n.Right = foldExpr(n.Right, diags)

		rightLit, rightIsLit := n.Right.(*ast.NumberExpr)
		leftLit, leftIsLit := n.Left.(*ast.NumberExpr)

		if n.Op == ast.OpDiv && rightIsLit && rightLit.Value == 0 {
			diags.Errorf(diag.SemConstDivZero, n.Pos, "division by the constant 0")
			return n
		}

		if leftIsLit && rightIsLit {
			v, ok := foldArith(n.Op, leftLit.Value, rightLit.Value)
			if ok {
				return &ast.NumberExpr{Pos: n.Pos, Value: v}
			}
			return n
		}

		if rightIsLit {
			switch {
			case n.Op == ast.OpAdd && rightLit.Value == 0:
				return n.Left
			case n.Op == ast.OpSub && rightLit.Value == 0:
				return n.Left
			case n.Op == ast.OpMul && rightLit.Value == 1:
				return n.Left
			case n.Op == ast.OpMul && rightLit.Value == 0:
				return &ast.NumberExpr{Pos: n.Pos, Value: 0}
			case n.Op == ast.OpDiv && rightLit.Value == 1:
				return n.Left
			}
		}
		return n

	case *ast.IdentExpr, *ast.NumberExpr:
		return e

	default:
		return e
	}
}

// foldArith evaluates a literal arithmetic op. ok is false when the
// fold would overflow int64 (left for the VM to report at run time
// instead of silently wrapping at compile time).
func foldArith(op ast.ArithOp, a, b int64) (int64, bool) {
	switch op {
	case ast.OpAdd:
		sum := a + b
		if (b > 0 && sum < a) || (b < 0 && sum > a) {
			return 0, false
		}
		return sum, true
	case ast.OpSub:
		diff := a - b
		if (b < 0 && diff < a) || (b > 0 && diff > a) {
			return 0, false
		}
		return diff, true
	case ast.OpMul:
		if a == 0 || b == 0 {
			return 0, true
		}
		if b == -1 && a == math.MinInt64 {
			return 0, false
		}
		product := a * b
		if product/b != a {
			return 0, false
		}
		return product, true
	case ast.OpDiv:
		if b == 0 {
			return 0, false
		}
		if b == -1 && a == math.MinInt64 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}

// --- Peephole (post-codegen) -------------------------------------------

// Peephole applies the local rewrites spec.md §4.4 item 2 names —
// unreachable-after-unconditional-jump removal, jump-to-jump collapse,
// dead push/pop removal — repeatedly until a pass makes no change or
// maxPasses is reached. Every pass that changes anything compacts the
// program and rewrites every jump target through the resulting
// old->new address map.
func Peephole(prog pcode.Program) pcode.Program {
	for i := 0; i < maxPasses; i++ {
		next, changed := peepholePass(prog)
		prog = next
		if !changed {
			break
		}
	}
	return prog
}

func isJumpFamily(op pcode.Op) bool {
	return op == pcode.JMP || op == pcode.JPC || op == pcode.CAL
}

// peepholePass removes dead code in one linear scan, producing a
// shorter program plus a compaction of every jump/call target so
// invariant vi (spec.md §8: "no target is the placeholder sentinel",
// implicitly: every target stays valid) holds in the result.
func peepholePass(prog pcode.Program) (pcode.Program, bool) {
	keep := make([]bool, len(prog))
	for i := range prog {
		keep[i] = true
	}

	// Unreachable-after-unconditional-jump: an instruction immediately
	// following a JMP is dead unless some other instruction jumps to it.
	targeted := make(map[int]bool)
	for _, instr := range prog {
		if isJumpFamily(instr.Op) {
			targeted[instr.A] = true
		}
	}
	for i := 0; i < len(prog)-1; i++ {
		if prog[i].Op == pcode.JMP && !targeted[i+1] {
			keep[i+1] = false
		}
	}

	changed := false

	// Dead push/pop: a LIT/LOD pushes exactly one value; an immediately
	// following INT 0,-1 discards exactly one value with no intervening
	// use. Both are removed, provided neither is itself a jump target.
	for i := 0; i < len(prog)-1; i++ {
		if !keep[i] || !keep[i+1] {
			continue
		}
		if (prog[i].Op == pcode.LIT || prog[i].Op == pcode.LOD) &&
			prog[i+1].Op == pcode.INT && prog[i+1].A == -1 &&
			!targeted[i] && !targeted[i+1] {
			keep[i] = false
			keep[i+1] = false
			changed = true
		}
	}

	// Jump-to-jump collapse: JMP A where code[A] is itself `JMP A2`
	// retargets straight to A2.
	collapsed := make(pcode.Program, len(prog))
	copy(collapsed, prog)
	for i, instr := range collapsed {
		if instr.Op != pcode.JMP && instr.Op != pcode.JPC {
			continue
		}
		target := instr.A
		seen := map[int]bool{}
		for target >= 0 && target < len(collapsed) && collapsed[target].Op == pcode.JMP && !seen[target] {
			seen[target] = true
			next := collapsed[target].A
			if next == target {
				break
			}
			target = next
		}
		if target != instr.A {
			collapsed[i].A = target
			changed = true
		}
	}

	if !anyFalse(keep) && !changed {
		return prog, false
	}

	return compact(collapsed, keep), true
}

func anyFalse(keep []bool) bool {
	for _, k := range keep {
		if !k {
			return true
		}
	}
	return false
}

// compact drops every instruction with keep[i] == false and rewrites
// all JMP/JPC/CAL targets through the resulting old->new index map.
func compact(prog pcode.Program, keep []bool) pcode.Program {
	remap := make([]int, len(prog))
	out := make(pcode.Program, 0, len(prog))
	for i, instr := range prog {
		if !keep[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(out)
		out = append(out, instr)
	}
	for i := range out {
		if isJumpFamily(out[i].Op) {
			target := out[i].A
			if target >= 0 && target < len(remap) && remap[target] != -1 {
				out[i].A = remap[target]
			}
		}
	}
	return out
}
