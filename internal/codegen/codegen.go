// Package codegen translates an annotated AST into linear P-code
// (spec.md §4.5, §4.6). It follows the teacher's own backpatching idiom
// (nilan/compiler/ast_compiler.go: emitPlaceholderJump/patchJump) but
// targets PL/0's fixed (op, L, A) instruction shape instead of nilan's
// variable-width byte stream, and replaces nilan's expression/Pratt
// precedence climbing with the straightforward post-order walk a
// recursive-descent AST already encodes.
//
// Parameter-passing convention (spec.md §4.6 leaves two equivalent
// layouts to choose from): the caller pushes arguments left-to-right,
// then emits CAL. At CAL time B becomes T+1, so the k pushed arguments
// sit at S[B-k .. B-1], just below the about-to-be-written frame
// header. The callee's prologue, right after its INT reserves the full
// frame, relocates each argument into its proper parameter slot with a
// LOD (reading the still-intact argument below B) followed by a STO
// (writing it to S[B+3+i]); the caller then emits INT 0 (-k)
// immediately after CAL to pop the now-redundant argument region back
// off, restoring T to its value from just before argument evaluation
// (spec.md §8 invariant 4).
package codegen

import (
	"github.com/hdz0318/pl0/internal/ast"
	"github.com/hdz0318/pl0/internal/diag"
	"github.com/hdz0318/pl0/internal/pcode"
	"github.com/hdz0318/pl0/internal/symbols"
)

// maxFrameSize bounds a single block's local+parameter+header count;
// exceeding it is the rare GenAddressOverflow case spec.md §7 names.
const maxFrameSize = 1 << 20

// Generator walks an annotated *ast.Program and produces a pcode.Program.
type Generator struct {
	prog  pcode.Program
	diags *diag.Bag
}

// Generate compiles prog to P-code, reporting codegen-time diagnostics
// (GenAddressOverflow, and an undeclared-entry guard for the documented
// forward-sibling-call restriction, spec.md §4.3) into diags.
func Generate(prog *ast.Program, diags *diag.Bag) pcode.Program {
	g := &Generator{diags: diags}
	g.compileBlock(prog.Block, nil, 1)
	return g.prog
}

func (g *Generator) emit(op pcode.Op, l, a int) int {
	index := len(g.prog)
	g.prog = append(g.prog, pcode.Instruction{Op: op, L: l, A: a})
	return index
}

// emitPlaceholder emits a jump-family instruction with a 0 operand,
// returning its index so patch can later fill in the real target.
func (g *Generator) emitPlaceholder(op pcode.Op) int {
	return g.emit(op, 0, 0)
}

func (g *Generator) patch(pos int) {
	g.prog[pos].A = len(g.prog)
}

// compileBlock implements the six-step block schema from spec.md §4.5.
// sym is the symbols.Symbol of the procedure this block belongs to, or
// nil for the program's own root block; level is this block's nesting
// level (root = 1, matching spec.md §4.3).
func (g *Generator) compileBlock(b *ast.Block, sym *symbols.Symbol, level int) {
	entryJump := g.emitPlaceholder(pcode.JMP)
	if sym != nil {
		sym.Entry = entryJump
	}

	for _, p := range b.Procs {
		g.compileBlock(p.Block, p.Sym, level+1)
	}

	g.patch(entryJump)

	arity := 0
	if sym != nil {
		arity = sym.Arity
	}
	frameSize := 3 + arity + len(b.Vars)
	if frameSize > maxFrameSize {
		g.diags.Errorf(diag.GenAddressOverflow, b.Pos, "block has too many locals/parameters (%d slots)", frameSize)
	}
	g.emit(pcode.INT, 0, frameSize)

	for i := 0; i < arity; i++ {
		g.emit(pcode.LOD, 0, -arity+i)
		g.emit(pcode.STO, 0, 3+i)
	}

	g.compileStmt(b.Body, level)
	g.emit(pcode.OPR, 0, int(pcode.OprReturn))
}

func (g *Generator) compileStmt(s ast.Stmt, level int) {
	switch n := s.(type) {
	case *ast.AssignStmt:
		g.compileExpr(n.Expr, level)
		if n.TargetSym != nil {
			g.emit(pcode.STO, level-n.TargetSym.Level, n.TargetSym.Offset)
		}

	case *ast.CallStmt:
		for _, arg := range n.Args {
			g.compileExpr(arg, level)
		}
		if n.CalleeSym == nil {
			break
		}
		if symbols.EntryPending(n.CalleeSym) {
			g.diags.Errorf(diag.SemUndefined, n.Pos,
				"'%s' cannot be called here: forward calls to a not-yet-declared sibling procedure are unsupported", n.Callee)
			break
		}
		g.emit(pcode.CAL, level-n.CalleeSym.Level, n.CalleeSym.Entry)
		g.emit(pcode.INT, 0, -len(n.Args))

	case *ast.CompoundStmt:
		for _, inner := range n.Stmts {
			g.compileStmt(inner, level)
		}

	case *ast.IfStmt:
		g.compileCondition(n.Cond, level)
		jpc := g.emitPlaceholder(pcode.JPC)
		g.compileStmt(n.Then, level)
		if n.Else != nil {
			jmp := g.emitPlaceholder(pcode.JMP)
			g.patch(jpc)
			g.compileStmt(n.Else, level)
			g.patch(jmp)
		} else {
			g.patch(jpc)
		}

	case *ast.WhileStmt:
		top := len(g.prog)
		g.compileCondition(n.Cond, level)
		jpc := g.emitPlaceholder(pcode.JPC)
		g.compileStmt(n.Body, level)
		g.emit(pcode.JMP, 0, top)
		g.patch(jpc)

	case *ast.ReadStmt:
		for _, sym := range n.TargetSyms {
			g.emit(pcode.RED, 0, 0)
			if sym != nil {
				g.emit(pcode.STO, level-sym.Level, sym.Offset)
			}
		}

	case *ast.WriteStmt:
		for _, e := range n.Exprs {
			g.compileExpr(e, level)
			g.emit(pcode.WRT, 0, 0)
		}

	case *ast.EmptyStmt:
		// compiles to nothing
	}
}

func (g *Generator) compileCondition(c *ast.Condition, level int) {
	if c.Odd {
		g.compileExpr(c.Operand, level)
		g.emit(pcode.OPR, 0, int(pcode.OprOdd))
		return
	}
	g.compileExpr(c.Left, level)
	g.compileExpr(c.Right, level)
	g.emit(pcode.OPR, 0, relOpCode(c.Op))
}

func relOpCode(op ast.RelOp) int {
	switch op {
	case ast.RelEQ:
		return int(pcode.OprEq)
	case ast.RelNEQ:
		return int(pcode.OprNeq)
	case ast.RelLT:
		return int(pcode.OprLt)
	case ast.RelLE:
		return int(pcode.OprLe)
	case ast.RelGT:
		return int(pcode.OprGt)
	case ast.RelGE:
		return int(pcode.OprGe)
	}
	return int(pcode.OprEq)
}

// compileExpr compiles operands before operators (post-order), per
// spec.md §4.5.
func (g *Generator) compileExpr(e ast.Expr, level int) {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		g.compileExpr(n.Left, level)
		g.compileExpr(n.Right, level)
		g.emit(pcode.OPR, 0, arithOpCode(n.Op))

	case *ast.UnaryExpr:
		if n.Negate {
			// A leading '-' compiles as `0 - operand` (spec.md §4.5),
			// not the OPR unary-negate subcode.
			g.emit(pcode.LIT, 0, 0)
			g.compileExpr(n.Operand, level)
			g.emit(pcode.OPR, 0, int(pcode.OprSub))
		} else {
			g.compileExpr(n.Operand, level)
		}

	case *ast.ParenExpr:
		g.compileExpr(n.Inner, level)

	case *ast.IdentExpr:
		if n.Sym == nil {
			g.emit(pcode.LIT, 0, 0)
			return
		}
		switch n.Sym.Kind {
		case symbols.KindConst:
			g.emit(pcode.LIT, 0, int(n.Sym.Value))
		case symbols.KindVar:
			g.emit(pcode.LOD, level-n.Sym.Level, n.Sym.Offset)
		default:
			g.emit(pcode.LIT, 0, 0)
		}

	case *ast.NumberExpr:
		g.emit(pcode.LIT, 0, int(n.Value))
	}
}

func arithOpCode(op ast.ArithOp) int {
	switch op {
	case ast.OpAdd:
		return int(pcode.OprAdd)
	case ast.OpSub:
		return int(pcode.OprSub)
	case ast.OpMul:
		return int(pcode.OprMul)
	case ast.OpDiv:
		return int(pcode.OprDiv)
	}
	return int(pcode.OprAdd)
}
