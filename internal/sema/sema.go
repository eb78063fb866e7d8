// Package sema implements PL/0's semantic analysis pass (spec.md §3,
// §4.3): a single pre-order walk of the AST that pushes a symbols.Scope
// per Block, declares consts/vars/procs into it, resolves every name
// reference against the enclosing symbols.Forest, and attaches the
// resolved *symbols.Symbol directly onto the AST nodes that need it at
// codegen time (AssignStmt.TargetSym, CallStmt.CalleeSym,
// ReadStmt.TargetSyms, IdentExpr.Sym, Procedure.Sym). Like the teacher's
// own semantic checks, failures never abort the walk: every check
// reports into the shared diag.Bag and the analyzer keeps going so one
// compilation surfaces as many findings as possible.
package sema

import (
	"github.com/hdz0318/pl0/internal/ast"
	"github.com/hdz0318/pl0/internal/diag"
	"github.com/hdz0318/pl0/internal/symbols"
)

// Result is everything codegen needs beyond the AST itself.
type Result struct {
	Forest *symbols.Forest
}

// Analyzer walks a Program and annotates it in place.
type Analyzer struct {
	forest *symbols.Forest
	diags  *diag.Bag

	// used tracks every KindVar symbol read anywhere in the program, by
	// identity rather than by name+block, so a variable read only from
	// inside a nested procedure still counts as used at its declaring
	// block.
	used map[*symbols.Symbol]bool
}

// Analyze runs semantic analysis over prog, reporting into diags, and
// returns the populated symbols.Forest.
func Analyze(prog *ast.Program, diags *diag.Bag) *Result {
	a := &Analyzer{forest: symbols.NewForest(), diags: diags, used: map[*symbols.Symbol]bool{}}
	a.block(prog.Block, symbols.Universe)
	return &Result{Forest: a.forest}
}

// block declares prog's own consts/vars/procs into a freshly pushed
// scope (child of parent) and recurses into its body and procedures.
// Procedures are declared into the block's own scope before their
// bodies are analyzed, so a procedure's name resolves inside its own
// body and inside the body of every sibling in the same block, whether
// that sibling comes earlier or later. Codegen then rejects a call to
// a sibling declared after the caller (symbols.EntryPending), so among
// siblings only self-recursion and calls to earlier siblings compile.
func (a *Analyzer) block(b *ast.Block, parent int) {
	scope := a.forest.Push(parent)
	b.Scope = scope

	for _, c := range b.Consts {
		sym := &symbols.Symbol{Name: c.Name, Kind: symbols.KindConst, Level: a.forest.Scope(scope).Level, Value: c.Value}
		if !a.forest.Declare(scope, sym) {
			a.diags.Errorf(diag.SemDuplicate, c.Pos, "'%s' is already declared in this scope", c.Name)
		}
	}

	offset := 3
	for _, v := range b.Vars {
		sym := &symbols.Symbol{Name: v.Name, Kind: symbols.KindVar, Level: a.forest.Scope(scope).Level, Offset: offset}
		if !a.forest.Declare(scope, sym) {
			a.diags.Errorf(diag.SemDuplicate, v.Pos, "'%s' is already declared in this scope", v.Name)
			continue
		}
		offset++
	}

	for _, p := range b.Procs {
		sym := &symbols.Symbol{
			Name:   p.Name,
			Kind:   symbols.KindProc,
			Level:  a.forest.Scope(scope).Level,
			Entry:  symbols.EntrySentinel,
			Arity:  len(p.Params),
			Params: p.Params,
		}
		p.Sym = sym
		if !a.forest.Declare(scope, sym) {
			a.diags.Errorf(diag.SemDuplicate, p.Pos, "'%s' is already declared in this scope", p.Name)
		}
	}

	for _, p := range b.Procs {
		a.procBlock(p, scope)
	}

	a.stmt(b.Body, scope)

	for _, v := range b.Vars {
		sym, _, _ := a.forest.Resolve(scope, v.Name)
		if sym != nil && !a.used[sym] {
			a.diags.Warnf(diag.WarnUnusedVariable, v.Pos, "variable '%s' is never read", v.Name)
		}
	}
}

// procBlock analyzes one procedure: its parameters are declared as
// ordinary KindVar symbols at offsets 3..3+arity-1 (spec.md §4.6 frame
// layout), ahead of the procedure's own local variables.
func (a *Analyzer) procBlock(p *ast.Procedure, parent int) {
	scope := a.forest.Push(parent)
	p.Block.Scope = scope
	level := a.forest.Scope(scope).Level

	for i, name := range p.Params {
		sym := &symbols.Symbol{Name: name, Kind: symbols.KindVar, Level: level, Offset: 3 + i}
		if !a.forest.Declare(scope, sym) {
			a.diags.Errorf(diag.SemDuplicate, p.Pos, "parameter '%s' is already declared", name)
		}
	}

	b := p.Block
	for _, c := range b.Consts {
		sym := &symbols.Symbol{Name: c.Name, Kind: symbols.KindConst, Level: level, Value: c.Value}
		if !a.forest.Declare(scope, sym) {
			a.diags.Errorf(diag.SemDuplicate, c.Pos, "'%s' is already declared in this scope", c.Name)
		}
	}

	offset := 3 + len(p.Params)
	for _, v := range b.Vars {
		sym := &symbols.Symbol{Name: v.Name, Kind: symbols.KindVar, Level: level, Offset: offset}
		if !a.forest.Declare(scope, sym) {
			a.diags.Errorf(diag.SemDuplicate, v.Pos, "'%s' is already declared in this scope", v.Name)
			continue
		}
		offset++
	}

	for _, np := range b.Procs {
		sym := &symbols.Symbol{
			Name:   np.Name,
			Kind:   symbols.KindProc,
			Level:  level,
			Entry:  symbols.EntrySentinel,
			Arity:  len(np.Params),
			Params: np.Params,
		}
		np.Sym = sym
		if !a.forest.Declare(scope, sym) {
			a.diags.Errorf(diag.SemDuplicate, np.Pos, "'%s' is already declared in this scope", np.Name)
		}
	}

	for _, np := range b.Procs {
		a.procBlock(np, scope)
	}

	a.stmt(b.Body, scope)

	// Parameters are exempt from the unused-variable warning: an unused
	// parameter is a normal part of a procedure's call contract.
	for _, v := range b.Vars {
		sym, _, _ := a.forest.Resolve(scope, v.Name)
		if sym != nil && !a.used[sym] {
			a.diags.Warnf(diag.WarnUnusedVariable, v.Pos, "variable '%s' is never read", v.Name)
		}
	}
}

func (a *Analyzer) stmt(s ast.Stmt, scope int) {
	switch n := s.(type) {
	case *ast.AssignStmt:
		sym, _, ok := a.forest.Resolve(scope, n.Target)
		if !ok {
			a.diags.Errorf(diag.SemUndefined, n.Pos, "'%s' is not declared", n.Target)
		} else if sym.Kind != symbols.KindVar {
			a.diags.Errorf(diag.SemAssignToConstant, n.Pos, "cannot assign to %s '%s'", sym.Kind, n.Target)
		} else {
			n.TargetSym = sym
		}
		a.expr(n.Expr, scope)

	case *ast.CallStmt:
		sym, _, ok := a.forest.Resolve(scope, n.Callee)
		if !ok {
			a.diags.Errorf(diag.SemUndefined, n.Pos, "'%s' is not declared", n.Callee)
		} else if sym.Kind != symbols.KindProc {
			a.diags.Errorf(diag.SemWrongKind, n.Pos, "'%s' is a %s, not a procedure", n.Callee, sym.Kind)
		} else {
			if sym.Arity != len(n.Args) {
				a.diags.Errorf(diag.SemArityMismatch, n.Pos, "'%s' expects %d argument(s), got %d", n.Callee, sym.Arity, len(n.Args))
			}
			n.CalleeSym = sym
		}
		for _, e := range n.Args {
			a.expr(e, scope)
		}

	case *ast.CompoundStmt:
		for _, inner := range n.Stmts {
			a.stmt(inner, scope)
		}

	case *ast.IfStmt:
		a.condition(n.Cond, scope)
		a.stmt(n.Then, scope)
		if n.Else != nil {
			a.stmt(n.Else, scope)
		}

	case *ast.WhileStmt:
		a.condition(n.Cond, scope)
		a.stmt(n.Body, scope)

	case *ast.ReadStmt:
		n.TargetSyms = make([]*symbols.Symbol, len(n.Targets))
		for i, name := range n.Targets {
			sym, _, ok := a.forest.Resolve(scope, name)
			if !ok {
				a.diags.Errorf(diag.SemUndefined, n.Pos, "'%s' is not declared", name)
				continue
			}
			if sym.Kind != symbols.KindVar {
				a.diags.Errorf(diag.SemWrongKind, n.Pos, "cannot read into %s '%s'", sym.Kind, name)
				continue
			}
			n.TargetSyms[i] = sym
			a.used[sym] = true
		}

	case *ast.WriteStmt:
		for _, e := range n.Exprs {
			a.expr(e, scope)
		}

	case *ast.EmptyStmt:
		// nothing to check

	default:
		a.diags.Errorf(diag.SemUndefined, s.Position(), "internal error: unhandled statement %T", s)
	}
}

func (a *Analyzer) condition(c *ast.Condition, scope int) {
	if c.Odd {
		a.expr(c.Operand, scope)
		return
	}
	a.expr(c.Left, scope)
	a.expr(c.Right, scope)
}

func (a *Analyzer) expr(e ast.Expr, scope int) {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		a.expr(n.Left, scope)
		a.expr(n.Right, scope)
		if n.Op == ast.OpDiv {
			if lit, ok := n.Right.(*ast.NumberExpr); ok && lit.Value == 0 {
				a.diags.Errorf(diag.SemConstDivZero, n.Pos, "division by the constant 0")
			}
		}

	case *ast.UnaryExpr:
		a.expr(n.Operand, scope)

	case *ast.ParenExpr:
		a.expr(n.Inner, scope)

	case *ast.IdentExpr:
		sym, _, ok := a.forest.Resolve(scope, n.Name)
		if !ok {
			a.diags.Errorf(diag.SemUndefined, n.Pos, "'%s' is not declared", n.Name)
			return
		}
		if sym.Kind == symbols.KindProc {
			a.diags.Errorf(diag.SemWrongKind, n.Pos, "'%s' is a procedure, not a value", n.Name)
			return
		}
		n.Sym = sym
		if sym.Kind == symbols.KindVar {
			a.used[sym] = true
		}

	case *ast.NumberExpr:
		// nothing to resolve

	default:
		a.diags.Errorf(diag.SemUndefined, e.Position(), "internal error: unhandled expression %T", e)
	}
}
