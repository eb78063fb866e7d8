package compile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdz0318/pl0/internal/diag"
	"github.com/hdz0318/pl0/internal/pcode"
	"github.com/hdz0318/pl0/internal/vm"
)

func run(t *testing.T, code pcode.Program, input ...int64) string {
	t.Helper()
	var out strings.Builder
	machine := vm.New(code, vm.WithInput(vm.NewInputFeed(input...)), vm.WithOutput(&out))
	require.NoError(t, machine.Run())
	return out.String()
}

func TestCompileReadSquareWriteSevenYieldsFortyNine(t *testing.T) {
	src := "program square; var x; begin read(x); write(x * x) end."
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	assert.Equal(t, "49\n", run(t, result.Code, 7))
}

func TestCompileSumOfOddsOneToFive(t *testing.T) {
	src := `program sumOdds;
	var i, sum;
	begin
		i := 1; sum := 0;
		while i <= 5 do
		begin
			if odd i then sum := sum + i;
			i := i + 1
		end;
		write(sum)
	end.`
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	assert.Equal(t, "9\n", run(t, result.Code))
}

func TestCompileFibonacciRecursionMatchesExpectedSequence(t *testing.T) {
	src := `program fib;
	var n;
	procedure fibonacci(k);
	begin
		if k <= 1 then write(k)
		else
		begin
			call fibonacci(k - 1);
			call fibonacci(k - 2)
		end
	end;
	begin n := 3; call fibonacci(n) end.`
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	assert.Equal(t, "1\n0\n1\n", run(t, result.Code))
}

func TestCompileNestedProcedureStaticChainWritesOuterVariable(t *testing.T) {
	src := `program nested;
	var total;
	procedure outer;
		var i;
		procedure bump;
		begin total := total + 100 end;
		begin
			i := 0;
			while i < 3 do
			begin
				call bump;
				i := i + 1
			end
		end;
	begin total := 0; call outer; write(total) end.`
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	assert.Equal(t, "300\n", run(t, result.Code))
}

func TestCompileDuplicateDeclarationReportsOneDiagnosticAndEmitsNoCode(t *testing.T) {
	src := "program p; var a, a; begin a := 1 end."
	result := Compile(src, Options{})
	require.NotEmpty(t, result.Diagnostics)
	errCount := 0
	for _, d := range result.Diagnostics {
		if d.Severity == diag.Error {
			errCount++
			assert.Equal(t, diag.SemDuplicate, d.Kind)
		}
	}
	assert.Equal(t, 1, errCount)
	assert.Nil(t, result.Code)
}

func TestCompileUndefinedCallReportsDiagnosticAndStillChecksSiblings(t *testing.T) {
	src := "program p; var x; begin call noSuch; x := 1 / 0 end."
	result := Compile(src, Options{})
	kinds := map[diag.Kind]int{}
	for _, d := range result.Diagnostics {
		kinds[d.Kind]++
	}
	assert.Equal(t, 1, kinds[diag.SemUndefined])
	assert.Equal(t, 1, kinds[diag.SemConstDivZero])
}

func TestCompileRecursiveCallFromFirstStatementOfItsOwnProcedure(t *testing.T) {
	src := `program countdown;
	procedure count(n);
	begin
		if n > 0 then
		begin
			write(n);
			call count(n - 1)
		end
	end;
	begin call count(2) end.`
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	assert.Equal(t, "2\n1\n", run(t, result.Code))
}

func TestCompileCallWithZeroArguments(t *testing.T) {
	src := `program p;
	var x;
	procedure reset;
	begin x := 0 end;
	begin x := 5; call reset; write(x) end.`
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	assert.Equal(t, "0\n", run(t, result.Code))
}

func TestCompileEmptyProgramBody(t *testing.T) {
	result := Compile("program p; begin end.", Options{})
	require.Empty(t, result.Diagnostics)
	require.NotNil(t, result.Code)
	assert.Equal(t, "", run(t, result.Code))
}

func TestCompileDeeplyNestedProcedures(t *testing.T) {
	src := `program deep;
	var v;
	procedure p1;
		procedure p2;
			procedure p3;
				procedure p4;
					procedure p5;
					begin v := v + 1 end;
					begin call p5 end;
				begin call p4 end;
			begin call p3 end;
		begin call p2 end;
	begin v := 0; call p1; write(v) end.`
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	assert.Equal(t, "1\n", run(t, result.Code))
}

func TestCompileWhileWithEmptyBody(t *testing.T) {
	src := "program p; var x; begin x := 1; while x > 10 do ; write(x) end."
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	assert.Equal(t, "1\n", run(t, result.Code))
}

func TestCompileReadPastEndOfInputIsARuntimeFault(t *testing.T) {
	src := "program p; var x, y; begin read(x); read(y); write(x) end."
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)
	machine := vm.New(result.Code, vm.WithInput(vm.NewInputFeed(1)))
	err := machine.Run()
	require.Error(t, err)
	assert.Equal(t, diag.VMInputExhausted, err.(*vm.RuntimeError).Kind)
}

func TestCompileOptimizedAndUnoptimizedProduceIdenticalOutput(t *testing.T) {
	src := `program p;
	var i, sum;
	begin
		i := 1; sum := 0;
		while i <= 10 do
		begin
			sum := sum + i * 1 + 0;
			i := i + 1
		end;
		write(sum)
	end.`
	plain := Compile(src, Options{Optimize: false})
	optimized := Compile(src, Options{Optimize: true})
	require.Empty(t, plain.Diagnostics)
	require.Empty(t, optimized.Diagnostics)
	assert.Equal(t, run(t, plain.Code), run(t, optimized.Code))
	assert.Less(t, len(optimized.Code), len(plain.Code)+1)
}

func TestCompilePCodeRoundTripsThroughDumpAndLoad(t *testing.T) {
	src := "program p; var x; begin read(x); write(x * 2) end."
	result := Compile(src, Options{})
	require.Empty(t, result.Diagnostics)

	var sb strings.Builder
	require.NoError(t, result.Code.Dump(&sb))
	reloaded, err := pcode.Load(strings.NewReader(sb.String()))
	require.NoError(t, err)

	assert.Equal(t, run(t, result.Code, 5), run(t, reloaded, 5))
}
