package vm_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xirelogy/go-lox/internal/compiler"
	"github.com/xirelogy/go-lox/internal/heap"
	"github.com/xirelogy/go-lox/internal/value"
	"github.com/xirelogy/go-lox/internal/vm"
)

type runResult struct {
	out    string
	errOut string
	result vm.Result
	err    error
}

func runWith(t *testing.T, machine *vm.VM, src string) runResult {
	t.Helper()
	var out, errOut bytes.Buffer
	machine.SetOutput(&out)
	machine.SetErrorOutput(&errOut)
	res, err := machine.Interpret(src)
	return runResult{out: out.String(), errOut: errOut.String(), result: res, err: err}
}

func run(t *testing.T, src string) runResult {
	t.Helper()
	return runWith(t, vm.New(nil), src)
}

func expectOutput(t *testing.T, src string, want ...string) {
	t.Helper()
	for _, stress := range []bool{false, true} {
		machine := vm.New(heap.New(heap.Config{Stress: stress}))
		r := runWith(t, machine, src)
		if r.err != nil {
			t.Fatalf("stress=%v: unexpected error: %v", stress, r.err)
		}
		expected := strings.Join(want, "\n") + "\n"
		if r.out != expected {
			t.Fatalf("stress=%v: expected output %q, got %q", stress, expected, r.out)
		}
	}
}

func expectRuntimeError(t *testing.T, src, message string) *vm.RuntimeError {
	t.Helper()
	r := run(t, src)
	if r.result != vm.ResultRuntimeError {
		t.Fatalf("expected runtime error, got %v (err=%v)", r.result, r.err)
	}
	var rerr *vm.RuntimeError
	if !errors.As(r.err, &rerr) {
		t.Fatalf("expected *vm.RuntimeError, got %T", r.err)
	}
	if rerr.Message != message {
		t.Fatalf("expected message %q, got %q", message, rerr.Message)
	}
	if !strings.HasPrefix(r.errOut, message+"\n") {
		t.Fatalf("expected report to start with message, got %q", r.errOut)
	}
	return rerr
}

func TestBlockShadowing(t *testing.T) {
	expectOutput(t, "var a = 1; { var a = 2; print a; } print a;", "2", "1")
}

func TestBareReturnYieldsNil(t *testing.T) {
	expectOutput(t, "fun f(){return;} print f();", "nil")
}

func TestInitializerSetsField(t *testing.T) {
	src := `
class Point {
  init(x, y) {
    this.x = x;
    this.y = y;
  }
}
var p = Point(1, 2);
print p.x;
print p.y;
print p;`
	expectOutput(t, src, "1", "2", "Point instance")
}

func TestInitializerArity(t *testing.T) {
	src := `
class Point {
  init(x) { this.x = x; }
}
Point(1, 2);`
	expectRuntimeError(t, src, "Expected 1 arguments but got 2.")
	expectRuntimeError(t, "class A {} A(1);", "Expected 0 arguments but got 1.")
}

func TestStringConcatenation(t *testing.T) {
	expectOutput(t, `print "a" + "b";`, "ab")
}

func TestAddMixedOperandsIsRuntimeError(t *testing.T) {
	r := run(t, `print 1 + "b";`)
	if r.result != vm.ResultRuntimeError {
		t.Fatalf("expected runtime error, got %v", r.result)
	}
	var cerr *compiler.Error
	if errors.As(r.err, &cerr) {
		t.Fatalf("mixed addition must not be a compile error")
	}
	if !strings.Contains(r.errOut, "Operands must be two numbers or two strings.") {
		t.Fatalf("unexpected report %q", r.errOut)
	}
}

func TestClosuresInLoop(t *testing.T) {
	src := `
class Holder {}
var h = Holder();
for (var i = 0; i < 3; i = i + 1) {
  var j = i;
  fun byCopy() { print j; }
  fun shared() { print i; }
  if (i == 0) { h.a = byCopy; h.sa = shared; }
  if (i == 1) h.b = byCopy;
  if (i == 2) h.c = byCopy;
}
h.a();
h.b();
h.c();
h.sa();`
	expectOutput(t, src, "0", "1", "2", "3")
}

func TestSharedUpvalue(t *testing.T) {
	src := `
var get;
var set;
fun make() {
  var x = "before";
  fun g() { return x; }
  fun s(v) { x = v; }
  get = g;
  set = s;
}
make();
set("after");
print get();`
	expectOutput(t, src, "after")
}

func TestCounterClosure(t *testing.T) {
	src := `
fun counter() {
  var n = 0;
  fun inc() { n = n + 1; return n; }
  return inc;
}
var c = counter();
c();
c();
print c();`
	expectOutput(t, src, "3")
}

func TestInheritanceSnapshot(t *testing.T) {
	src := `
class A { hello() { return "A.hello"; } }
class B < A {}
fun late() { return "late"; }
print B().hello();`
	expectOutput(t, src, "A.hello")

	// a method added to A after B inherited is not visible through B
	machine := vm.New(nil)
	r := runWith(t, machine, `
class A { first() { return 1; } }
class B < A {}`)
	if r.err != nil {
		t.Fatalf("unexpected error: %v", r.err)
	}
	aVal, _ := machine.Global("A")
	bVal, _ := machine.Global("B")
	a, b := aVal.AsClass(), bVal.AsClass()
	late := machine.Heap().NewString("second")
	first, _ := a.Methods.Get(machine.Heap().NewString("first"))
	a.Methods.Set(late, first)
	if _, ok := b.Methods.Get(late); ok {
		t.Fatalf("subclass saw a method added after inheritance")
	}
	r = runWith(t, machine, "print B().second();")
	if r.result != vm.ResultRuntimeError || !strings.Contains(r.errOut, "Undefined property 'second'.") {
		t.Fatalf("expected undefined property, got %v %q", r.result, r.errOut)
	}
	r = runWith(t, machine, "print A().second();")
	if r.err != nil || r.out != "1\n" {
		t.Fatalf("expected superclass to see its own method, got %q %v", r.out, r.err)
	}
}

func TestSuperCalls(t *testing.T) {
	src := `
class A {
  method() { return "A method"; }
  describe() { return "A"; }
}
class B < A {
  method() { return "B method"; }
  test() { return super.method(); }
  bound() { var m = super.describe; return m(); }
}
class C < B {}
print C().test();
print C().bound();
print C().method();`
	expectOutput(t, src, "A method", "A", "B method")
}

func TestFieldsShadowMethods(t *testing.T) {
	src := `
class A {
  m() { return "method"; }
}
fun f() { return "field"; }
var a = A();
print a.m();
a.m = f;
print a.m();
var bound = A().m;
print bound();`
	expectOutput(t, src, "method", "field", "method")
}

func TestBoundMethodKeepsReceiver(t *testing.T) {
	src := `
class Greeter {
  init(name) { this.name = name; }
  greet() { return "hi " + this.name; }
}
var g = Greeter("lox").greet;
print g();
print g;`
	expectOutput(t, src, "hi lox", "<fn greet>")
}

func TestControlFlow(t *testing.T) {
	src := `
var sum = 0;
for (var i = 0; i < 5; i = i + 1) {
  if (i == 2) sum = sum + 10; else sum = sum + i;
}
print sum;
var n = 0;
while (n < 3) n = n + 1;
print n;
print nil or "default";
print false and "never";
print 1 < 2 and 2 <= 2 and 3 >= 3 and !(1 > 2);
print 1 != 2;`
	expectOutput(t, src, "18", "3", "default", "false", "true", "true")
}

func TestPrintRendering(t *testing.T) {
	src := `
fun f() {}
class K {}
print 1;
print 2.5;
print -0.5;
print 1 / 3;
print true;
print nil;
print f;
print K;
print clock;
print "raw string";`
	expectOutput(t, src,
		"1", "2.5", "-0.5", "0.3333333333333333",
		"true", "nil", "<fn f>", "K", "<native fn>", "raw string")
}

func TestStringInterningAcrossLiterals(t *testing.T) {
	machine := vm.New(nil)
	r := runWith(t, machine, `var a = "same"; var b = "sa" + "me"; print a == b;`)
	if r.out != "true\n" {
		t.Fatalf("expected interned strings to compare equal, got %q", r.out)
	}
	a, _ := machine.Global("a")
	b, _ := machine.Global("b")
	if a.Obj != b.Obj {
		t.Fatalf("expected identical string objects")
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"print -\"x\";", "Operand must be a number."},
		{"print 1 < \"x\";", "Operands must be numbers."},
		{"print 2 * nil;", "Operands must be numbers."},
		{"print undefinedName;", "Undefined variable 'undefinedName'."},
		{"missing = 1;", "Undefined variable 'missing'."},
		{"var x = 1; print x.field;", "Only instances have properties."},
		{"var x = 1; x.field = 2;", "Only instances have fields."},
		{"var x = \"s\"; x.method();", "Only instances have methods."},
		{"class A {} print A().nope;", "Undefined property 'nope'."},
		{"class A {} A().nope();", "Undefined property 'nope'."},
		{"var x = 1; x();", "Can only call functions and classes."},
		{"fun f(a) {} f();", "Expected 1 arguments but got 0."},
		{"var NotClass = 1; class B < NotClass {}", "Superclass must be a class."},
		{"fun r() { r(); } r();", "Stack overflow."},
		{"clock(1);", "Expected 0 arguments but got 1."},
	}
	for _, tt := range tests {
		expectRuntimeError(t, tt.src, tt.want)
	}
}

func TestAssignUndefinedGlobalLeavesNoBinding(t *testing.T) {
	machine := vm.New(nil)
	runWith(t, machine, "missing = 1;")
	if _, ok := machine.Global("missing"); ok {
		t.Fatalf("failed assignment created a global")
	}
}

func TestRuntimeErrorTrace(t *testing.T) {
	src := `fun inner() {
  return 1 + nil;
}
fun outer() {
  inner();
}
outer();`
	rerr := expectRuntimeError(t, src, "Operands must be two numbers or two strings.")
	want := []string{"[line 2] in inner()", "[line 5] in outer()", "[line 7] in script"}
	if len(rerr.Stack) != len(want) {
		t.Fatalf("expected %d frames, got %v", len(want), rerr.Stack)
	}
	for i, w := range want {
		if got := rerr.Stack[i].String(); got != w {
			t.Fatalf("frame %d: expected %q, got %q", i, w, got)
		}
	}
	if rerr.Frame.Function != "inner" || rerr.Frame.Line != 2 {
		t.Fatalf("unexpected innermost frame %+v", rerr.Frame)
	}
	if !strings.HasSuffix(rerr.Error(), "[line 7] in script") {
		t.Fatalf("unexpected error text %q", rerr.Error())
	}
}

func TestVMRecoversAfterRuntimeError(t *testing.T) {
	machine := vm.New(nil)
	r := runWith(t, machine, "var kept = 1; print nil + 1;")
	if r.result != vm.ResultRuntimeError {
		t.Fatalf("expected runtime error")
	}
	if machine.StackDepth() != 0 {
		t.Fatalf("stack not reset after error: %d", machine.StackDepth())
	}
	r = runWith(t, machine, "print kept + 1;")
	if r.err != nil || r.out != "2\n" {
		t.Fatalf("expected globals to survive, got %q %v", r.out, r.err)
	}
}

func TestRuntimeErrorClosesEscapedUpvalues(t *testing.T) {
	machine := vm.New(heap.New(heap.Config{Stress: true}))
	r := runWith(t, machine, `
var f;
{
  var x = 42;
  fun g() { return x; }
  f = g;
  nil + 1;
}`)
	if r.result != vm.ResultRuntimeError {
		t.Fatalf("expected runtime error, got %v", r.result)
	}
	r = runWith(t, machine, `var filler = "a" + "b"; print f();`)
	if r.err != nil || r.out != "42\n" {
		t.Fatalf("expected captured value to survive the error, got %q %v", r.out, r.err)
	}
}

// deepFrames builds a function whose frames each hold 255 locals plus a
// dozen temporaries, more than their share of the initial stack.
func deepFrames(calls int) string {
	var sb strings.Builder
	sb.WriteString("fun f(n) {\n")
	for i := 0; i < 253; i++ {
		fmt.Fprintf(&sb, "  var a%d;\n", i)
	}
	sb.WriteString("  if (n == 0) return 0;\n  return ")
	for i := 0; i < 12; i++ {
		sb.WriteString("(1 + ")
	}
	sb.WriteString("f(n - 1)")
	sb.WriteString(strings.Repeat(")", 12))
	fmt.Fprintf(&sb, ";\n}\nprint f(%d);\n", calls)
	return sb.String()
}

func TestWideFramesGrowStack(t *testing.T) {
	expectOutput(t, deepFrames(60), "720")
}

func TestWideFramesOverflow(t *testing.T) {
	expectRuntimeError(t, deepFrames(100), "Stack overflow.")
}

func TestCompileErrorReported(t *testing.T) {
	r := run(t, "print ;")
	if r.result != vm.ResultCompileError {
		t.Fatalf("expected compile error, got %v", r.result)
	}
	if r.errOut != "[line 1] Error at ';': Expect expression.\n" {
		t.Fatalf("unexpected report %q", r.errOut)
	}
	if r.out != "" {
		t.Fatalf("nothing should run after a compile error")
	}
}

func TestDefineNative(t *testing.T) {
	machine := vm.New(nil)
	machine.DefineNative("sum", -1, func(args []value.Value) (value.Value, error) {
		total := 0.0
		for _, a := range args {
			if !a.IsNumber() {
				return value.Nil(), fmt.Errorf("sum expects numbers")
			}
			total += a.Num
		}
		return value.Number(total), nil
	})
	r := runWith(t, machine, "print sum(1, 2, 3); print sum();")
	if r.err != nil || r.out != "6\n0\n" {
		t.Fatalf("unexpected result %q %v", r.out, r.err)
	}
	r = runWith(t, machine, `sum("x");`)
	var rerr *vm.RuntimeError
	if !errors.As(r.err, &rerr) || rerr.Message != "sum expects numbers" || rerr.Cause == nil {
		t.Fatalf("expected native error surfaced, got %v", r.err)
	}
}

func TestInstructionLimit(t *testing.T) {
	machine := vm.New(nil)
	machine.SetInstructionLimit(100)
	r := runWith(t, machine, "while (true) {}")
	if r.result != vm.ResultRuntimeError || !strings.Contains(r.errOut, "Instruction limit exceeded.") {
		t.Fatalf("expected instruction limit error, got %v %q", r.result, r.errOut)
	}
	machine.SetInstructionLimit(0)
	r = runWith(t, machine, "print 1;")
	if r.err != nil {
		t.Fatalf("unexpected error with limit disabled: %v", r.err)
	}
}

func TestTraceHook(t *testing.T) {
	machine := vm.New(nil)
	var ops int
	var lines []int
	machine.SetTraceHook(func(info vm.TraceInfo) {
		ops++
		lines = append(lines, info.Line)
	})
	r := runWith(t, machine, "print 1;\nprint 2;")
	if r.err != nil {
		t.Fatalf("unexpected error: %v", r.err)
	}
	// CONSTANT PRINT CONSTANT PRINT NIL RETURN
	if ops != 6 {
		t.Fatalf("expected 6 traced instructions, got %d", ops)
	}
	if lines[0] != 1 || lines[2] != 2 {
		t.Fatalf("unexpected traced lines %v", lines)
	}

	var buf bytes.Buffer
	machine.SetTraceHook(vm.NewTracer(&buf))
	runWith(t, machine, "print 1 + 2;")
	trace := buf.String()
	if !strings.Contains(trace, "OP_ADD") || !strings.Contains(trace, "[ 1 ][ 2 ]") {
		t.Fatalf("unexpected trace output:\n%s", trace)
	}
}

func TestStressCollectionProgram(t *testing.T) {
	src := `
class Node {
  init(value, next) {
    this.value = value;
    this.next = next;
  }
}
fun build(n) {
  var head = nil;
  for (var i = 0; i < n; i = i + 1) {
    head = Node("v" + "x", head);
  }
  return head;
}
var list = build(50);
var count = 0;
var s = "";
while (list != nil) {
  count = count + 1;
  s = s + "a";
  list = list.next;
}
print count;
print s == "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa";`
	expectOutput(t, src, "50", "true")
}

func TestFreeReleasesEverything(t *testing.T) {
	h := heap.New(heap.Config{})
	machine := vm.New(h)
	runWith(t, machine, `class A { m() {} } var a = A(); var s = "text";`)
	if h.Stats().Objects == 0 {
		t.Fatalf("expected live objects before free")
	}
	machine.Free()
	if got := h.Stats().Objects; got != 0 {
		t.Fatalf("expected empty heap after Free, got %d objects", got)
	}
}
