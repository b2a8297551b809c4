package expr

import (
	"strings"
	"testing"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

func TestEvaluateNumber(t *testing.T) {
	vars := domain.VariableSet{
		"inventory":        30,
		"max_level":        200,
		"avg_daily_demand": 10,
		"lead_time":        7,
		"safety_stock":     20,
	}

	tests := []struct {
		name string
		src  string
		want float64
	}{
		{"literal grouping", "2 + (3*4)", 14},
		{"precedence", "2 + 3 * 4 - 1", 13},
		{"division", "10 / 4", 2.5},
		{"power right associative", "2 ** 3 ** 2", 512},
		{"unary minus below power", "-2 ** 2", -4},
		{"unary plus", "+5 - -5", 10},
		{"exponent literal", "1.5e2", 150},
		{"leading dot literal", ".5 * 4", 2},
		{"functions", "sqrt(16) + abs(-3)", 7},
		{"min variadic", "min(3, 1, 2)", 1},
		{"max nested", "max(1, min(9, 5))", 5},
		{"variables", "max_level - inventory", 170},
		{"assignment form keeps right side", "order_quantity = max_level - inventory", 170},
		{"non identifier left side dropped", "order quantity (units) = max_level - inventory", 170},
		{"multi statement", "ROP = avg_daily_demand * lead_time + safety_stock; order_quantity = ROP - inventory", 60},
		{"trailing separator", "max_level;", 200},
		{"whitespace", "  max_level\t-\n inventory ", 170},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EvaluateNumber(tc.src, vars)
			if err != nil {
				t.Fatalf("EvaluateNumber(%q) error = %v", tc.src, err)
			}
			if got != tc.want {
				t.Errorf("EvaluateNumber(%q) = %v, want %v", tc.src, got, tc.want)
			}
		})
	}
}

func TestEvaluateBool(t *testing.T) {
	vars := domain.VariableSet{"inventory": 30, "min_level": 50, "max_level": 200}

	tests := []struct {
		src  string
		want bool
	}{
		{"inventory < min_level", true},
		{"inventory >= min_level", false},
		{"inventory <= 30", true},
		{"inventory > 30", false},
		{"inventory == 30", true},
		{"inventory != 30", false},
		{"inventory < min_level and min_level < max_level", true},
		{"inventory > min_level or max_level > 100", true},
		{"not (inventory > min_level)", true},
		{"not not (inventory == 30)", true},
		{"(inventory < min_level) == (max_level > 0)", true},
	}

	for _, tc := range tests {
		got, err := EvaluateBool(tc.src, vars)
		if err != nil {
			t.Fatalf("EvaluateBool(%q) error = %v", tc.src, err)
		}
		if got != tc.want {
			t.Errorf("EvaluateBool(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestEvaluate_Rejects(t *testing.T) {
	vars := domain.VariableSet{"inventory": 30}

	tests := []struct {
		name string
		src  string
		kind domain.ErrorKind
	}{
		{"python import", "__import__('os')", domain.ErrKindEvaluation},
		{"attribute access", "os.system(1)", domain.ErrKindEvaluation},
		{"unknown call", "open(1)", domain.ErrKindEvaluation},
		{"unknown identifier", "missing + 1", domain.ErrKindMissingVariable},
		{"case sensitive", "Inventory + 1", domain.ErrKindMissingVariable},
		{"division by zero", "inventory / (inventory - 30)", domain.ErrKindEvaluation},
		{"dangling operator", "1 +", domain.ErrKindEvaluation},
		{"unbalanced paren", "(1 + 2", domain.ErrKindEvaluation},
		{"second assignment", "a = b = 3", domain.ErrKindEvaluation},
		{"sqrt negative", "sqrt(-1)", domain.ErrKindEvaluation},
		{"wrong arity", "sqrt(1, 2)", domain.ErrKindEvaluation},
		{"chained comparison", "1 < 2 < 3", domain.ErrKindEvaluation},
		{"brackets", "[1, 2]", domain.ErrKindEvaluation},
		{"string literal", "\"abc\"", domain.ErrKindEvaluation},
		{"empty", "   ", domain.ErrKindEvaluation},
		{"empty right side", "qty = ", domain.ErrKindEvaluation},
		{"malformed number", "1.2.3", domain.ErrKindEvaluation},
		{"number glued to name", "2inventory", domain.ErrKindEvaluation},
		{"arithmetic on boolean", "(inventory > 1) + 1", domain.ErrKindEvaluation},
		{"keyword as operand", "and + 1", domain.ErrKindEvaluation},
		{"overflow", "10 ** 400", domain.ErrKindEvaluation},
		{"nesting limit", strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100), domain.ErrKindEvaluation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Evaluate(tc.src, vars)
			if err == nil {
				t.Fatalf("Evaluate(%q) = %v, want error", tc.src, v)
			}
			if got := domain.KindOf(err); got != tc.kind {
				t.Errorf("KindOf(%v) = %q, want %q", err, got, tc.kind)
			}
		})
	}
}

func TestEvaluate_ResultTypeMismatch(t *testing.T) {
	vars := domain.VariableSet{"inventory": 30, "min_level": 50}

	if _, err := EvaluateNumber("inventory < min_level", vars); err == nil {
		t.Error("EvaluateNumber on a comparison should fail")
	}
	if _, err := EvaluateBool("inventory + min_level", vars); err == nil {
		t.Error("EvaluateBool on arithmetic should fail")
	}
}

func TestEvaluate_ErrorPosition(t *testing.T) {
	_, err := Evaluate("qty = inventory + ?", domain.VariableSet{"inventory": 1})
	evalErr, ok := err.(*domain.EvaluationError)
	if !ok {
		t.Fatalf("error type = %T, want *domain.EvaluationError", err)
	}
	if evalErr.Pos != 18 {
		t.Errorf("Pos = %d, want 18", evalErr.Pos)
	}
}

func TestProgram_ScopeIsLocal(t *testing.T) {
	vars := domain.VariableSet{"inventory": 10, "demand": 4}
	p, err := Compile("ROP = demand * 5; qty = ROP - inventory")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if got := p.Bindings(); len(got) != 2 || got[0] != "ROP" || got[1] != "qty" {
		t.Errorf("Bindings() = %v, want [ROP qty]", got)
	}

	v, scope, err := p.Run(vars)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f, _ := v.Float(); f != 10 {
		t.Errorf("Run() = %v, want 10", v)
	}
	if rop, _ := scope["ROP"].Float(); rop != 20 {
		t.Errorf("scope[ROP] = %v, want 20", scope["ROP"])
	}
	if _, leaked := vars["ROP"]; leaked {
		t.Error("Run() wrote a binding into the caller's variable set")
	}

	ok, err := EvaluateBoolIn("inventory < ROP", vars, scope)
	if err != nil {
		t.Fatalf("EvaluateBoolIn() error = %v", err)
	}
	if !ok {
		t.Error("EvaluateBoolIn(inventory < ROP) = false, want true")
	}
}

func TestProgram_ConcurrentRuns(t *testing.T) {
	p, err := Compile("x * 2")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	done := make(chan float64, 50)
	for i := 0; i < 50; i++ {
		go func(i int) {
			v, _, err := p.Run(domain.VariableSet{"x": float64(i)})
			if err != nil {
				done <- -1
				return
			}
			f, _ := v.Float()
			done <- f - float64(2*i)
		}(i)
	}
	for i := 0; i < 50; i++ {
		if diff := <-done; diff != 0 {
			t.Fatalf("concurrent Run produced a wrong result (diff %v)", diff)
		}
	}
}

func TestProgram_References(t *testing.T) {
	p, err := Compile("inventory < ROP and not (max(a, b) > 3)")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	tests := []struct {
		names []string
		want  bool
	}{
		{[]string{"ROP"}, true},
		{[]string{"b"}, true},
		{[]string{"EOQ", "order_quantity"}, false},
		{nil, false},
	}
	for _, tc := range tests {
		if got := p.References(tc.names...); got != tc.want {
			t.Errorf("References(%v) = %v, want %v", tc.names, got, tc.want)
		}
	}
}
