package handlers

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nugget/chatur/internal/intent"
)

// Math evaluates spoken arithmetic.
type Math struct {
	handles
}

// NewMath creates the math handler.
func NewMath() *Math {
	return &Math{handles: handles(intent.Math)}
}

// Handle implements [Handler].
func (h *Math) Handle(_ context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	expr := strings.TrimSpace(in.Param(intent.ParamExpression))
	if expr == "" {
		return say(lang, "What would you like me to calculate?", "क्या गणना करूं?"), nil
	}

	v, err := Evaluate(expr)
	if err != nil {
		return "", fail(ErrInvalidInput, "calculate that", err)
	}
	result := FormatNumber(v)
	return say(lang, "The answer is "+result, "उत्तर है "+result), nil
}

// spokenOperators are applied in order as whole words, so "exactly",
// "surplus" and "model" are left for the word filter to drop.
// Multi-word phrases come before the single words they contain.
var spokenOperators = wordReplacements(
	"multiplied by", "*",
	"divided by", "/",
	"to the power of", "^",
	"power of", "^",
	"plus", "+",
	"minus", "-",
	"times", "*",
	"into", "*",
	"over", "/",
	"mod", "%",
	"x", "*",
)

type replacement struct {
	pattern *regexp.Regexp
	to      string
}

func wordReplacements(pairs ...string) []replacement {
	out := make([]replacement, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, replacement{
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(pairs[i]) + `\b`),
			to:      " " + pairs[i+1] + " ",
		})
	}
	return out
}

var (
	// mathFuncs may appear by name; every other word is dropped.
	mathFuncs = map[string]func(args []float64) (float64, error){
		"sqrt": unary(math.Sqrt),
		"log":  unary(math.Log),
		"sin":  unary(math.Sin),
		"cos":  unary(math.Cos),
		"tan":  unary(math.Tan),
		"abs":  unary(math.Abs),
		"pow": func(args []float64) (float64, error) {
			if len(args) != 2 {
				return 0, errors.New("pow takes two arguments")
			}
			return math.Pow(args[0], args[1]), nil
		},
	}
	mathConsts = map[string]float64{"pi": math.Pi, "e": math.E}

	wordPattern    = regexp.MustCompile(`[a-z]+`)
	strayPattern   = regexp.MustCompile(`[^0-9a-z.+\-*/%^() ]`)
	powerPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*\^\s*(\d+(?:\.\d+)?)`)
	// "3x4" has no word boundary around the x.
	adjacentTimes  = regexp.MustCompile(`([\d)])\s*x\s*([\d(])`)
	errDivideZero  = errors.New("division by zero")
	errUnsupported = errors.New("unsupported expression")
)

func unary(f func(float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, errors.New("function takes one argument")
		}
		return f(args[0]), nil
	}
}

// Evaluate computes a spoken or written arithmetic expression such as
// "what is 12 times 4 plus 2" or "2^10". Words that are neither
// operators, functions nor constants are ignored.
func Evaluate(spoken string) (float64, error) {
	expr, err := normalizeExpression(spoken)
	if err != nil {
		return 0, err
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", expr, err)
	}
	v, err := eval(node)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("result of %q is not a finite number", expr)
	}
	return v, nil
}

func normalizeExpression(spoken string) (string, error) {
	s := strings.ToLower(spoken)
	for _, op := range spokenOperators {
		s = op.pattern.ReplaceAllString(s, op.to)
	}
	// Matches consume their operands, so "2x3x4" needs a second pass.
	for adjacentTimes.MatchString(s) {
		s = adjacentTimes.ReplaceAllString(s, "$1 * $2")
	}
	s = strings.ReplaceAll(s, "**", "^")
	s = strings.ReplaceAll(s, ",", "")
	s = strayPattern.ReplaceAllString(s, " ")
	s = wordPattern.ReplaceAllStringFunc(s, func(w string) string {
		if _, ok := mathFuncs[w]; ok {
			return w
		}
		if _, ok := mathConsts[w]; ok {
			return w
		}
		return " "
	})

	// Go has no power operator. Rewrite number^number as pow(a, b) so
	// precedence is not left to the XOR token; any ^ that survives is
	// rejected by eval.
	s = powerPattern.ReplaceAllString(s, "pow($1, $2)")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", errors.New("no expression")
	}
	return s, nil
}

func eval(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, errUnsupported
		}
		return strconv.ParseFloat(n.Value, 64)

	case *ast.Ident:
		if v, ok := mathConsts[n.Name]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unknown name %q", n.Name)

	case *ast.ParenExpr:
		return eval(n.X)

	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		}
		return 0, errUnsupported

	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, errDivideZero
			}
			return x / y, nil
		case token.REM:
			if y == 0 {
				return 0, errDivideZero
			}
			return math.Mod(x, y), nil
		}
		return 0, errUnsupported

	case *ast.CallExpr:
		ident, ok := n.Fun.(*ast.Ident)
		if !ok {
			return 0, errUnsupported
		}
		f, ok := mathFuncs[ident.Name]
		if !ok {
			return 0, fmt.Errorf("unknown function %q", ident.Name)
		}
		args := make([]float64, 0, len(n.Args))
		for _, a := range n.Args {
			v, err := eval(a)
			if err != nil {
				return 0, err
			}
			args = append(args, v)
		}
		return f(args)
	}
	return 0, errUnsupported
}

// FormatNumber prints whole numbers without a fraction and everything
// else with at most four decimals.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
