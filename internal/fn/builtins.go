package fn

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/cellgrid/cellgrid/internal/value"
)

// Builtins returns a registry populated with the standard function set.
// The clock feeds NOW and TODAY, the rng feeds RAND; inject
// deterministic ones in tests.
func Builtins(clock Clock, rng RNG) *Registry {
	r := NewRegistry()
	reg := func(name string, spec Spec) {
		if err := r.Register(name, spec); err != nil {
			panic(err)
		}
	}

	reg("SUM", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnSum})
	reg("AVERAGE", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnAverage})
	reg("COUNT", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnCount})
	reg("COUNTA", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnCountA})
	reg("MAX", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnMax})
	reg("MIN", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnMin})

	reg("IF", Spec{MinArgs: 2, MaxArgs: 3, Impl: fnIf})
	reg("AND", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnAnd})
	reg("OR", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnOr})
	reg("NOT", Spec{MinArgs: 1, MaxArgs: 1, Impl: fnNot})

	reg("CONCATENATE", Spec{MinArgs: 1, MaxArgs: -1, Impl: fnConcatenate})
	reg("LEN", Spec{MinArgs: 1, MaxArgs: 1, Impl: fnLen})
	reg("UPPER", Spec{MinArgs: 1, MaxArgs: 1, Impl: textFunc(strings.ToUpper)})
	reg("LOWER", Spec{MinArgs: 1, MaxArgs: 1, Impl: textFunc(strings.ToLower)})
	reg("TRIM", Spec{MinArgs: 1, MaxArgs: 1, Impl: textFunc(strings.TrimSpace)})

	reg("ABS", Spec{MinArgs: 1, MaxArgs: 1, Impl: numFunc(math.Abs)})
	reg("ROUND", Spec{MinArgs: 2, MaxArgs: 2, Impl: fnRound})
	reg("SQRT", Spec{MinArgs: 1, MaxArgs: 1, Impl: fnSqrt})
	reg("POWER", Spec{MinArgs: 2, MaxArgs: 2, Impl: fnPower})
	reg("MOD", Spec{MinArgs: 2, MaxArgs: 2, Impl: fnMod})
	reg("PI", Spec{MinArgs: 0, MaxArgs: 0, Impl: func([]Arg) value.Value {
		return value.Number(math.Pi)
	}})

	reg("ISNUMBER", Spec{MinArgs: 1, MaxArgs: 1, Impl: fnIsNumber})
	reg("ISTEXT", Spec{MinArgs: 1, MaxArgs: 1, Impl: fnIsText})
	reg("ISBLANK", Spec{MinArgs: 1, MaxArgs: 1, Impl: fnIsBlank})
	reg("ISERROR", Spec{MinArgs: 1, MaxArgs: 1, Impl: fnIsError})

	reg("NOW", Spec{MinArgs: 0, MaxArgs: 0, Volatile: true, Impl: func([]Arg) value.Value {
		return value.NewText(clock.Now().Format("2006-01-02 15:04:05"))
	}})
	reg("TODAY", Spec{MinArgs: 0, MaxArgs: 0, Volatile: true, Impl: func([]Arg) value.Value {
		return value.NewText(clock.Now().Format("2006-01-02"))
	}})
	reg("RAND", Spec{MinArgs: 0, MaxArgs: 0, Volatile: true, Impl: func([]Arg) value.Value {
		return value.Number(rng.Float64())
	}})

	return r
}

// scalar unwraps a scalar argument. A range where a single value is
// expected is a #VALUE! error.
func scalar(a Arg) (value.Value, value.Value) {
	if a.IsRange() {
		return nil, value.NewError(value.TagValue)
	}
	return a.Value, nil
}

// eachNumber feeds every numeric element of args to f in order. Text,
// booleans and empty cells are skipped; the first error element aborts
// the walk and is returned.
func eachNumber(args []Arg, f func(float64)) value.Value {
	visit := func(v value.Value) value.Value {
		if tag, ok := value.IsError(v); ok {
			return value.NewError(tag)
		}
		if n, ok := v.(value.Number); ok {
			f(float64(n))
		}
		return nil
	}
	for _, a := range args {
		if a.IsRange() {
			for v := range a.Range {
				if errv := visit(v); errv != nil {
					return errv
				}
			}
			continue
		}
		if errv := visit(a.Value); errv != nil {
			return errv
		}
	}
	return nil
}

func fnSum(args []Arg) value.Value {
	total := 0.0
	if errv := eachNumber(args, func(f float64) { total += f }); errv != nil {
		return errv
	}
	return value.Number(total)
}

func fnAverage(args []Arg) value.Value {
	total, count := 0.0, 0
	if errv := eachNumber(args, func(f float64) { total += f; count++ }); errv != nil {
		return errv
	}
	if count == 0 {
		return value.NewError(value.TagDiv0)
	}
	return value.Number(total / float64(count))
}

// fnCount counts numeric elements. Unlike the other aggregates it does
// not propagate error elements; they simply do not count.
func fnCount(args []Arg) value.Value {
	count := 0
	tally := func(v value.Value) {
		if _, ok := v.(value.Number); ok {
			count++
		}
	}
	for _, a := range args {
		if a.IsRange() {
			for v := range a.Range {
				tally(v)
			}
			continue
		}
		tally(a.Value)
	}
	return value.Number(float64(count))
}

// fnCountA counts non-empty elements, error values included.
func fnCountA(args []Arg) value.Value {
	count := 0
	for _, a := range args {
		if a.IsRange() {
			for v := range a.Range {
				if v != nil {
					count++
				}
			}
			continue
		}
		if a.Value != nil {
			count++
		}
	}
	return value.Number(float64(count))
}

func fnMax(args []Arg) value.Value {
	best, found := math.Inf(-1), false
	if errv := eachNumber(args, func(f float64) {
		best, found = math.Max(best, f), true
	}); errv != nil {
		return errv
	}
	if !found {
		return value.Number(0)
	}
	return value.Number(best)
}

func fnMin(args []Arg) value.Value {
	best, found := math.Inf(1), false
	if errv := eachNumber(args, func(f float64) {
		best, found = math.Min(best, f), true
	}); errv != nil {
		return errv
	}
	if !found {
		return value.Number(0)
	}
	return value.Number(best)
}

// fnIf evaluates only the chosen branch's result; an error in the
// untaken branch does not surface.
func fnIf(args []Arg) value.Value {
	cond, errv := scalar(args[0])
	if errv != nil {
		return errv
	}
	b, errv := value.AsBool(cond)
	if errv != nil {
		return errv
	}
	if b {
		v, errv := scalar(args[1])
		if errv != nil {
			return errv
		}
		return v
	}
	if len(args) == 3 {
		v, errv := scalar(args[2])
		if errv != nil {
			return errv
		}
		return v
	}
	return value.Bool(false)
}

// logicalFold booleanizes every element of args, skipping empty cells.
// Having nothing to fold is a #VALUE! error.
func logicalFold(args []Arg, acc bool, fold func(a, b bool) bool) value.Value {
	seen := false
	visit := func(v value.Value) value.Value {
		if v == nil {
			return nil
		}
		b, errv := value.AsBool(v)
		if errv != nil {
			return errv
		}
		acc = fold(acc, b)
		seen = true
		return nil
	}
	for _, a := range args {
		if a.IsRange() {
			for v := range a.Range {
				if errv := visit(v); errv != nil {
					return errv
				}
			}
			continue
		}
		if errv := visit(a.Value); errv != nil {
			return errv
		}
	}
	if !seen {
		return value.NewError(value.TagValue)
	}
	return value.Bool(acc)
}

func fnAnd(args []Arg) value.Value {
	return logicalFold(args, true, func(a, b bool) bool { return a && b })
}

func fnOr(args []Arg) value.Value {
	return logicalFold(args, false, func(a, b bool) bool { return a || b })
}

func fnNot(args []Arg) value.Value {
	v, errv := scalar(args[0])
	if errv != nil {
		return errv
	}
	b, errv := value.AsBool(v)
	if errv != nil {
		return errv
	}
	return value.Bool(!b)
}

func fnConcatenate(args []Arg) value.Value {
	var b strings.Builder
	for _, a := range args {
		v, errv := scalar(a)
		if errv != nil {
			return errv
		}
		s, errv := value.AsText(v)
		if errv != nil {
			return errv
		}
		b.WriteString(s)
	}
	return value.NewText(b.String())
}

func fnLen(args []Arg) value.Value {
	v, errv := scalar(args[0])
	if errv != nil {
		return errv
	}
	s, errv := value.AsText(v)
	if errv != nil {
		return errv
	}
	return value.Number(float64(utf8.RuneCountInString(s)))
}

// textFunc lifts a string transform into a single-argument function.
func textFunc(f func(string) string) Func {
	return func(args []Arg) value.Value {
		v, errv := scalar(args[0])
		if errv != nil {
			return errv
		}
		s, errv := value.AsText(v)
		if errv != nil {
			return errv
		}
		return value.NewText(f(s))
	}
}

// numFunc lifts a float transform into a single-argument function.
func numFunc(f func(float64) float64) Func {
	return func(args []Arg) value.Value {
		v, errv := scalar(args[0])
		if errv != nil {
			return errv
		}
		x, errv := value.AsNumber(v)
		if errv != nil {
			return errv
		}
		return value.Number(f(x))
	}
}

func scalarNumber(a Arg) (float64, value.Value) {
	v, errv := scalar(a)
	if errv != nil {
		return 0, errv
	}
	return value.AsNumber(v)
}

// fnRound rounds half away from zero. Negative digit counts round to
// tens, hundreds, and so on.
func fnRound(args []Arg) value.Value {
	x, errv := scalarNumber(args[0])
	if errv != nil {
		return errv
	}
	digits, errv := scalarNumber(args[1])
	if errv != nil {
		return errv
	}
	shift := math.Pow(10, math.Trunc(digits))
	return value.Number(math.Round(x*shift) / shift)
}

func fnSqrt(args []Arg) value.Value {
	x, errv := scalarNumber(args[0])
	if errv != nil {
		return errv
	}
	if x < 0 {
		return value.NewError(value.TagValue)
	}
	return value.Number(math.Sqrt(x))
}

func fnPower(args []Arg) value.Value {
	base, errv := scalarNumber(args[0])
	if errv != nil {
		return errv
	}
	exp, errv := scalarNumber(args[1])
	if errv != nil {
		return errv
	}
	res := math.Pow(base, exp)
	if math.IsNaN(res) || math.IsInf(res, 0) {
		return value.NewError(value.TagValue)
	}
	return value.Number(res)
}

// fnMod follows floored division: the result takes the divisor's sign.
func fnMod(args []Arg) value.Value {
	n, errv := scalarNumber(args[0])
	if errv != nil {
		return errv
	}
	d, errv := scalarNumber(args[1])
	if errv != nil {
		return errv
	}
	if d == 0 {
		return value.NewError(value.TagDiv0)
	}
	return value.Number(n - d*math.Floor(n/d))
}

func fnIsNumber(args []Arg) value.Value {
	v, errv := scalar(args[0])
	if errv != nil {
		return errv
	}
	if tag, ok := value.IsError(v); ok {
		return value.NewError(tag)
	}
	_, ok := v.(value.Number)
	return value.Bool(ok)
}

func fnIsText(args []Arg) value.Value {
	v, errv := scalar(args[0])
	if errv != nil {
		return errv
	}
	if tag, ok := value.IsError(v); ok {
		return value.NewError(tag)
	}
	_, ok := v.(value.Text)
	return value.Bool(ok)
}

func fnIsBlank(args []Arg) value.Value {
	v, errv := scalar(args[0])
	if errv != nil {
		return errv
	}
	if tag, ok := value.IsError(v); ok {
		return value.NewError(tag)
	}
	if v == nil {
		return value.Bool(true)
	}
	t, ok := v.(value.Text)
	return value.Bool(ok && t == "")
}

// fnIsError traps: an error argument yields TRUE instead of
// propagating.
func fnIsError(args []Arg) value.Value {
	v, errv := scalar(args[0])
	if errv != nil {
		return errv
	}
	_, isErr := value.IsError(v)
	return value.Bool(isErr)
}
