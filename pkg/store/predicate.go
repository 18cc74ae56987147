package store

// Predicate op constants. Leaf ops compare a field against a value;
// and/or/not combine sub-predicates.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpIn  Op = "in"
	OpGte Op = "gte"
	OpLte Op = "lte"
	OpAnd Op = "and"
	OpOr  Op = "or"
	OpNot Op = "not"
)

// Predicate is a structured boolean tree over field comparisons, evaluated
// server-side against the stored JSON form of each record.
type Predicate struct {
	Op    Op
	Field string
	Value interface{}
	Subs  []Predicate
}

func Eq(field string, value interface{}) Predicate {
	return Predicate{Op: OpEq, Field: field, Value: value}
}

func Neq(field string, value interface{}) Predicate {
	return Predicate{Op: OpNeq, Field: field, Value: value}
}

func In(field string, values ...interface{}) Predicate {
	return Predicate{Op: OpIn, Field: field, Value: values}
}

func Gte(field string, value interface{}) Predicate {
	return Predicate{Op: OpGte, Field: field, Value: value}
}

func Lte(field string, value interface{}) Predicate {
	return Predicate{Op: OpLte, Field: field, Value: value}
}

func And(subs ...Predicate) Predicate {
	return Predicate{Op: OpAnd, Subs: subs}
}

func Or(subs ...Predicate) Predicate {
	return Predicate{Op: OpOr, Subs: subs}
}

func Not(sub Predicate) Predicate {
	return Predicate{Op: OpNot, Subs: []Predicate{sub}}
}

// Match evaluates the predicate against a decoded record. Absent fields
// compare as nil: eq/gte/lte against a concrete value are false, neq true.
func (p Predicate) Match(rec map[string]interface{}) bool {
	switch p.Op {
	case OpAnd:
		for _, s := range p.Subs {
			if !s.Match(rec) {
				return false
			}
		}
		return true
	case OpOr:
		for _, s := range p.Subs {
			if s.Match(rec) {
				return true
			}
		}
		return false
	case OpNot:
		return len(p.Subs) == 1 && !p.Subs[0].Match(rec)
	case OpEq:
		return equal(rec[p.Field], p.Value)
	case OpNeq:
		return !equal(rec[p.Field], p.Value)
	case OpIn:
		vals, ok := p.Value.([]interface{})
		if !ok {
			return false
		}
		for _, v := range vals {
			if equal(rec[p.Field], v) {
				return true
			}
		}
		return false
	case OpGte:
		c, ok := compare(rec[p.Field], p.Value)
		return ok && c >= 0
	case OpLte:
		c, ok := compare(rec[p.Field], p.Value)
		return ok && c <= 0
	}
	return false
}

func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return false
}

// compare orders two scalar values. JSON decoding yields float64 for all
// numbers, so numeric comparisons normalize through float64.
func compare(a, b interface{}) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		if ab == bb {
			return 0, true
		}
		if !ab {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
