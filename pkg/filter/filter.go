package filter

import (
	"math"
	"strings"

	"go.uber.org/zap"
)

// Row is one record of tabular widget data.
type Row = map[string]any

type Operator string

const (
	OperatorEquals   Operator = "equals"
	OperatorContains Operator = "contains"
	OperatorGt       Operator = "gt"
	OperatorLt       Operator = "lt"
	OperatorBetween  Operator = "between"
)

// Filter is a single field predicate. The same shape is used for filters
// stored on a widget and for dashboard-wide filters contributed by clicks.
type Filter struct {
	ID             string   `json:"id" bson:"id"`
	Field          string   `json:"field" bson:"field"`
	Operator       Operator `json:"operator" bson:"operator"`
	Value          any      `json:"value" bson:"value"`
	IsActive       bool     `json:"isActive" bson:"isActive"`
	Label          string   `json:"label,omitempty" bson:"label,omitempty"`
	SourceWidgetID string   `json:"sourceWidgetId,omitempty" bson:"sourceWidgetId,omitempty"`
}

// Evaluator applies filters to row sets. It never fails: malformed filters
// degrade to excluding rows (numeric operators) or to a pass (unknown
// operators), and are reported at debug level.
type Evaluator struct {
	logger *zap.Logger
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger}
}

var defaultEvaluator = NewEvaluator(nil)

// ApplyFilters keeps the rows that pass every active filter.
func ApplyFilters(rows []Row, filters []Filter) []Row {
	return defaultEvaluator.Apply(rows, filters)
}

// Matches reports whether row passes f. Inactive filters always match.
func Matches(row Row, f Filter) bool {
	return defaultEvaluator.Matches(row, f)
}

func (e *Evaluator) Apply(rows []Row, filters []Filter) []Row {
	active := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.IsActive {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return rows
	}

	result := make([]Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, f := range active {
			if !e.Matches(row, f) {
				keep = false
				break
			}
		}
		if keep {
			result = append(result, row)
		}
	}
	return result
}

func (e *Evaluator) Matches(row Row, f Filter) bool {
	if !f.IsActive {
		return true
	}

	field := Lookup(row, f.Field)

	switch f.Operator {
	case OperatorEquals:
		return LooseEqual(field, f.Value)
	case OperatorContains:
		return strings.Contains(strings.ToLower(ToString(field)), strings.ToLower(ToString(f.Value)))
	case OperatorGt:
		return ToNumber(field) > e.operand(f, ToNumber(f.Value))
	case OperatorLt:
		return ToNumber(field) < e.operand(f, ToNumber(f.Value))
	case OperatorBetween:
		lo, hi := e.bounds(f)
		n := ToNumber(field)
		return lo <= n && n <= hi
	default:
		e.logger.Debug("Unknown filter operator, row kept",
			zap.String("filterId", f.ID),
			zap.String("operator", string(f.Operator)))
		return true
	}
}

// Bounds splits a between value on commas and reads the first two parts as
// [min, max]. A missing half is NaN.
func Bounds(value any) (float64, float64) {
	parts := strings.Split(ToString(value), ",")
	lo := ToNumber(parts[0])
	hi := math.NaN()
	if len(parts) > 1 {
		hi = ToNumber(parts[1])
	}
	return lo, hi
}

func (e *Evaluator) bounds(f Filter) (float64, float64) {
	lo, hi := Bounds(f.Value)
	if math.IsNaN(lo) || math.IsNaN(hi) {
		e.logger.Debug("Malformed between range, rows excluded",
			zap.String("filterId", f.ID),
			zap.String("value", ToString(f.Value)))
	}
	return lo, hi
}

func (e *Evaluator) operand(f Filter, n float64) float64 {
	if math.IsNaN(n) {
		e.logger.Debug("Non-numeric filter operand, rows excluded",
			zap.String("filterId", f.ID),
			zap.String("operator", string(f.Operator)),
			zap.String("value", ToString(f.Value)))
	}
	return n
}

// SameCriteria reports whether two filters select the same rows by field,
// operator and strictly equal value. Used for de-duplication.
func SameCriteria(a, b Filter) bool {
	return a.Field == b.Field && a.Operator == b.Operator && StrictEqual(a.Value, b.Value)
}
