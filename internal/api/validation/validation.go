// Package validation applies declarative per-endpoint parameter schemas before
// any side effect runs. Raw string parameters are coerced to their declared
// kind, defaulted when optional and absent, and checked against validator
// tags. Every violation is collected so the caller gets the full list at once.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cuongbtq/catalog-bridge/internal/api/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Kind is the type a raw parameter is coerced to
type Kind int

const (
	String Kind = iota
	Integer
	Float
	Decimal
)

// identifierPattern admits ids and slugs while blocking quoting, whitespace and path tricks
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)

// Rule constrains one parameter
type Rule struct {
	Field    string
	Kind     Kind
	Required bool
	// Default is coerced like a supplied value when the field is optional and absent
	Default string
	// Constraint is a go-playground/validator tag list, e.g. "gt=0" or "min=1,max=100"
	Constraint string
}

// Schema is the full rule set of one endpoint
type Schema struct {
	Name  string
	Rules []Rule
}

// Gate evaluates schemas. It is safe for concurrent use.
type Gate struct {
	validate *validator.Validate
}

// NewGate builds a Gate with the custom tags schemas rely on
func NewGate() *Gate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	return &Gate{validate: v}
}

// Check validates raw against schema. Parameters outside the schema are
// dropped. On failure it returns an apperr ValidationFailed error listing
// every offending field in schema order.
func (g *Gate) Check(schema Schema, raw map[string]string) (Values, error) {
	values := make(Values, len(schema.Rules))
	var violations []apperr.Violation

	for _, rule := range schema.Rules {
		input, present := raw[rule.Field]
		input = strings.TrimSpace(input)
		if input == "" {
			present = false
		}

		if !present {
			if rule.Required {
				violations = append(violations, apperr.Violation{
					Field:   rule.Field,
					Message: "is required",
				})
				continue
			}
			if rule.Default == "" {
				continue
			}
			input = rule.Default
		}

		value, err := coerce(rule.Kind, input)
		if err != nil {
			violations = append(violations, apperr.Violation{
				Field:   rule.Field,
				Message: err.Error(),
				Value:   input,
			})
			continue
		}

		if rule.Constraint != "" {
			if msg, ok := g.checkConstraint(rule, value); !ok {
				violations = append(violations, apperr.Violation{
					Field:   rule.Field,
					Message: msg,
					Value:   input,
				})
				continue
			}
		}

		values[rule.Field] = value
	}

	if len(violations) > 0 {
		return nil, apperr.ValidationFailed(violations)
	}
	return values, nil
}

func coerce(kind Kind, input string) (any, error) {
	switch kind {
	case Integer:
		n, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("must be an integer")
		}
		return n, nil
	case Float:
		f, err := strconv.ParseFloat(input, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("must be a number")
		}
		return f, nil
	case Decimal:
		d, err := decimal.NewFromString(input)
		if err != nil {
			return nil, fmt.Errorf("must be a decimal number")
		}
		return d, nil
	default:
		return input, nil
	}
}

func (g *Gate) checkConstraint(rule Rule, value any) (string, bool) {
	if d, ok := value.(decimal.Decimal); ok {
		return g.checkDecimal(rule, d)
	}
	return g.checkVar(rule, value, rule.Constraint)
}

func (g *Gate) checkVar(rule Rule, value any, constraint string) (string, bool) {
	err := g.validate.Var(value, constraint)
	if err == nil {
		return "", true
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return "is invalid", false
	}
	return describe(fieldErrs[0].Tag(), fieldErrs[0].Param(), rule.Kind), false
}

// decimalBounds are compared on the decimal itself; a float64 round trip
// turns values below its precision into zero.
var decimalBounds = map[string]func(d, bound decimal.Decimal) bool{
	"gt":  decimal.Decimal.GreaterThan,
	"gte": decimal.Decimal.GreaterThanOrEqual,
	"min": decimal.Decimal.GreaterThanOrEqual,
	"lt":  decimal.Decimal.LessThan,
	"lte": decimal.Decimal.LessThanOrEqual,
	"max": decimal.Decimal.LessThanOrEqual,
}

func (g *Gate) checkDecimal(rule Rule, d decimal.Decimal) (string, bool) {
	for _, part := range strings.Split(rule.Constraint, ",") {
		if part == "" {
			continue
		}

		tag, param, _ := strings.Cut(part, "=")
		cmp, ok := decimalBounds[tag]
		if !ok {
			if msg, valid := g.checkVar(rule, d.InexactFloat64(), part); !valid {
				return msg, false
			}
			continue
		}

		bound, err := decimal.NewFromString(param)
		if err != nil {
			return "is invalid", false
		}
		if !cmp(d, bound) {
			return describe(tag, param, rule.Kind), false
		}
	}
	return "", true
}

// describe names the violated constraint, e.g. "must be >0"
func describe(tag, param string, kind Kind) string {
	if kind == String {
		switch tag {
		case "min", "gte":
			return "length must be >=" + param
		case "max", "lte":
			return "length must be <=" + param
		case "len":
			return "length must be " + param
		}
	}

	switch tag {
	case "gt":
		return "must be >" + param
	case "gte", "min":
		return "must be >=" + param
	case "lt":
		return "must be <" + param
	case "lte", "max":
		return "must be <=" + param
	case "oneof":
		return "must be one of: " + param
	case "identifier":
		return "must start with a letter or digit and contain only letters, digits, '_', '.', ':' or '-'"
	default:
		return "failed " + tag + " constraint"
	}
}

// Values holds coerced parameters keyed by field name
type Values map[string]any

// Has reports whether field was supplied or defaulted
func (v Values) Has(field string) bool {
	_, ok := v[field]
	return ok
}

func (v Values) String(field string) string {
	s, _ := v[field].(string)
	return s
}

func (v Values) Int(field string) int64 {
	n, _ := v[field].(int64)
	return n
}

func (v Values) Float(field string) float64 {
	f, _ := v[field].(float64)
	return f
}

func (v Values) Decimal(field string) decimal.Decimal {
	d, _ := v[field].(decimal.Decimal)
	return d
}

// Fields lists the populated field names in sorted order
func (v Values) Fields() []string {
	fields := make([]string, 0, len(v))
	for k := range v {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}
