package validation

import (
	"testing"

	"github.com/cuongbtq/catalog-bridge/internal/api/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violationsOf(t *testing.T, err error) []apperr.Violation {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T", err)
	assert.Equal(t, apperr.KindValidationFailed, appErr.Kind)
	assert.Equal(t, apperr.CodeValidationFailed, appErr.Code)
	return appErr.Violations
}

func TestGate_PricePreview(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name        string
		raw         map[string]string
		wantPrice   string
		wantFee     string
		wantFields  []string
		wantMessage string
	}{
		{
			name:      "valid price with default fee",
			raw:       map[string]string{"krwPrice": "10000"},
			wantPrice: "10000",
			wantFee:   "0",
		},
		{
			name:      "valid price and fee",
			raw:       map[string]string{"krwPrice": "12500.50", "fee": "2.5"},
			wantPrice: "12500.5",
			wantFee:   "2.5",
		},
		{
			name:      "zero fee allowed",
			raw:       map[string]string{"krwPrice": "1", "fee": "0"},
			wantPrice: "1",
			wantFee:   "0",
		},
		{
			name:        "negative price",
			raw:         map[string]string{"krwPrice": "-5"},
			wantFields:  []string{"krwPrice"},
			wantMessage: "must be >0",
		},
		{
			name:        "zero price",
			raw:         map[string]string{"krwPrice": "0"},
			wantFields:  []string{"krwPrice"},
			wantMessage: "must be >0",
		},
		{
			name:        "missing price",
			raw:         map[string]string{},
			wantFields:  []string{"krwPrice"},
			wantMessage: "is required",
		},
		{
			name:        "non numeric price",
			raw:         map[string]string{"krwPrice": "ten"},
			wantFields:  []string{"krwPrice"},
			wantMessage: "must be a decimal number",
		},
		{
			name:       "all violations reported together",
			raw:        map[string]string{"krwPrice": "-5", "fee": "-1"},
			wantFields: []string{"krwPrice", "fee"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := gate.Check(PricePreview, tt.raw)

			if len(tt.wantFields) > 0 {
				violations := violationsOf(t, err)
				assert.Nil(t, values)
				require.Len(t, violations, len(tt.wantFields))
				for i, field := range tt.wantFields {
					assert.Equal(t, field, violations[i].Field)
				}
				if tt.wantMessage != "" {
					assert.Equal(t, tt.wantMessage, violations[0].Message)
				}
				return
			}

			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantPrice).Equal(values.Decimal("krwPrice")))
			assert.True(t, decimal.RequireFromString(tt.wantFee).Equal(values.Decimal("fee")))
		})
	}
}

func TestGate_NegativePriceViolationCarriesValue(t *testing.T) {
	_, err := NewGate().Check(PricePreview, map[string]string{"krwPrice": "-5"})

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, apperr.Violation{Field: "krwPrice", Message: "must be >0", Value: "-5"}, violations[0])
}

func TestGate_DecimalBoundsAreExact(t *testing.T) {
	gate := NewGate()

	values, err := gate.Check(PricePreview, map[string]string{"krwPrice": "1e-400"})
	require.NoError(t, err)
	assert.True(t, values.Decimal("krwPrice").IsPositive())

	_, err = gate.Check(PricePreview, map[string]string{"krwPrice": "0"})
	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "must be >0", violations[0].Message)

	capped := Schema{Name: "capped", Rules: []Rule{
		{Field: "rate", Kind: Decimal, Required: true, Constraint: "gt=0,lte=100"},
	}}

	_, err = gate.Check(capped, map[string]string{"rate": "100"})
	require.NoError(t, err)

	_, err = gate.Check(capped, map[string]string{"rate": "100.0000000000000000001"})
	violations = violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "must be <=100", violations[0].Message)
}

func TestGate_SyncJobList(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name        string
		raw         map[string]string
		wantPage    int64
		wantLimit   int64
		wantSort    string
		wantField   string
		wantMessage string
	}{
		{
			name:      "defaults applied",
			raw:       map[string]string{},
			wantPage:  1,
			wantLimit: 20,
			wantSort:  SortCreatedDesc,
		},
		{
			name:      "explicit values",
			raw:       map[string]string{"page": "3", "limit": "100", "sort": SortCreatedAsc},
			wantPage:  3,
			wantLimit: 100,
			wantSort:  SortCreatedAsc,
		},
		{
			name:      "empty value treated as absent",
			raw:       map[string]string{"page": ""},
			wantPage:  1,
			wantLimit: 20,
			wantSort:  SortCreatedDesc,
		},
		{
			name:        "page zero",
			raw:         map[string]string{"page": "0"},
			wantField:   "page",
			wantMessage: "must be >=1",
		},
		{
			name:        "limit above max",
			raw:         map[string]string{"limit": "500"},
			wantField:   "limit",
			wantMessage: "must be <=100",
		},
		{
			name:        "limit zero",
			raw:         map[string]string{"limit": "0"},
			wantField:   "limit",
			wantMessage: "must be >=1",
		},
		{
			name:        "fractional page",
			raw:         map[string]string{"page": "1.5"},
			wantField:   "page",
			wantMessage: "must be an integer",
		},
		{
			name:        "unknown sort key",
			raw:         map[string]string{"sort": "price; DROP TABLE jobs"},
			wantField:   "sort",
			wantMessage: "must be one of: created_desc created_asc updated_desc",
		},
		{
			name:        "unknown status",
			raw:         map[string]string{"status": "DONE"},
			wantField:   "status",
			wantMessage: "must be one of: PENDING RUNNING COMPLETED FAILED",
		},
		{
			name:      "queue with injection characters",
			raw:       map[string]string{"queue": "catalog' OR '1'='1"},
			wantField: "queue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := gate.Check(SyncJobList, tt.raw)

			if tt.wantField != "" {
				violations := violationsOf(t, err)
				require.Len(t, violations, 1)
				assert.Equal(t, tt.wantField, violations[0].Field)
				if tt.wantMessage != "" {
					assert.Equal(t, tt.wantMessage, violations[0].Message)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, values.Int("page"))
			assert.Equal(t, tt.wantLimit, values.Int("limit"))
			assert.Equal(t, tt.wantSort, values.String("sort"))
			assert.False(t, values.Has("status"))
		})
	}
}

func TestGate_DropsUnknownParameters(t *testing.T) {
	values, err := NewGate().Check(SyncJobList, map[string]string{
		"page":      "2",
		"shop":      "demo.example.com",
		"timestamp": "1700000000",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"limit", "page", "sort"}, values.Fields())
}

func TestGate_Identifiers(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "numeric id", value: "1234567"},
		{name: "prefixed id", value: "MP-PRD_0042"},
		{name: "namespaced id", value: "ns:catalog.v2"},
		{name: "leading dash", value: "-rf", wantErr: true},
		{name: "slash", value: "../etc/passwd", wantErr: true},
		{name: "space", value: "a b", wantErr: true},
		{name: "quote", value: "a'b", wantErr: true},
		{name: "too long", value: "a123456789012345678901234567890123456789012345678901234567890123456789", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := gate.Check(ProductResync, map[string]string{"productId": tt.value})
			if tt.wantErr {
				violations := violationsOf(t, err)
				require.Len(t, violations, 1)
				assert.Equal(t, "productId", violations[0].Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, values.String("productId"))
		})
	}
}

func TestGate_StringLengthMessage(t *testing.T) {
	long := ""
	for i := 0; i < 65; i++ {
		long += "a"
	}

	_, err := NewGate().Check(CatalogSegment, map[string]string{"segment": long})

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "length must be <=64", violations[0].Message)
}

func TestGate_FloatKind(t *testing.T) {
	schema := Schema{
		Name: "float",
		Rules: []Rule{
			{Field: "ratio", Kind: Float, Required: true, Constraint: "gte=0,lte=1"},
		},
	}
	gate := NewGate()

	values, err := gate.Check(schema, map[string]string{"ratio": "0.25"})
	require.NoError(t, err)
	assert.Equal(t, 0.25, values.Float("ratio"))

	for _, bad := range []string{"NaN", "Inf", "1.5", "x"} {
		_, err := gate.Check(schema, map[string]string{"ratio": bad})
		violations := violationsOf(t, err)
		assert.Equal(t, "ratio", violations[0].Field, "value %q", bad)
	}
}
