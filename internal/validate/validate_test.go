package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
)

type sample struct {
	Qty   int64           `json:"quantity" validate:"gt=0"`
	Price decimal.Decimal `json:"unit_price" validate:"gt=0"`
	Code  string          `json:"lot_code" validate:"required"`
}

func TestStructReportsJSONFieldName(t *testing.T) {
	err := Struct(sample{Qty: 0, Price: decimal.NewFromInt(1), Code: "L1"})
	require.Error(t, err)

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity", ve.Field)
	assert.Equal(t, "must be greater than 0", ve.Reason)
}

func TestDecimalRules(t *testing.T) {
	assert.NoError(t, Struct(sample{Qty: 1, Price: decimal.RequireFromString("0.01"), Code: "L1"}))

	err := Struct(sample{Qty: 1, Price: decimal.Zero, Code: "L1"})
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unit_price", ve.Field)
	assert.Equal(t, "must be greater than 0", ve.Reason)
}

func TestFailedListsFieldsByTag(t *testing.T) {
	got := Failed(sample{Qty: 1, Price: decimal.NewFromInt(1)}, "required")
	assert.Equal(t, []string{"lot_code"}, got)
}
