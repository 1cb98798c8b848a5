package schema

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

func providerTable() *table.Table {
	t := table.New("num", "fecha", "barra", "desc", "cant", "iva", "precio", table.SupplierColumn, table.AccountColumn, "extra")
	t.Append("FC A 0001-00000001", "5/3/2024", "7791234567890123", "Ibuprofeno", "2", "21", "1.234,56", "monroe", "111", "x")
	t.Append("FC A 0001-00000001", "garbage", "0012", "Paracetamol", "1", "21", "", "monroe", "111", "y")
	return t
}

var providerFields = Fields{
	Invoice:     "num",
	Date:        "fecha",
	Barcode:     "barra",
	Description: "desc",
	Quantity:    "cant",
	TaxRate:     "iva",
	UnitPrice:   "precio",
}

func TestStandardize(t *testing.T) {
	out, err := Standardize(providerTable(), providerFields.Mapping(), Columns())
	require.NoError(t, err)

	assert.Equal(t, Columns(), out.Columns)
	assert.Equal(t, []string{
		"FC A 0001-00000001", "05/03/2024", "monroe", "111", "7791234567890123",
		"Ibuprofeno", "2", "21", "1234.56",
	}, out.Rows[0])
	assert.Equal(t, "", out.Rows[1][1], "unparseable date is blank")
	assert.Equal(t, "0012", out.Rows[1][4], "barcode keeps leading zeros")
	assert.Equal(t, "", out.Rows[1][8])
}

func TestStandardize_Idempotent(t *testing.T) {
	once, err := Standardize(providerTable(), providerFields.Mapping(), Columns())
	require.NoError(t, err)

	twice, err := Standardize(once, Identity(), Columns())
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestStandardize_MissingColumn(t *testing.T) {
	in := table.New("num")
	in.Append("1")

	_, err := Standardize(in, providerFields.Mapping(), Columns())
	var missing *table.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Missing, UnitPrice)
}

func TestStandardize_BadPrice(t *testing.T) {
	in := providerTable()
	in.Rows[1][6] = "n/a"

	_, err := Standardize(in, providerFields.Mapping(), Columns())
	var coerce *CoercionError
	require.ErrorAs(t, err, &coerce)
	assert.Equal(t, 1, coerce.Row)
	assert.ErrorIs(t, err, ErrNotANumber)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"1234,5", "1234.5"},
		{"1234.56", "1234.56"},
		{"1.234.567", "1234567"},
		{" $ 10,00 ", "10"},
		{"-3,5", "-3.5"},
		{"12.3456", "12.3456"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimal(tt.in)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}

	_, err := ParseDecimal("abc")
	assert.ErrorIs(t, err, ErrNotANumber)
}

func TestNormalizePrice(t *testing.T) {
	got, err := NormalizePrice("1.234,56")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", got)

	got, err = NormalizePrice("12.345")
	require.NoError(t, err)
	assert.Equal(t, "12.35", got)

	again, err := NormalizePrice(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "1234,57", FormatDecimal(decimal.RequireFromString("1234.567"), 2))
	assert.Equal(t, "0,10", FormatDecimal(decimal.RequireFromString("0.1"), 2))
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"05/03/2024", "05/03/2024"},
		{"5/3/2024", "05/03/2024"},
		{"05-03-2024", "05/03/2024"},
		{"2024-03-05", "05/03/2024"},
		{"20240305", "05/03/2024"},
		{"05/03/24", "05/03/2024"},
		{"2024-03-05 10:30:00", "05/03/2024"},
		{"31/12/2023", "31/12/2023"},
		{"", ""},
		{"not a date", ""},
		{"32/01/2024", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDate(tt.in))
		})
	}
}
