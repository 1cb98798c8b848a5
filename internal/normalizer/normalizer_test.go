package normalizer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/invoice-normalizer/internal/reader"
	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// FIXTURES
// =============================================================================

// row builds a delimited line of width cells with the given positions set.
func row(width int, sep string, cells map[int]string) string {
	out := make([]string, width)
	for i := range out {
		out[i] = cells[i]
	}
	return strings.Join(out, sep)
}

// header builds a header line where unnamed positions get filler names.
func header(width int, sep string, names map[int]string) string {
	out := make([]string, width)
	for i := range out {
		if n, ok := names[i]; ok {
			out[i] = n
		} else {
			out[i] = "X" + string(rune('A'+i%26)) + strings.Repeat("x", i/26)
		}
	}
	return strings.Join(out, sep)
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func latin1(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.ISO8859_1.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

var monroeNames = map[int]string{
	0:  "TIPO LINEA",
	1:  "LETRA",
	2:  "NUMERO FORMATEADO",
	3:  "FECHA",
	4:  "CLIENTE",
	12: "CODIGO BARRA",
	13: "DESCRIPCION",
	19: "UNIDADES",
	24: "PORC IVA",
	25: "PCIO UNITARIO",
}

func monroeFile(t *testing.T, rows ...map[int]string) string {
	lines := []string{header(26, ";", monroeNames)}
	for _, r := range rows {
		lines = append(lines, row(26, ";", r))
	}
	return writeFixture(t, "monroe.csv", latin1(t, strings.Join(lines, "\n")+"\n"))
}

func monroeHeaderRow(number, date string) map[int]string {
	return map[int]string{0: "Cabecera", 1: "A", 2: number, 3: date}
}

func monroeDetailRow(number, barcode, desc, qty, price string) map[int]string {
	return map[int]string{
		0: "Detalle", 1: "A", 2: number, 12: barcode, 13: desc,
		19: qty, 24: "21", 25: price,
	}
}

// =============================================================================
// MONROE
// =============================================================================

func TestMonroe_HeaderDetail(t *testing.T) {
	path := monroeFile(t,
		monroeHeaderRow("0001-00000001", "05/03/2024"),
		monroeDetailRow("0001-00000001", "7791234567890", "Ibuprofeno 400", "2", "1.234,56"),
	)

	out, err := NewMonroe(Options{}).Normalize(context.Background(), Input{
		Path: path, Provider: "monroe", Account: "12345",
	})
	require.NoError(t, err)
	assert.Equal(t, schema.Columns(), out.Columns)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []string{
		"FC A 0001-00000001", "05/03/2024", "monroe", "12345", "7791234567890",
		"Ibuprofeno 400", "2", "21", "1234.56",
	}, out.Rows[0])
}

func TestMonroe_StrayQuoteInDescription(t *testing.T) {
	path := monroeFile(t,
		monroeHeaderRow("0001-00000002", "06/03/2024"),
		monroeDetailRow("0001-00000002", "7791111111111", `"CREMA 30ML`, "1", "100"),
		monroeDetailRow("0001-00000002", "7792222222222", "JABON", "2", "200"),
		monroeDetailRow("0001-00000002", "7793333333333", "SHAMPOO", "3", "300"),
	)

	out, err := NewMonroe(Options{}).Normalize(context.Background(), Input{
		Path: path, Provider: "monroe", Account: "12345",
	})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, `"CREMA 30ML`, out.Rows[0][5])
	assert.Equal(t, "100.00", out.Rows[0][8])
	assert.Equal(t, "JABON", out.Rows[1][5])
	assert.Equal(t, "SHAMPOO", out.Rows[2][5])
}

func TestMonroe_DatesStayWithinGroup(t *testing.T) {
	path := monroeFile(t,
		monroeHeaderRow("0001-00000001", "05/03/2024"),
		monroeDetailRow("0001-00000001", "1", "a", "1", "10"),
		monroeHeaderRow("0001-00000002", ""),
		monroeDetailRow("0001-00000002", "2", "b", "1", "10"),
		monroeDetailRow("0001-00000001", "3", "c", "1", "10"),
	)

	out, err := NewMonroe(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "monroe", Account: "1"})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	dates, err := out.Column(schema.Date)
	require.NoError(t, err)
	assert.Equal(t, []string{"05/03/2024", "", "05/03/2024"}, dates)
}

func TestMonroe_CombinesBareNumber(t *testing.T) {
	path := monroeFile(t,
		monroeHeaderRow("000100000009", "01/01/2024"),
		monroeDetailRow("000100000009", "1", "a", "1", "10"),
	)

	out, err := NewMonroe(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "monroe", Account: "1"})
	require.NoError(t, err)
	assert.Equal(t, "FC A 0001-00000009", out.Rows[0][0])
}

func TestMonroe_OnlyHeaders(t *testing.T) {
	path := monroeFile(t, monroeHeaderRow("0001-00000001", "05/03/2024"))

	_, err := NewMonroe(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "monroe", Account: "1"})
	var stage *StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, StageSelect, stage.Stage)
	assert.ErrorIs(t, err, table.ErrEmptyTable)
}

func TestMonroe_Unreadable(t *testing.T) {
	_, err := NewMonroe(Options{}).Normalize(context.Background(), Input{
		Path: filepath.Join(t.TempDir(), "missing.csv"), Provider: "monroe", Account: "1",
	})
	var stage *StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, StageRead, stage.Stage)
	assert.ErrorIs(t, err, reader.ErrUnreadable)
}

func TestMonroe_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMonroe(Options{}).Normalize(ctx, Input{Path: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// SUIZO
// =============================================================================

var suizoNames = map[int]string{
	0:  "Tipo de Registro",
	2:  "Número de Comprobante",
	4:  "Fecha comprobante",
	26: "CodBarra",
	28: "Descripción del Producto",
	29: "Cantidad de Unidades",
	30: "Alicuota de IVA %",
	31: "Precio Unitario",
}

func TestSuizo(t *testing.T) {
	lines := []string{
		header(32, ";", suizoNames),
		row(32, ";", map[int]string{0: "C", 2: "A000100001234", 4: "4022025"}),
		row(32, ";", map[int]string{0: "I", 2: "A000100001234", 4: "4022025"}),
		row(32, ";", map[int]string{0: "D", 2: "A000100001234", 26: "7790000000017", 28: "Aspirina", 29: "3", 30: "10,5", 31: "99,9"}),
		row(32, ";", map[int]string{0: "D", 2: "A000100001234", 4: "15022025", 26: "7790000000024", 28: "Gasas", 29: "1", 30: "21", 31: "5"}),
	}
	path := writeFixture(t, "suizo.csv", latin1(t, strings.Join(lines, "\n")))

	out, err := NewSuizo(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "suizo", Account: "777"})
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{
		"FC A 0001-00001234", "04/02/2025", "suizo", "777", "7790000000017",
		"Aspirina", "3", "10,5", "99.90",
	}, out.Rows[0])
	assert.Equal(t, "15/02/2025", out.Rows[1][1])
}

func TestSuizoCompactDate(t *testing.T) {
	assert.Equal(t, "04/02/2025", suizoCompactDate("4022025"))
	assert.Equal(t, "14/02/2025", suizoCompactDate(" 14022025 "))
	assert.Equal(t, "2025-02-04", suizoCompactDate("2025-02-04"))
	assert.Equal(t, "", suizoCompactDate(""))
}

// =============================================================================
// COFARSUR
// =============================================================================

func TestCofarsur(t *testing.T) {
	lines := []string{
		row(15, "\t", map[int]string{0: "C", 1: "900", 14: "20250207"}),
		row(17, "\t", map[int]string{0: "D", 1: "900", 3: "0307A04304132", 6: "7790001112223", 7: "Amoxicilina 500", 11: "1", 12: "3", 13: "12100"}),
		row(17, "\t", map[int]string{0: "D", 1: "900", 3: "0307A04304132", 6: "7790001112230", 7: "Jarabe", 11: "0", 12: "1", 13: "2550"}),
		row(17, "\t", map[int]string{0: "T", 1: "900"}),
	}
	path := writeFixture(t, "cofarsur.txt", []byte(strings.Join(lines, "\n")+"\n"))

	out, err := NewCofarsur(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "cofarsur", Account: "55"})
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{
		"FC A 0307-04304132", "07/02/2025", "cofarsur", "55", "7790001112223",
		"Amoxicilina 500", "3", "21", "100.00",
	}, out.Rows[0])
	assert.Equal(t, "0", out.Rows[1][7])
	assert.Equal(t, "25.50", out.Rows[1][8])
}

func TestCofarsur_NoDetails(t *testing.T) {
	path := writeFixture(t, "cofarsur.txt", []byte(row(17, "\t", map[int]string{0: "C", 14: "20250207"})+"\n"))

	_, err := NewCofarsur(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "cofarsur", Account: "55"})
	var stage *StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, StageFilter, stage.Stage)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestCofarsurAdjust(t *testing.T) {
	tests := []struct {
		name              string
		tax, price        string
		wantTax, wantCost string
	}{
		{"tax included", "1", "12100", "21", "100,0000"},
		{"tax included float", "1.0", "121", "21", "1,0000"},
		{"no tax", "0", "2550", "0", "25,5000"},
		{"blank price", "1", "", "1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tax, price, err := cofarsurAdjust(tt.tax, tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTax, tax)
			assert.Equal(t, tt.wantCost, price)
		})
	}

	_, _, err := cofarsurAdjust("1", "abc")
	assert.ErrorIs(t, err, schema.ErrNotANumber)
}

func TestCofarsurPropagateDates(t *testing.T) {
	tests := []struct {
		name string
		rows []map[int]string
		want []string
	}{
		{
			name: "two invoices",
			rows: []map[int]string{
				{0: "C", 14: "20250101"},
				{0: "D"},
				{0: "D"},
				{0: "C", 14: "20250201"},
				{0: "D"},
			},
			want: []string{"01/01/2025", "01/01/2025", "01/01/2025", "01/02/2025", "01/02/2025"},
		},
		{
			name: "leading detail and bad date",
			rows: []map[int]string{
				{0: "D"},
				{0: "C", 14: "20250207.0"},
				{0: "D"},
				{0: "C", 14: "bad"},
				{0: "D"},
			},
			want: []string{"", "07/02/2025", "07/02/2025", "", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := table.New(cofarsurHeaders[:17]...)
			for _, cells := range tt.rows {
				tbl.Append(strings.Split(row(17, "|", cells), "|")...)
			}
			assert.Equal(t, tt.want, cofarsurPropagateDates(tbl))
		})
	}
}

// =============================================================================
// KELLER
// =============================================================================

const kellerHeaderLine = "Fecha;CodBarra;Producto;Cantidad;Precio Público;Precio Unit.;Importe;Faltas"

func TestKeller(t *testing.T) {
	content := "\ufeff" + kellerHeaderLine + "\n" +
		"07/02/2025;7795555000011;Producto X;4;1.500,00;1.200,50;4.802,00;0\n"
	path := writeFixture(t, "A00180225101.csv", []byte(content))

	out, err := NewKeller(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "keller", Account: "900"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []string{
		"FC A 0018-0225101", "07/02/2025", "keller", "900", "7795555000011",
		"Producto X", "4", "0", "1200.50",
	}, out.Rows[0])
}

func TestKeller_TaxRateOption(t *testing.T) {
	content := kellerHeaderLine + "\n07/02/2025;1;P;1;1;1;1;0\n"
	path := writeFixture(t, "A00180225101.csv", []byte(content))

	out, err := NewKeller(Options{KellerTaxRate: "21"}).Normalize(context.Background(), Input{Path: path, Provider: "keller", Account: "900"})
	require.NoError(t, err)
	assert.Equal(t, "21", out.Rows[0][7])
}

func TestKeller_Layouts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "blank trailing column",
			content: kellerHeaderLine + "\n07/02/2025;1;P;1;1;1;1;0;\n",
		},
		{
			name:    "leading separator",
			content: ";" + kellerHeaderLine + "\n;07/02/2025;1;P;1;1;1;1;0\n",
		},
		{
			name:    "filled extra column",
			content: kellerHeaderLine + "\n07/02/2025;1;P;1;1;1;1;0;extra\n",
			wantErr: ErrColumnMismatch,
		},
		{
			name:    "narrow data",
			content: kellerHeaderLine + "\n07/02/2025;1;P\n",
			wantErr: ErrColumnMismatch,
		},
		{
			name:    "header only",
			content: kellerHeaderLine + "\n",
			wantErr: ErrNoRows,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixture(t, "A00180225101.csv", []byte(tt.content))
			out, err := NewKeller(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "keller", Account: "1"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, out.Len())
			assert.Equal(t, "07/02/2025", out.Rows[0][1])
		})
	}
}

func TestKeller_MissingHeader(t *testing.T) {
	path := writeFixture(t, "A00180225101.csv", []byte("Fecha;CodBarra\n01/01/2024;1\n"))

	_, err := NewKeller(Options{}).Normalize(context.Background(), Input{Path: path, Provider: "keller", Account: "1"})
	var missing *table.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Missing, "Producto")
}

// =============================================================================
// HELPERS AND REGISTRY
// =============================================================================

func TestInvoiceFormats(t *testing.T) {
	assert.Equal(t, "FC A 0018-0225101", formatLetterFirst("A00180225101"))
	assert.Equal(t, "A0018", formatLetterFirst(" A0018 "))
	assert.Equal(t, "FC A 0307-04304132", formatLetterFifth("0307A04304132"))
	assert.Equal(t, "0307A", formatLetterFifth("0307A"))
	assert.Equal(t, "FC B 0001-00000001", combineInvoice("B", "0001-00000001"))
	assert.Equal(t, "FC B 0001-00000001", combineInvoice(" B ", "000100000001"))
}

func TestRegistry(t *testing.T) {
	reg := Registry(Options{})
	for _, tag := range Providers() {
		assert.Contains(t, reg, tag)
	}
	assert.Len(t, reg, 4)
	assert.Equal(t, []string{"cofarsur", "keller", "monroe", "suizo"}, Providers())
}
