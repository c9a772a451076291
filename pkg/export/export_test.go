package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCSV(t *testing.T) {
	table := Table{
		Columns: []string{"Date", "Type", "Amount"},
		Rows: [][]string{
			{"2026-03-02", "PENALTY", "-10000"},
			{"2026-03-09", "REFUND"},
		},
	}

	payload, err := RenderCSV(table)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Type,Amount", lines[0])
	assert.Equal(t, "2026-03-02,PENALTY,-10000", lines[1])
	// Short rows are padded to the column count.
	assert.Equal(t, "2026-03-09,REFUND,", lines[2])
}

func TestRenderCSVRequiresColumns(t *testing.T) {
	_, err := RenderCSV(Table{})
	assert.Error(t, err)
}

func TestRenderPDF(t *testing.T) {
	table := Table{
		Title:   "Deposit History",
		Columns: []string{"Date", "Amount"},
		Rows:    [][]string{{"2026-03-02", "-10000"}},
	}

	payload, err := RenderPDF(table)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}
