package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRenderOrdersCellsByHeader(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.Render(Dataset{
		Headers: []string{"Application No", "Applicant", "Status"},
		Rows: []map[string]string{
			{"Application No": "BSF-2026-000001", "Applicant": "Achieng Odhiambo", "Status": "PENDING"},
			{"Application No": "BSF-2026-000002", "Status": "APPROVED"},
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Application No,Applicant,Status", lines[0])
	assert.Equal(t, "BSF-2026-000001,Achieng Odhiambo,PENDING", lines[1])
	// A row missing a column renders an empty cell, not a shifted one.
	assert.Equal(t, "BSF-2026-000002,,APPROVED", lines[2])
}

func TestCSVExporterRenderRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})
	require.Error(t, err)
}
