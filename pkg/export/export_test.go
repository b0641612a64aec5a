package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderQuotesSpecialCharacters(t *testing.T) {
	values := []string{
		"plain",
		"Doe, Jane",
		`She said "hi"`,
		"line one\nline two",
		`mixed, "quoted"` + "\nvalue",
	}
	rows := make([]map[string]string, len(values))
	for i, v := range values {
		rows[i] = map[string]string{"name": v, "grade": "5"}
	}
	data := Dataset{
		Columns: []Column{{Key: "name", Header: "Name"}, {Key: "grade", Header: "Grade Level"}},
		Rows:    rows,
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Doe, Jane"`)
	assert.Contains(t, string(out), `"She said ""hi"""`)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(values)+1)
	assert.Equal(t, []string{"Name", "Grade Level"}, records[0])
	for i, v := range values {
		assert.Equal(t, v, records[i+1][0])
	}
}

func TestCSVRenderRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	doc := Document{
		Title:   "Snapshot run",
		Summary: []string{"Snapshot date: 2026-06-01"},
		Data: Dataset{
			Columns: []Column{{Key: "learner", Header: "Learner"}, {Key: "level", Header: "Level"}},
			Rows:    []map[string]string{{"learner": "L1", "level": "Proficient"}},
		},
	}
	out, err := NewPDFExporter().Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
