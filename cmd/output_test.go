package main

import (
	"bytes"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/silver-economy/internal/composite"
	"github.com/sells-group/silver-economy/internal/dashboard"
	"github.com/sells-group/silver-economy/internal/filter"
	"github.com/sells-group/silver-economy/internal/model"
)

func TestWriteView_UnknownFormat(t *testing.T) {
	err := writeView(&bytes.Buffer{}, &dashboard.View{}, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestWriteRowsCSV_MissingValues(t *testing.T) {
	var buf bytes.Buffer
	rows := []model.Row{{DisplayName: "Ouro Preto", Region: "MG", AgingIndex: model.Float(71.5)}}
	require.NoError(t, writeRowsCSV(&buf, rows))
	assert.Contains(t, buf.String(), "Ouro Preto,MG,71.5,,,,,,\n")
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "-", formatFloat(nil))
	assert.Equal(t, "0.33", formatFloat(model.Float(1.0/3)))
	assert.Equal(t, "", formatRaw(nil))
	assert.Equal(t, "2500", formatRaw(model.Float(2500)))
}

func TestEmptyNotice(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		empty bool
	}{
		{"empty result", eris.Wrap(filter.ErrEmptyResult, "ranking"), true},
		{"no scorable", composite.ErrNoScorableRecords, true},
		{"other", eris.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notice, ok := emptyNotice(tt.err)
			assert.Equal(t, tt.empty, ok)
			assert.Equal(t, tt.empty, notice != "")
		})
	}
}
