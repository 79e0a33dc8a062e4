package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

func TestDecodeCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    []lineage.Record
		wantErr bool
	}{
		{
			name:  "header and rows",
			input: []byte("SOURCE_TABLE,SOURCE_COLUMN\nDB.T1,c1\nDB.T2,c2\n"),
			want: []lineage.Record{
				{"SOURCE_TABLE": "DB.T1", "SOURCE_COLUMN": "c1"},
				{"SOURCE_TABLE": "DB.T2", "SOURCE_COLUMN": "c2"},
			},
		},
		{
			name:  "bom stripped and header trimmed",
			input: append([]byte{0xEF, 0xBB, 0xBF}, []byte(" SOURCE_TABLE , TARGET_TABLE\nA,B\n")...),
			want:  []lineage.Record{{"SOURCE_TABLE": "A", "TARGET_TABLE": "B"}},
		},
		{
			name:  "quoted values keep commas",
			input: []byte("RELATION_TYPE,EFFECTTYPE\n\"a, b\",x\n"),
			want:  []lineage.Record{{"RELATION_TYPE": "a, b", "EFFECTTYPE": "x"}},
		},
		{
			name:  "blank header column ignored",
			input: []byte("A,,B\n1,2,3\n"),
			want:  []lineage.Record{{"A": "1", "B": "3"}},
		},
		{
			name:  "header only",
			input: []byte("A,B\n"),
			want:  nil,
		},
		{
			name:    "empty input",
			input:   nil,
			wantErr: true,
		},
		{
			name:    "ragged row",
			input:   []byte("A,B\n1,2\n3\n"),
			wantErr: true,
		},
		{
			name:    "bare quote",
			input:   []byte("A,B\n1,\"2\n"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCSV(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCSV_EmptyIsNoHeader(t *testing.T) {
	_, err := DecodeCSV([]byte{})
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = DecodeCSV(utf8BOM)
	assert.ErrorIs(t, err, ErrNoHeader, "a BOM alone has no header")

	records, err := DecodeCSV([]byte("SOURCE_TABLE,TARGET_TABLE\n"))
	require.NoError(t, err)
	assert.Empty(t, records, "a header without rows is a parsed batch")
}

func TestDecodeCSV_GB18030(t *testing.T) {
	encoded, err := simplifiedchinese.GB18030.NewEncoder().String("SOURCE_TABLE,SOURCE_COLUMN\n客户表,姓名\n")
	require.NoError(t, err)

	got, err := DecodeCSV([]byte(encoded))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "客户表", got[0]["SOURCE_TABLE"])
	assert.Equal(t, "姓名", got[0]["SOURCE_COLUMN"])
}
