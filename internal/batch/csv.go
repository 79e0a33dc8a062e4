package batch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrNoHeader is returned for a batch without a header row.
var ErrNoHeader = errors.New("missing header row")

// DecodeCSV parses delimited text with a header row into records.
// A UTF-8 BOM is stripped; input that is not valid UTF-8 is decoded as
// GB18030, the encoding older extraction runs wrote. Header names are trimmed.
// A row with a different column count than the header is an error.
//
// Input with no header row at all, including a BOM alone, returns ErrNoHeader,
// so an empty file is reported as a failed batch rather than counted as a
// parsed batch with zero records. A header without rows is a parsed batch.
func DecodeCSV(data []byte) ([]lineage.Record, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode gb18030: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = strings.TrimSpace(h)
	}

	var records []lineage.Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(lineage.Record, len(keys))
		for i, k := range keys {
			if k == "" {
				continue
			}
			rec[k] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}
