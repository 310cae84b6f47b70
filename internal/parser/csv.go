package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/FadeevMax/test-web-sop/internal/document"
)

// csvBatchSize is the number of data rows folded into one text element.
const csvBatchSize = 20

// CSVParser handles CSV files. Rows are rendered as "header: value" pairs and
// grouped into batches.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	e := newEmitter(titleFromFilename(filename))
	if len(records) == 0 {
		return e.document(), nil
	}

	headers := records[0]
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var text strings.Builder
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j > 0 {
					text.WriteString(", ")
				}
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
			}
			text.WriteString("\n")
		}
		e.text(text.String(), fmt.Sprintf("rows %d-%d", i+2, end+1))
	}

	return e.document(), nil
}
