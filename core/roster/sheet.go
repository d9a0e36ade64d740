package roster

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/shulebox/backend/core"
)

var errInvalidFile = errors.New("invalid spreadsheet file")

// sheet is the first worksheet of an uploaded file: a header row mapping
// column names to positions, and the data rows below it.
type sheet struct {
	cols map[string]int
	rows [][]string
}

func parseSheet(data []byte) (*sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, core.NewValidationError(errInvalidFile)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrap(err, "reading worksheet")
	}
	if len(rows) == 0 {
		return nil, core.NewValidationError(errors.New("empty spreadsheet"))
	}

	s := &sheet{cols: make(map[string]int, len(rows[0]))}
	for i, h := range rows[0] {
		h = core.CleanString(strings.ToLower(h))
		if h != "" {
			s.cols[h] = i
		}
	}
	s.rows = rows[1:]
	return s, nil
}

// requireHeaders verifies the entity's minimal header set is present.
func (s *sheet) requireHeaders(headers ...string) error {
	var flds []core.FieldError
	for _, h := range headers {
		if !s.has(h) {
			flds = append(flds, core.FieldError{Field: h, Error: "missing required header"})
		}
	}
	if flds != nil {
		return core.NewValidationError(errors.New("missing required headers"), flds...)
	}
	return nil
}

func (s *sheet) has(header string) bool {
	_, ok := s.cols[header]
	return ok
}

// cell returns the raw value of the named column in the given row; blank
// when the column is absent or the row is short.
func (s *sheet) cell(row []string, header string) string {
	i, ok := s.cols[header]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// rowNum maps a data-row index to its 1-based spreadsheet row number
// (the header occupies row 1).
func (s *sheet) rowNum(i int) int { return i + 2 }
