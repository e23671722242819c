package report

import (
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"secretsweep/models"
)

const (
	sheetName     = "Results"
	maxColWidth   = 50
	minColWidth   = 10
	headerColor   = "4472C4"
	bandColor     = "D9E1F2"
	plainColor    = "FFFFFF"
	keywordColor  = "FFF2CC"
	newColor      = "90EE90"
	newFontColor  = "006400"
	borderColor   = "000000"
	defaultDetect = plainColor
)

// Ordem importa: a primeira chave contida no tipo define a cor.
var detectorColors = []struct{ key, color string }{
	{"aws", "FFE699"},
	{"private key", "F4B084"},
	{"database", "C6E0B4"},
	{"generic api", "B4C7E7"},
}

// DetectorColor returns the fill used for a detector type cell.
func DetectorColor(detector string) string {
	d := strings.ToLower(detector)
	for _, c := range detectorColors {
		if strings.Contains(d, c.key) {
			return c.color
		}
	}
	return defaultDetect
}

// xlsxStyles creates each distinct style once per workbook.
type xlsxStyles struct {
	f     *excelize.File
	cache map[string]int
}

func (s *xlsxStyles) get(key string, build func() *excelize.Style) (int, error) {
	if id, ok := s.cache[key]; ok {
		return id, nil
	}
	id, err := s.f.NewStyle(build())
	if err != nil {
		return 0, err
	}
	s.cache[key] = id
	return id, nil
}

func thinBorder() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	out := make([]excelize.Border, len(sides))
	for i, side := range sides {
		out[i] = excelize.Border{Type: side, Color: borderColor, Style: 1}
	}
	return out
}

func solid(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
}

func (s *xlsxStyles) header() (int, error) {
	return s.get("header", func() *excelize.Style {
		return &excelize.Style{
			Fill:      solid(headerColor),
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
			Border:    thinBorder(),
		}
	})
}

func (s *xlsxStyles) cell(fill string, font *excelize.Font) (int, error) {
	key := "cell:" + fill
	if font != nil {
		key += ":" + font.Color
	}
	return s.get(key, func() *excelize.Style {
		return &excelize.Style{
			Fill:      solid(fill),
			Font:      font,
			Alignment: &excelize.Alignment{Vertical: "center"},
			Border:    thinBorder(),
		}
	})
}

// writeXLSX writes a styled single-sheet workbook: colored header, banded
// rows, highlighted keyword, detector and NEW status cells, frozen header
// row, autofilter and content-sized columns.
func writeXLSX(path string, t Table) (bool, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return false, err
	}
	styles := &xlsxStyles{f: f, cache: make(map[string]int)}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return false, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(t.Columns))
	if err != nil {
		return false, err
	}
	headerStyle, err := styles.header()
	if err != nil {
		return false, err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return false, err
	}

	keywordCol := indexOf(t.Columns, "Keyword")
	detectorCol := indexOf(t.Columns, "Detector Type")
	statusCol := indexOf(t.Columns, "Status")

	for r, row := range t.Rows {
		rowNum := r + 2
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		start, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return false, err
		}

		band := plainColor
		if rowNum%2 == 0 {
			band = bandColor
		}
		for c, v := range row {
			fill, font := band, (*excelize.Font)(nil)
			switch {
			case c == keywordCol:
				fill, font = keywordColor, &excelize.Font{Bold: true, Color: "000000"}
			case c == detectorCol:
				fill = DetectorColor(v)
			case c == statusCol && strings.Contains(v, models.StatusNew):
				fill, font = newColor, &excelize.Font{Bold: true, Color: newFontColor}
			}
			id, err := styles.cell(fill, font)
			if err != nil {
				return false, err
			}
			ref, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			if err := f.SetCellStyle(sheetName, ref, ref, id); err != nil {
				return false, err
			}
		}
	}

	for c, width := range columnWidths(t) {
		name, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(sheetName, name, name, width); err != nil {
			return false, err
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return false, err
	}
	lastRef, _ := excelize.CoordinatesToCellName(len(t.Columns), len(t.Rows)+1)
	if err := f.AutoFilter(sheetName, "A1:"+lastRef, nil); err != nil {
		return false, err
	}

	if err := f.SaveAs(path); err != nil {
		return false, err
	}
	return true, nil
}

// columnWidths sizes each column to its longest value plus padding,
// clamped to [minColWidth, maxColWidth].
func columnWidths(t Table) []float64 {
	widths := make([]float64, len(t.Columns))
	for c, col := range t.Columns {
		longest := utf8.RuneCountInString(col)
		for _, row := range t.Rows {
			if n := utf8.RuneCountInString(row[c]); n > longest {
				longest = n
			}
		}
		w := min(longest+2, maxColWidth)
		widths[c] = float64(max(w, minColWidth))
	}
	return widths
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}
