package report

import (
	"bufio"
	"encoding/csv"
	"os"
	"strings"
	"unicode/utf8"
)

func writeCSV(path string, t Table) (bool, error) {
	f, err := os.Create(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.UseCRLF = true
	if err := w.Write(t.Columns); err != nil {
		return false, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return false, err
	}
	return true, f.Close()
}

// writeTXT writes a " | " separated table with a dashed rule under the
// header.
func writeTXT(path string, t Table) (bool, error) {
	f, err := os.Create(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := strings.Join(t.Columns, " | ")
	w.WriteString(header + "\n")
	w.WriteString(strings.Repeat("-", utf8.RuneCountInString(header)) + "\n")
	for _, row := range t.Rows {
		w.WriteString(strings.Join(row, " | ") + "\n")
	}
	if err := w.Flush(); err != nil {
		return false, err
	}
	return true, f.Close()
}
