package report

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"strings"
)

// writeJSON writes an array of objects whose keys keep the column order.
func writeJSON(path string, t Table) (bool, error) {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, col := range t.Columns {
			if j > 0 {
				buf.WriteString(",")
			}
			k, err := marshalString(col)
			if err != nil {
				return false, err
			}
			v, err := marshalString(row[j])
			if err != nil {
				return false, err
			}
			buf.WriteString("\n    ")
			buf.Write(k)
			buf.WriteString(": ")
			buf.Write(v)
		}
		buf.WriteString("\n  }")
	}
	if len(t.Rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	return true, os.WriteFile(path, buf.Bytes(), 0o644)
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// writeXML writes <results><record><column_name>value</column_name>...
func writeXML(path string, t Table) (bool, error) {
	names := make([]xml.Name, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = xml.Name{Local: ElementName(col)}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	results := xml.StartElement{Name: xml.Name{Local: "results"}}
	record := xml.StartElement{Name: xml.Name{Local: "record"}}
	if err := enc.EncodeToken(results); err != nil {
		return false, err
	}
	for _, row := range t.Rows {
		if err := enc.EncodeToken(record); err != nil {
			return false, err
		}
		for i, name := range names {
			if err := enc.EncodeElement(row[i], xml.StartElement{Name: name}); err != nil {
				return false, err
			}
		}
		if err := enc.EncodeToken(record.End()); err != nil {
			return false, err
		}
	}
	if err := enc.EncodeToken(results.End()); err != nil {
		return false, err
	}
	if err := enc.Flush(); err != nil {
		return false, err
	}
	buf.WriteString("\n")
	return true, os.WriteFile(path, buf.Bytes(), 0o644)
}

// ElementName maps a column title onto its XML element name.
func ElementName(column string) string {
	return strings.ToLower(strings.ReplaceAll(column, " ", "_"))
}
