package stats

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Format is an output format for a Table.
type Format string

const (
	// Plain is tab-separated: key then one value per period, no header.
	Plain Format = "plain"
	// CSV has a header row ",word,<labels>" and a leading row id column.
	CSV Format = "csv"
	// XLSX is a spreadsheet laid out like CSV.
	XLSX Format = "xlsx"
)

const sheetName = "similarity"

// ParseFormat accepts plain, csv and xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case Plain, CSV, XLSX:
		return Format(s), nil
	default:
		return "", fmt.Errorf("invalid format %q (supported: plain, csv, xlsx)", s)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write writes t to w in format f.
func Write(w io.Writer, t *Table, f Format) error {
	switch f {
	case Plain:
		return writePlain(w, t)
	case CSV:
		return writeCSV(w, t)
	case XLSX:
		return writeXLSX(w, t)
	default:
		return fmt.Errorf("invalid format %q", f)
	}
}

func writePlain(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	for i, key := range t.Keys {
		bw.WriteString(key)
		for _, v := range t.Values[i] {
			bw.WriteByte('\t')
			bw.WriteString(formatValue(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func writeCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	header := append([]string{"", "word"}, t.Labels...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, key := range t.Keys {
		rec := make([]string, 0, len(t.Values[i])+2)
		rec = append(rec, strconv.Itoa(i), key)
		for _, v := range t.Values[i] {
			rec = append(rec, formatValue(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}
	header := []interface{}{"", "word"}
	for _, l := range t.Labels {
		header = append(header, l)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, key := range t.Keys {
		row := make([]interface{}, 0, len(t.Values[i])+2)
		row = append(row, i, key)
		for _, v := range t.Values[i] {
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// Save writes t to path through a temporary file that only replaces path
// once the whole table is written.
func Save(path string, t *Table, f Format) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	name := tmp.Name()
	err = Write(tmp, t, f)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
