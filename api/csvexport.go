package api

import (
	"encoding/csv"
	"io"
	"strconv"

	"stageboard-api/domain"
)

// utf8BOM lets spreadsheet software detect the encoding of exported files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"id", "title", "status", "priority",
	"dev_status", "demo_status", "lt_status", "prod_status",
	"dev_color", "demo_color", "lt_color", "prod_color",
}

// writeBoardCSV streams the board as semicolon-separated CSV with a UTF-8
// BOM, one row per task in display order.
func writeBoardCSV(w io.Writer, tasks []domain.BoardTask) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		row := []string{
			t.ID, t.Title, t.Status, strconv.Itoa(t.Priority),
			t.DevStatus, t.DemoStatus, t.LTStatus, t.ProdStatus,
			t.DevColor, t.DemoColor, t.LTColor, t.ProdColor,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
