package bookings

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Bookings"

var exportColumns = []string{
	"id",
	"full_name",
	"email",
	"phone",
	"service",
	"project_deadline",
	"project_description",
	"website_type",
	"platform",
	"video_type",
	"design_type",
	"status",
	"created_at",
}

// ExportFilename names the download after the UTC day it was produced.
func ExportFilename(now time.Time, ext string) string {
	return fmt.Sprintf("tivrox_bookings_%s.%s", now.UTC().Format("20060102"), ext)
}

// columnsFor keeps the stored field order and appends updated_at when any row has it.
func columnsFor(docs []Booking) []string {
	cols := append([]string(nil), exportColumns...)
	for _, doc := range docs {
		if doc.UpdatedAt != nil {
			return append(cols, "updated_at")
		}
	}
	return cols
}

func fieldValue(b Booking, column string) string {
	switch column {
	case "id":
		return b.ID
	case "full_name":
		return b.FullName
	case "email":
		return b.Email
	case "phone":
		return b.Phone
	case "service":
		return b.Service
	case "project_deadline":
		return deref(b.ProjectDeadline)
	case "project_description":
		return b.ProjectDescription
	case "website_type":
		return deref(b.WebsiteType)
	case "platform":
		return deref(b.Platform)
	case "video_type":
		return deref(b.VideoType)
	case "design_type":
		return deref(b.DesignType)
	case "status":
		return b.Status
	case "created_at":
		return b.CreatedAt
	case "updated_at":
		return deref(b.UpdatedAt)
	default:
		return ""
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func records(docs []Booking) [][]string {
	cols := columnsFor(docs)
	out := make([][]string, 0, len(docs)+1)
	out = append(out, cols)
	for _, doc := range docs {
		row := make([]string, len(cols))
		for i, col := range cols {
			row[i] = fieldValue(doc, col)
		}
		out = append(out, row)
	}
	return out
}

// WriteCSV writes a header plus one row per booking; no bookings means an empty body.
func WriteCSV(w io.Writer, docs []Booking) error {
	if len(docs) == 0 {
		return nil
	}
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(records(docs)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the same rows as WriteCSV into a single worksheet.
func WriteXLSX(w io.Writer, docs []Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	if len(docs) > 0 {
		for i, rec := range records(docs) {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			row := make([]interface{}, len(rec))
			for j, v := range rec {
				row[j] = v
			}
			if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
				return fmt.Errorf("xlsx row %d: %w", i+1, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
