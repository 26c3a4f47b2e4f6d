package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"leadboard/models"
)

var ExportHeaders = []string{
	"Lead Name",
	"Role",
	"Company",
	"LinkedIn URL",
	"Created At",
	"Message Count",
	"Messages",
	"Latest Message Status",
}

var ErrNothingToExport = errors.New("no leads selected for export")

const noMessages = "No messages"

// ExportFileName names the CSV download for the given day.
func ExportFileName(now time.Time) string {
	return "leads_export_" + now.UTC().Format("2006-01-02") + ".csv"
}

// BuildExportRows produces one row per lead. Messages keep the order they are given in.
func BuildExportRows(leads []models.Lead, messages []models.Message) [][]string {
	byLead := make(map[string][]models.Message)
	for _, m := range messages {
		byLead[m.LeadID] = append(byLead[m.LeadID], m)
	}

	rows := make([][]string, 0, len(leads))
	for _, lead := range leads {
		leadMessages := byLead[lead.ID]

		parts := make([]string, 0, len(leadMessages))
		for i, m := range leadMessages {
			parts = append(parts, fmt.Sprintf("Message %d (%s): %s", i+1, m.Status, m.Content))
		}

		latest := noMessages
		if len(leadMessages) > 0 {
			newest := leadMessages[0]
			for _, m := range leadMessages[1:] {
				if m.GeneratedAt.After(newest.GeneratedAt) {
					newest = m
				}
			}
			latest = string(newest.Status)
		}

		rows = append(rows, []string{
			lead.Name,
			lead.Role,
			lead.Company,
			lead.LinkedIn(),
			lead.CreatedAt.Format("2006-01-02"),
			strconv.Itoa(len(leadMessages)),
			strings.Join(parts, " | "),
			latest,
		})
	}
	return rows
}

// WriteLeadsCSV writes the header line and one fully quoted row per lead.
func WriteLeadsCSV(w io.Writer, leads []models.Lead, messages []models.Message) error {
	if len(leads) == 0 {
		return ErrNothingToExport
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(ExportHeaders, ",")); err != nil {
		return err
	}
	for _, row := range BuildExportRows(leads, messages) {
		quoted := make([]string, len(row))
		for i, v := range row {
			quoted[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
		}
		if _, err := bw.WriteString("\n" + strings.Join(quoted, ",")); err != nil {
			return err
		}
	}
	return bw.Flush()
}
