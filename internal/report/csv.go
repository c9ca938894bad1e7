// Package report renders visitor reports for export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/faucetdb/frontdesk/internal/model"
)

// Header lists the CSV columns in export order.
var Header = []string{
	"ID", "Name", "Email", "Phone", "Check In", "Check Out", "Visit Purpose",
	"Person to Meet", "Department", "Company Name", "Visitor Location",
}

// Filename returns the attachment name for a report generated at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("visitors_%s.csv", now.UTC().Format("20060102"))
}

// WriteCSV writes the header followed by one row per visitor. Timestamps are
// RFC 3339 in UTC; missing ones are left blank.
func WriteCSV(w io.Writer, visitors []model.Visitor) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range visitors {
		if err := cw.Write(Row(&visitors[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders a single visitor in Header order.
func Row(v *model.Visitor) []string {
	return []string{
		strconv.FormatInt(v.ID, 10),
		v.Name,
		v.Email,
		v.Phone,
		formatTime(v.CheckIn),
		formatTime(v.CheckOut),
		v.VisitPurpose,
		v.PersonToMeet,
		v.Department,
		v.CompanyName,
		v.VisitorLocation,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
