// Package directory looks up user records in the published directory sheet.
// The sheet is the system of record for who may log in; every lookup is a
// linear scan of a freshly fetched table.
package directory

import (
	"errors"
	"strings"

	"github.com/DanielRv555/op-calorie-vision/internal/sheet"
)

// ErrNotFound is returned when no directory row matches the username
var ErrNotFound = errors.New("user not found in directory")

// Directory sheet column layout. Column 5 exists in the source sheet but
// carries no data the application uses.
const (
	colUsername      = 1
	colAccessCode    = 2
	colVendorName    = 3
	colExpiryDate    = 4
	colDaysRemaining = 6
)

// Record is a user entry extracted from a matched directory row. It is
// immutable once constructed. The access code never leaves the package;
// callers verify credentials through CodeMatches.
type Record struct {
	Username      string `json:"username"`
	VendorName    string `json:"vendor_name"`
	ExpiryDate    string `json:"expiry_date"`
	DaysRemaining string `json:"days_remaining"`

	accessCode string
}

// CodeMatches reports whether the submitted access code matches the record's
// code after trimming.
func (r Record) CodeMatches(code string) bool {
	return strings.TrimSpace(code) == r.accessCode
}

// FindUser scans the table for the first row whose username column matches
// the given username case-insensitively. The header row is skipped, and rows
// missing a username or access code are unusable and never match. Returns
// ErrNotFound when no row matches.
func FindUser(table [][]string, username string) (Record, error) {
	want := strings.ToLower(strings.TrimSpace(username))
	if want == "" || len(table) < 2 {
		return Record{}, ErrNotFound
	}

	for _, row := range table[1:] {
		name := sheet.Cell(row, colUsername)
		if name == "" || strings.ToLower(name) != want {
			continue
		}

		code := sheet.Cell(row, colAccessCode)
		if code == "" {
			// A row without an access code cannot authenticate anyone.
			continue
		}

		days := sheet.Cell(row, colDaysRemaining)
		if days == "" {
			days = "0"
		}

		return Record{
			Username:      name,
			VendorName:    sheet.Cell(row, colVendorName),
			ExpiryDate:    sheet.Cell(row, colExpiryDate),
			DaysRemaining: days,
			accessCode:    code,
		}, nil
	}

	return Record{}, ErrNotFound
}
