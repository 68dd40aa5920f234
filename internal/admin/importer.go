package admin

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

// headerSentinels are the case-insensitive first-field values that mark a
// row as a header to skip.
var headerSentinels = map[string]bool{"nii": true, "#": true, "id": true, "num": true}

// ImportRow is one parsed line of the bulk-import file.
type ImportRow struct {
	NII      string
	NI       string
	FullName string
	Year     int
	Role     model.Role
	Password string // empty = default to NII with must_change_password
}

// ParseImportRow classifies and parses one CSV record. header is true when
// the record is a header line to skip; err is non-nil for malformed rows.
func ParseImportRow(fields []string) (row ImportRow, header bool, err error) {
	if len(fields) == 0 {
		return ImportRow{}, false, errors.New("empty record")
	}
	first := strings.ToLower(strings.TrimSpace(fields[0]))
	if headerSentinels[first] {
		return ImportRow{}, true, nil
	}
	if len(fields) < 4 {
		return ImportRow{}, false, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}

	row.NII = strings.TrimSpace(fields[0])
	row.NI = strings.TrimSpace(fields[1])
	row.FullName = strings.TrimSpace(fields[2])
	if row.NII == "" || row.FullName == "" {
		return ImportRow{}, false, errors.New("nii and full name are required")
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(fields[3]), "%d", &row.Year); err != nil {
		return ImportRow{}, false, fmt.Errorf("invalid year %q", fields[3])
	}
	if row.Year < 0 || row.Year > 8 {
		return ImportRow{}, false, fmt.Errorf("year %d out of range", row.Year)
	}

	row.Role = model.RoleStudent
	if len(fields) >= 5 && strings.TrimSpace(fields[4]) != "" {
		row.Role = model.Role(strings.TrimSpace(fields[4]))
		switch row.Role {
		case model.RoleStudent, model.RoleKitchen, model.RoleDutyOfficer, model.RoleYearCommander, model.RoleAdmin:
		default:
			return ImportRow{}, false, fmt.Errorf("unknown role %q", fields[4])
		}
	}
	if len(fields) >= 6 {
		row.Password = strings.TrimSpace(fields[5])
	}
	return row, false, nil
}

// ImportResult summarises one bulk-import run.
type ImportResult struct {
	Created int
	Skipped int      // existing NIIs and header lines
	Errors  []string // per-line parse failures, the line still skipped
}

// ImportUsers reads the comma-separated roster from r and creates every
// user whose NII does not already exist. Existing NIIs are skipped, never
// overwritten.
func (s *Service) ImportUsers(ctx context.Context, r io.Reader, actor string) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result ImportResult
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		row, header, err := ParseImportRow(record)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if header {
			result.Skipped++
			continue
		}

		_, err = s.CreateUser(ctx, CreateInput{
			NII:      row.NII,
			NI:       row.NI,
			FullName: row.FullName,
			Year:     row.Year,
			Role:     row.Role,
			Password: row.Password,
		}, actor)
		switch {
		case err == nil:
			result.Created++
		case apperr.Is(err, apperr.Conflict):
			result.Skipped++
		default:
			return result, err
		}
	}

	s.audit(ctx, actor, "users.import", fmt.Sprintf("%d created, %d skipped", result.Created, result.Skipped))
	return result, nil
}
