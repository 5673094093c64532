package csvinput

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// LargeInputThreshold is the row count above which a single batch input is
// better split over several runs.
const LargeInputThreshold = 600

// Forward host header values accepted in the forwardHostHeader column
const (
	ForwardRequestHostHeader = "REQUEST_HOST_HEADER"
	ForwardOriginHostname    = "ORIGIN_HOSTNAME"
)

var edgeHostnamePattern = regexp.MustCompile(`(.*\.edgekey\.net$|.*\.edgesuite\.net$)`)

// DeliveryRow is one row of a batch delivery input:
// hostname,origin[,propertyName,forwardHostHeader,edgeHostname]
type DeliveryRow struct {
	Line              int    `json:"-"`
	Hostname          string `json:"hostname"`
	Origin            string `json:"origin"`
	PropertyName      string `json:"propertyName"`
	ForwardHostHeader string `json:"forwardHostHeader"`
	EdgeHostname      string `json:"edgeHostname"`
}

// Validate checks the row against the batch delivery schema.
func (r DeliveryRow) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Hostname, validation.Required, is.DNSName),
		validation.Field(&r.Origin, validation.Required, is.Host),
		validation.Field(&r.ForwardHostHeader, validation.In(ForwardRequestHostHeader, ForwardOriginHostname)),
		validation.Field(&r.EdgeHostname, validation.Match(edgeHostnamePattern).Error("must end in .edgekey.net or .edgesuite.net")),
	)
}

// AppsecRow is one row of a security update input: hostname,matchTargetId
type AppsecRow struct {
	Line          int    `json:"-"`
	Hostname      string `json:"hostname"`
	MatchTargetID int    `json:"matchTargetId"`
}

// Validate checks the row against the security update schema.
func (r AppsecRow) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Hostname, validation.Required, is.DNSName),
		validation.Field(&r.MatchTargetID, validation.Required, validation.Min(1)),
	)
}

// RowError is a problem with one data row. Line counts data rows from 1, the
// header is not counted.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ValidateDeliveryRows runs the row schema over every row and returns one
// error per invalid row.
func ValidateDeliveryRows(rows []DeliveryRow) []*RowError {
	var errs []*RowError
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			errs = append(errs, &RowError{Line: row.Line, Err: err})
		}
	}
	return errs
}

// ValidateAppsecRows runs the row schema over every row and returns one error
// per invalid row.
func ValidateAppsecRows(rows []AppsecRow) []*RowError {
	var errs []*RowError
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			errs = append(errs, &RowError{Line: row.Line, Err: err})
		}
	}
	return errs
}

// ReadDeliveryRows reads a batch delivery CSV file. The header row names the
// columns; hostname and origin are mandatory.
func ReadDeliveryRows(ctx context.Context, path string) ([]DeliveryRow, error) {
	records, header, err := readRecords(path, "hostname", "origin")
	if err != nil {
		return nil, err
	}

	if len(records) > LargeInputThreshold {
		log.FromContext(ctx).Info("Large batch input, consider splitting hostnames into multiple properties",
			"file", path, "rows", len(records))
	}

	rows := make([]DeliveryRow, 0, len(records))
	for i, rec := range records {
		rows = append(rows, DeliveryRow{
			Line:              i + 1,
			Hostname:          header.get(rec, "hostname"),
			Origin:            header.get(rec, "origin"),
			PropertyName:      header.get(rec, "propertyName"),
			ForwardHostHeader: header.get(rec, "forwardHostHeader"),
			EdgeHostname:      header.get(rec, "edgeHostname"),
		})
	}
	return rows, nil
}

// ReadAppsecRows reads a security update CSV file with hostname and
// matchTargetId columns.
func ReadAppsecRows(path string) ([]AppsecRow, error) {
	records, header, err := readRecords(path, "hostname", "matchTargetId")
	if err != nil {
		return nil, err
	}

	rows := make([]AppsecRow, 0, len(records))
	for i, rec := range records {
		row := AppsecRow{Line: i + 1, Hostname: header.get(rec, "hostname")}
		if raw := header.get(rec, "matchTargetId"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return nil, &RowError{Line: i + 1, Err: fmt.Errorf("matchTargetId %q is not a number", raw)}
			}
			row.MatchTargetID = id
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type columns map[string]int

func (c columns) get(rec []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

func readRecords(path string, required ...string) ([][]string, columns, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	head, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("csv file %s is empty", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	header := make(columns, len(head))
	for i, name := range head {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if !header.has(name) {
			return nil, nil, fmt.Errorf("csv file %s is missing the %s column", path, name)
		}
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv file: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, header, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
