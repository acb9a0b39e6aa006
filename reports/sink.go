package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var logger = config.GetLogger()

// Sink is a report destination. The same Table is handed to every sink.
type Sink interface {
	Name() string
	Write(ctx context.Context, t Table, stamp string) (string, error)
}

// FileName is the local and mirrored name of a report: <name>_<stamp>.xlsx.
func FileName(t Table, stamp string) string {
	return fmt.Sprintf("%s_%s.xlsx", t.Name, stamp)
}

// Workbook renders t into a single-sheet workbook named after the report.
func Workbook(t Table) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", t.Name); err != nil {
		f.Close()
		return nil, err
	}
	headers := t.Headers
	if err := f.SetSheetRow(t.Name, "A1", &headers); err != nil {
		f.Close()
		return nil, err
	}
	for i, row := range t.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		r := row
		if err := f.SetSheetRow(t.Name, cell, &r); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// XLSXSink writes each report as a file under Dir.
type XLSXSink struct {
	Dir string
}

func (s *XLSXSink) Name() string { return "xlsx" }

func (s *XLSXSink) Write(_ context.Context, t Table, stamp string) (string, error) {
	f, err := Workbook(t)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, FileName(t, stamp))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// GCSMirrorSink uploads the same workbook to a bucket.
type GCSMirrorSink struct {
	Uploader *utils.GCSUploader
}

func (s *GCSMirrorSink) Name() string { return "gcs" }

func (s *GCSMirrorSink) Write(ctx context.Context, t Table, stamp string) (string, error) {
	f, err := Workbook(t)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", err
	}
	object := s.Uploader.ObjectName(FileName(t, stamp))
	if err := s.Uploader.UploadBytes(ctx, object, buf.Bytes(), utils.XLSXContentType); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.Uploader.Bucket, object), nil
}

// SheetsSink appends report rows to a hosted spreadsheet, one tab per report.
// The API service is created on first use.
type SheetsSink struct {
	SpreadsheetId string
	Options       []option.ClientOption

	mu  sync.Mutex
	srv *sheets.Service
}

// NewSheetsSinkFromEnv reads REPORT_SPREADSHEET_ID and optional SHEETS_CREDENTIALS_JSON.
func NewSheetsSinkFromEnv() (*SheetsSink, bool) {
	id := strings.TrimSpace(os.Getenv("REPORT_SPREADSHEET_ID"))
	if id == "" {
		return nil, false
	}
	var opts []option.ClientOption
	if credJSON := strings.TrimSpace(os.Getenv("SHEETS_CREDENTIALS_JSON")); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return &SheetsSink{SpreadsheetId: id, Options: opts}, true
}

func (s *SheetsSink) Name() string { return "sheets" }

func (s *SheetsSink) service(ctx context.Context) (*sheets.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return s.srv, nil
	}
	srv, err := sheets.NewService(ctx, s.Options...)
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}
	s.srv = srv
	return srv, nil
}

// Write appends data rows only; the tab's header row is maintained by the operator.
func (s *SheetsSink) Write(ctx context.Context, t Table, _ string) (string, error) {
	srv, err := s.service(ctx)
	if err != nil {
		return "", err
	}
	rng := fmt.Sprintf("'%s'!A1", t.Name)
	vr := &sheets.ValueRange{Values: t.Rows}
	resp, err := srv.Spreadsheets.Values.Append(s.SpreadsheetId, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append %s rows: %w", t.Name, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// Output records where one report went.
type Output struct {
	Report   string `json:"report"`
	Sink     string `json:"sink"`
	Location string `json:"location"`
}

// Emit writes every table to every sink, in order. The first failure stops it.
func Emit(ctx context.Context, tables []Table, sinks []Sink, stamp string) ([]Output, error) {
	var outputs []Output
	for _, sink := range sinks {
		for _, t := range tables {
			loc, err := sink.Write(ctx, t, stamp)
			if err != nil {
				config.LogError(logger, "reports", "Emit", "write report", map[string]string{"report": t.Name, "sink": sink.Name()}, err)
				return outputs, fmt.Errorf("%s report to %s: %w", t.Name, sink.Name(), err)
			}
			outputs = append(outputs, Output{Report: t.Name, Sink: sink.Name(), Location: loc})
			logger.WithFields(logrus.Fields{"report": t.Name, "sink": sink.Name(), "rows": len(t.Rows), "location": loc}).Info("report written")
		}
	}
	return outputs, nil
}
