package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// ConfirmedDir is the subdirectory confirmed spreadsheets are moved into.
const ConfirmedDir = "confirmed"

var logger = config.GetLogger()

var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
	".xlsb": true,
}

// Result lists the spreadsheets extracted from one archive.
type Result struct {
	Dir       string                `json:"dir"`
	Pending   []string              `json:"pending"`
	Confirmed []string              `json:"confirmed"`
	Failures  []models.ParseFailure `json:"failures"`
}

// IsSpreadsheet reports whether name has a spreadsheet extension.
func IsSpreadsheet(name string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(name))]
}

// RepairName recovers a Korean entry name stored in the legacy code page.
// Names that are already valid UTF-8 are kept; so is the raw name when decoding fails.
func RepairName(raw string) string {
	if utf8.ValidString(raw) {
		return raw
	}
	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), []byte(raw))
	if err != nil {
		return raw
	}
	fixed := string(decoded)
	if strings.ContainsRune(fixed, utf8.RuneError) {
		return raw
	}
	return fixed
}

// Extract writes every spreadsheet entry of zipPath into destDir, flattened to its base name.
// Clashing names get _1, _2, ... suffixes. Only a failure to open the archive is returned as error.
func Extract(zipPath, destDir string) ([]string, []models.ParseFailure, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive %s: %w", filepath.Base(zipPath), err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", destDir, err)
	}

	var (
		extracted []string
		failures  []models.ParseFailure
		seen      = map[string]bool{}
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := RepairName(f.Name)
		name = path.Base(strings.ReplaceAll(name, "\\", "/"))
		if !IsSpreadsheet(name) {
			continue
		}
		name = uniqueName(name, seen)

		out := filepath.Join(destDir, name)
		if err := extractFile(f, out); err != nil {
			config.LogError(logger, "archive", "Extract", "extract entry", name, err)
			failures = append(failures, models.ParseFailure{File: name, Reason: "extract failed: " + err.Error()})
			continue
		}
		extracted = append(extracted, out)
	}
	return extracted, failures, nil
}

func uniqueName(name string, seen map[string]bool) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	fixed := name
	for i := 1; seen[fixed]; i++ {
		fixed = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	seen[fixed] = true
	return fixed
}

func extractFile(f *zip.File, out string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// IsConfirmed reports whether any sheet carries the received-amount marker in one of
// the candidate header rows. Unreadable workbooks are not confirmed.
func IsConfirmed(file string, layout models.Layout) (bool, error) {
	f, err := excelize.OpenFile(file)
	if err != nil {
		return false, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for r := layout.ConfirmedRowFrom; r <= layout.ConfirmedRowTo && r < len(rows); r++ {
			for _, cell := range rows[r] {
				if strings.Contains(cell, layout.ConfirmedMarker) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// Normalize extracts zipPath into destDir and splits the spreadsheets into pending and confirmed.
// Confirmed files are moved into destDir/confirmed so later stages never see them.
func Normalize(zipPath, destDir string, layout models.Layout) (*Result, error) {
	files, failures, err := Extract(zipPath, destDir)
	if err != nil {
		return nil, err
	}

	res := &Result{Dir: destDir, Failures: failures}
	for _, file := range files {
		confirmed, err := IsConfirmed(file, layout)
		if err != nil {
			// the parser reports unreadable files
			logger.WithFields(logrus.Fields{"file": filepath.Base(file), "error": err.Error()}).Warn("classify: treating as pending")
			res.Pending = append(res.Pending, file)
			continue
		}
		if !confirmed {
			res.Pending = append(res.Pending, file)
			continue
		}
		moved, err := moveAside(file, filepath.Join(destDir, ConfirmedDir))
		if err != nil {
			config.LogError(logger, "archive", "Normalize", "move confirmed", filepath.Base(file), err)
			res.Failures = append(res.Failures, models.ParseFailure{File: filepath.Base(file), Reason: "move confirmed failed: " + err.Error()})
			continue
		}
		res.Confirmed = append(res.Confirmed, moved)
	}

	logger.WithFields(logrus.Fields{
		"archive":   filepath.Base(zipPath),
		"pending":   len(res.Pending),
		"confirmed": len(res.Confirmed),
		"failures":  len(res.Failures),
	}).Info("archive normalized")
	return res, nil
}

func moveAside(file, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(dir, filepath.Base(file))
	if err := os.Rename(file, target); err != nil {
		return "", err
	}
	return target, nil
}
