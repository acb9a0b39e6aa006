package models

import (
	"fmt"
	"strings"
)

// ParseFailure is a recoverable per-file error; callers collect it and keep going.
type ParseFailure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

func (f *ParseFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.File, f.Reason)
}

const (
	HaltStageCatalog   = "catalog"
	HaltStageInventory = "inventory"
	HaltStageArchive   = "archive"
)

// ValidationHalt stops the pipeline before any external side effect starts.
type ValidationHalt struct {
	Stage  string   `json:"stage"`
	Reason string   `json:"reason"`
	Items  []string `json:"items,omitempty"`
}

func (h *ValidationHalt) Error() string {
	if len(h.Items) == 0 {
		return fmt.Sprintf("%s: %s", h.Stage, h.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", h.Stage, h.Reason, strings.Join(h.Items, ", "))
}
