package workflow

import (
	"github.com/mmdatafocus/fulfillment_backend/reports"
	"github.com/mmdatafocus/fulfillment_backend/utils"
)

// SinksFromEnv returns the local workbook sink plus whichever remote sinks are configured.
// The returned uploader is non-nil when GCS mirroring is on; callers close it.
func SinksFromEnv(outDir string) ([]reports.Sink, *utils.GCSUploader, error) {
	sinks := []reports.Sink{&reports.XLSXSink{Dir: outDir}}
	if s, ok := reports.NewSheetsSinkFromEnv(); ok {
		sinks = append(sinks, s)
	}
	if utils.GetStorageProvider() != utils.StorageProviderGCS {
		return sinks, nil, nil
	}
	uploader, err := utils.NewGCSUploaderFromEnv()
	if err != nil {
		return nil, nil, err
	}
	return append(sinks, &reports.GCSMirrorSink{Uploader: uploader}), uploader, nil
}
