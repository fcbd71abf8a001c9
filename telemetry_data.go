// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"time"
)

// TelemetryData holds all telemetry data of an unpack or batch run.
type TelemetryData struct {
	// ExtractedDirs is the number of created extraction directories
	ExtractedDirs int64 `json:"extracted_dirs"`

	// ExtractionDuration is the time the run took
	ExtractionDuration time.Duration `json:"extraction_duration"`

	// ExtractionErrors is the number of errors during the run
	ExtractionErrors int64 `json:"extraction_errors"`

	// ExtractedFiles is the number of extracted files
	ExtractedFiles int64 `json:"extracted_files"`

	// ExtractionSize is the size of the extracted files
	ExtractionSize int64 `json:"extraction_size"`

	// ExtractedType is the kind of run, "unpack" or "batch"
	ExtractedType string `json:"extracted_type"`

	// LastExtractionError is the last error during the run
	LastExtractionError error `json:"last_extraction_error"`

	// MaxDepthReached is the number of files that were not probed, because
	// they are nested too deep
	MaxDepthReached int64 `json:"max_depth_reached"`

	// PatternMismatches is the number of skipped entries
	PatternMismatches int64 `json:"pattern_mismatches"`

	// UnsupportedFiles is the number of skipped unsupported entries and containers
	UnsupportedFiles int64 `json:"unsupported_files"`

	// LastUnsupportedFile is the last skipped unsupported entry or container
	LastUnsupportedFile string `json:"last_unsupported_file"`
}

// String returns a string representation of [TelemetryData].
func (m TelemetryData) String() string {
	b, _ := jsonAPI.Marshal(m)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.LastExtractionError != nil {
		lastError = m.LastExtractionError.Error()
	}

	type Alias TelemetryData
	return jsonAPI.Marshal(&struct {
		LastExtractionError string `json:"last_extraction_error"`
		*Alias
	}{
		LastExtractionError: lastError,
		Alias:               (*Alias)(&m),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after a run has finished which can be used to submit the [TelemetryData]
// to a telemetry service, for example.
type TelemetryHook func(context.Context, *TelemetryData)

// captureExtractionDuration captures the duration of the run
func captureExtractionDuration(td *TelemetryData, start time.Time) {
	stop := now()
	td.ExtractionDuration = stop.Sub(start)
}

// now is replaced in tests
var now = time.Now
