package iopkg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yourorg/hubsync/internal/types"
)

// WriteReport stores rep as indented JSON at uri.
func WriteReport(ctx context.Context, uri string, rep types.RunReport) error {
	w, err := CreateWriter(ctx, uri)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		_ = w.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	return w.Close()
}

// ReadReport loads a report written by WriteReport.
func ReadReport(ctx context.Context, uri string) (types.RunReport, error) {
	rc, err := Open(ctx, uri)
	if err != nil {
		return types.RunReport{}, err
	}
	defer rc.Close()
	var rep types.RunReport
	if err := json.NewDecoder(rc).Decode(&rep); err != nil {
		return types.RunReport{}, fmt.Errorf("decode report: %w", err)
	}
	return rep, nil
}
