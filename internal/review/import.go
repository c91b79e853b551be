package review

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
)

// ImportResult counts the rows of a bulk import.
type ImportResult struct {
	Terminology int
	Phrasing    int
	// Skipped maps 1-based row numbers to the reason the row was ignored.
	Skipped map[int]string
}

// Import seeds the correction memory of one language pair from CSV rows of
// the form original,corrected,type[,machine_text]. A first row whose type
// column reads "type" is a header. Invalid rows are skipped and reported;
// a read or storage error aborts the import.
func (s *Service) Import(ctx context.Context, r io.Reader, sourceLang, targetLang string) (*ImportResult, error) {
	if strings.TrimSpace(sourceLang) == "" || strings.TrimSpace(targetLang) == "" {
		return nil, invalid("language", "source and target language are required")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	res := &ImportResult{Skipped: make(map[int]string)}
	for row := 1; ; row++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to read CSV: %w", err)
		}
		if len(rec) < 3 {
			res.Skipped[row] = "expected original,corrected,type"
			continue
		}

		kind := job.CorrectionType(strings.ToLower(strings.TrimSpace(rec[2])))
		if row == 1 && kind == "type" {
			continue
		}
		if !kind.Valid() {
			res.Skipped[row] = fmt.Sprintf("unknown type %q", rec[2])
			continue
		}
		original, corrected := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if original == "" || corrected == "" {
			res.Skipped[row] = "original and corrected text are required"
			continue
		}
		machine := ""
		if len(rec) > 3 {
			machine = rec[3]
		}

		if err := s.store.RecordCorrectionWithMachineText(ctx, original, corrected, machine, kind, sourceLang, targetLang); err != nil {
			return res, fmt.Errorf("row %d: %w", row, err)
		}
		if kind == job.CorrectionTerminology {
			res.Terminology++
		} else {
			res.Phrasing++
		}
	}

	s.logger.Info("correction memory imported", "source_lang", sourceLang, "target_lang", targetLang,
		"terminology", res.Terminology, "phrasing", res.Phrasing, "skipped", len(res.Skipped))
	return res, nil
}
