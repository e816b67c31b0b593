// Package artifacts writes the pipeline's CSV side outputs: summary
// tables, trained model snapshots and simulated NAV curves.
package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"factorlab/internal/errors"
)

// WriteCSV writes one artifact, creating the parent directories.
func WriteCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("create artifact dir for %s", path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("create artifact %s", path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("write artifact %s", path), err)
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("write artifact %s", path), err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("flush artifact %s", path), err)
	}
	return nil
}

// Float formats an artifact value with six decimals, the precision
// every CSV output carries.
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
