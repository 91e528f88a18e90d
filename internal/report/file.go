package report

import (
	"fmt"
	"io"
	"os"

	"dwhctl/internal/common"

	"gopkg.in/yaml.v3"
)

type appendFile interface {
	io.StringWriter
	io.Closer
}

// openAppend is replaced in tests
var openAppend = func(path string) (appendFile, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, common.FilePermissionNormal)
}

// AppendText appends the plain-text report to path, creating it if needed
func AppendText(path string, r *LoadReport) (err error) {
	clean, err := common.CleanPath(path)
	if err != nil {
		return err
	}
	if err := common.EnsureParentDir(clean); err != nil {
		return err
	}

	f, err := openAppend(clean)
	if err != nil {
		return fmt.Errorf("failed to open report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report file: %w", cerr)
		}
	}()

	if _, err := f.WriteString(r.Text()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML, replacing any previous file
func WriteYAML(path string, r *LoadReport) error {
	clean, err := common.CleanPath(path)
	if err != nil {
		return err
	}
	if err := common.EnsureParentDir(clean); err != nil {
		return err
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(clean, data, common.FilePermissionNormal); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
