package report

import (
	"io"

	"dwhctl/pkg/models"
)

// Publisher sends a finished report to the terminal and the configured files
type Publisher struct {
	Out      io.Writer
	UseColor bool
	// Path receives the plain-text report, appended on every run
	Path string
	// YAMLPath receives the structured report; empty disables it
	YAMLPath string
}

// NewPublisher builds a publisher from the report configuration
func NewPublisher(out io.Writer, useColor bool, cfg models.Report) *Publisher {
	return &Publisher{
		Out:      out,
		UseColor: useColor,
		Path:     cfg.Path,
		YAMLPath: cfg.YAMLPath,
	}
}

// Publish renders and persists r
func (p *Publisher) Publish(r *LoadReport) error {
	if p.Out != nil {
		Render(p.Out, r, p.UseColor)
	}
	if p.Path != "" {
		if err := AppendText(p.Path, r); err != nil {
			return err
		}
	}
	if p.YAMLPath != "" {
		if err := WriteYAML(p.YAMLPath, r); err != nil {
			return err
		}
	}
	return nil
}
