package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/config"
)

// Result tables in the report are capped; nobody reads a 10k-row email.
const maxReportTableRows = 50

// ReportSection is one rendered block of the report document.
type ReportSection struct {
	Title      string
	Question   string
	Body       template.HTML
	Table      *reportTable
	SQL        string
	Failed     bool
	FailureMsg string
}

type reportTable struct {
	Columns   []string
	Rows      [][]string
	TotalRows int
	Truncated bool
}

// ReportService turns a question suite into one immutable HTML document per
// run, written under the configured output directory.
type ReportService struct {
	runner    *BatchRunner
	outputDir string
	title     string
	logger    *zap.SugaredLogger

	now      func() time.Time
	markdown goldmark.Markdown
}

func NewReportService(runner *BatchRunner, cfg config.ReportConfig, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{
		runner:    runner,
		outputDir: cfg.OutputDir,
		title:     cfg.Title,
		logger:    logger,
		now:       time.Now,
		markdown:  goldmark.New(),
	}
}

// Generate runs the suite, renders the document, and writes it to a
// run-stamped file. The file is created exclusively: a report run never
// overwrites an earlier one. Failure to write is fatal to the run.
func (s *ReportService) Generate(ctx context.Context, questions []Question) (string, error) {
	runStamp := s.now().UTC()
	s.logger.Infow("report run starting", "run_timestamp", runStamp.Format(time.RFC3339), "sections", len(questions))

	responses := s.runner.Run(ctx, questions)
	sections := s.buildSections(questions, responses)

	document, err := s.render(runStamp, sections)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %v", ErrPersistenceFailure, err)
	}

	filename := fmt.Sprintf("cpi_report_%s.html", runStamp.Format("2006-01-02_150405"))
	path := filepath.Join(s.outputDir, filename)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create report file: %v", ErrPersistenceFailure, err)
	}
	defer file.Close()

	if _, err := file.Write(document); err != nil {
		return "", fmt.Errorf("%w: write report file: %v", ErrPersistenceFailure, err)
	}

	s.logger.Infow("report written", "path", path, "sections", len(sections))
	return path, nil
}

func (s *ReportService) buildSections(questions []Question, responses []QueryResponse) []ReportSection {
	sections := make([]ReportSection, 0, len(questions))

	for i, question := range questions {
		resp := responses[i]

		title := question.Section
		if title == "" {
			title = question.Text
		}

		section := ReportSection{
			Title:    title,
			Question: question.Text,
			SQL:      resp.GeneratedQuery,
		}

		if resp.Status != StatusCompleted {
			section.Failed = true
			section.FailureMsg = fmt.Sprintf("%s: %s", resp.Status, resp.Error)
			sections = append(sections, section)
			continue
		}

		// A completed answer with no rows is a narrative-only section,
		// not an error.
		if resp.AnswerText != "" {
			section.Body = s.renderMarkdown(resp.AnswerText)
		}

		if resp.HasResults() {
			rows := resp.ResultRows
			truncated := len(rows) > maxReportTableRows
			if truncated {
				rows = rows[:maxReportTableRows]
			}
			section.Table = &reportTable{
				Columns:   resp.Columns,
				Rows:      rows,
				TotalRows: len(resp.ResultRows),
				Truncated: truncated,
			}
		}

		sections = append(sections, section)
	}

	return sections
}

func (s *ReportService) renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		// fall back to the raw text, escaped by the template
		s.logger.Warnw("markdown conversion failed", "error", err)
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

func (s *ReportService) render(runStamp time.Time, sections []ReportSection) ([]byte, error) {
	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, struct {
		Title      string
		ReportDate string
		Sections   []ReportSection
	}{
		Title:      s.title,
		ReportDate: runStamp.Format("2006-01-02"),
		Sections:   sections,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }} — {{ .ReportDate }}</title>
<style>
  body { font-family: 'Segoe UI', Arial, sans-serif; max-width: 900px; margin: 40px auto; color: #333; }
  h1 { color: #1a365d; border-bottom: 3px solid #2b6cb0; padding-bottom: 10px; }
  h2 { color: #2b6cb0; margin-top: 30px; }
  .question { color: #666; font-style: italic; margin-bottom: 8px; }
  .response { background: #f7fafc; padding: 15px; border-radius: 8px; margin: 10px 0; }
  .sql { background: #1a202c; color: #a0d2db; padding: 12px; border-radius: 6px;
         font-family: monospace; font-size: 13px; overflow-x: auto; white-space: pre-wrap; }
  table { border-collapse: collapse; width: 100%; margin: 10px 0; }
  th { background: #2b6cb0; color: white; padding: 8px 12px; text-align: left; }
  td { padding: 6px 12px; border-bottom: 1px solid #e2e8f0; }
  tr:nth-child(even) { background: #f7fafc; }
  .truncated { color: #999; font-size: 12px; }
  .footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #e2e8f0;
            color: #999; font-size: 12px; }
  .error { color: #e53e3e; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
<p><strong>Date:</strong> {{ .ReportDate }} | <strong>Source:</strong> Genie Space</p>

{{ range .Sections }}
<h2>{{ .Title }}</h2>
<p class="question">{{ .Question }}</p>

{{ if .Failed }}
  <p class="error">{{ .FailureMsg }}</p>
{{ else }}
  {{ if .Body }}
  <div class="response">{{ .Body }}</div>
  {{ end }}
  {{ with .Table }}
  <table>
    <thead><tr>{{ range .Columns }}<th>{{ . }}</th>{{ end }}</tr></thead>
    <tbody>
    {{ range .Rows }}<tr>{{ range . }}<td>{{ . }}</td>{{ end }}</tr>
    {{ end }}</tbody>
  </table>
  {{ if .Truncated }}<p class="truncated">Showing {{ len .Rows }} of {{ .TotalRows }} rows.</p>{{ end }}
  {{ end }}
  {{ if .SQL }}
  <details><summary>View SQL</summary><div class="sql">{{ .SQL }}</div></details>
  {{ end }}
{{ end }}
{{ end }}

<div class="footer">
  Generated automatically by the scheduled Genie report job.
</div>
</body>
</html>
`))
