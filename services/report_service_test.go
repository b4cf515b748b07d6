package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/config"
)

func newTestReportService(t *testing.T, api ConversationAPI) *ReportService {
	t.Helper()
	runner := newTestRunner(api, SharedConversation)
	service := NewReportService(runner, config.ReportConfig{
		OutputDir: t.TempDir(),
		Title:     "CPI Weekly Report",
	}, zap.NewNop().Sugar())
	service.now = func() time.Time {
		return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	}
	return service
}

func TestGenerateWritesRunStampedDocument(t *testing.T) {
	api := &scriptedAPI{answerText: "Inflation **eased** in Q2."}
	service := newTestReportService(t, api)

	path, err := service.Generate(context.Background(), []Question{
		{ID: "RQ-001", Text: "How did inflation move?", Section: "Headline Inflation"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "cpi_report_2025-06-02_090000.html"))

	document, err := os.ReadFile(path)
	require.NoError(t, err)

	html := string(document)
	require.Contains(t, html, "<h1>CPI Weekly Report</h1>")
	require.Contains(t, html, "<h2>Headline Inflation</h2>")
	require.Contains(t, html, "How did inflation move?")
	// markdown narrative rendered to HTML
	require.Contains(t, html, "<strong>eased</strong>")
}

func TestGenerateNeverOverwritesAnEarlierRun(t *testing.T) {
	api := &scriptedAPI{}
	service := newTestReportService(t, api)
	questions := []Question{{ID: "RQ-001", Text: "q"}}

	_, err := service.Generate(context.Background(), questions)
	require.NoError(t, err)

	_, err = service.Generate(context.Background(), questions)
	require.ErrorIs(t, err, ErrPersistenceFailure)
}

func TestGenerateRendersFailedSections(t *testing.T) {
	api := &scriptedAPI{failSubmissions: map[int]bool{1: true}}
	service := newTestReportService(t, api)

	path, err := service.Generate(context.Background(), []Question{
		{ID: "RQ-001", Text: "unanswerable", Section: "Broken Section"},
	})
	require.NoError(t, err)

	document, err := os.ReadFile(path)
	require.NoError(t, err)

	html := string(document)
	require.Contains(t, html, "Broken Section")
	require.Contains(t, html, `class="error"`)
	require.Contains(t, html, "failed:")
}

func TestBuildSectionsCapsTableRows(t *testing.T) {
	service := newTestReportService(t, &scriptedAPI{})

	rows := make([][]string, maxReportTableRows+25)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row-%d", i)}
	}

	sections := service.buildSections(
		[]Question{{ID: "RQ-001", Text: "big table"}},
		[]QueryResponse{{
			QuestionID: "RQ-001",
			Status:     StatusCompleted,
			Columns:    []string{"country"},
			ResultRows: rows,
		}},
	)

	require.Len(t, sections, 1)
	table := sections[0].Table
	require.NotNil(t, table)
	require.Len(t, table.Rows, maxReportTableRows)
	require.True(t, table.Truncated)
	require.Equal(t, len(rows), table.TotalRows)
}

func TestBuildSectionsNarrativeOnlyIsNotFailure(t *testing.T) {
	service := newTestReportService(t, &scriptedAPI{})

	sections := service.buildSections(
		[]Question{{ID: "RQ-001", Text: "describe the data"}},
		[]QueryResponse{{
			QuestionID: "RQ-001",
			Status:     StatusCompleted,
			AnswerText: "The dataset covers 190 countries.",
		}},
	)

	require.Len(t, sections, 1)
	require.False(t, sections[0].Failed)
	require.Nil(t, sections[0].Table)
	require.Contains(t, string(sections[0].Body), "190 countries")
}

func TestBuildSectionsUsesQuestionTextWhenSectionUnset(t *testing.T) {
	service := newTestReportService(t, &scriptedAPI{})

	sections := service.buildSections(
		[]Question{{ID: "RQ-001", Text: "What changed?"}},
		[]QueryResponse{{QuestionID: "RQ-001", Status: StatusCompleted}},
	)

	require.Equal(t, "What changed?", sections[0].Title)
}
