package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadQuestions reads a question suite from a YAML file: a top-level list of
// {id, question, category, section} entries.
func LoadQuestions(path string) ([]Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question suite: %w", err)
	}

	var questions []Question
	if err := yaml.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("parse question suite: %w", err)
	}

	cleaned := make([]Question, 0, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		if strings.TrimSpace(q.ID) == "" {
			q.ID = fmt.Sprintf("Q-%03d", i+1)
		}
		cleaned = append(cleaned, q)
	}

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("question suite %s contains no questions", path)
	}

	return cleaned, nil
}

// LoadQuestionsOrDefault falls back to the built-in suite when no path is
// configured.
func LoadQuestionsOrDefault(path string, fallback []Question) ([]Question, error) {
	if strings.TrimSpace(path) == "" {
		return fallback, nil
	}
	return LoadQuestions(path)
}

// DefaultBenchmarkQuestions is the built-in benchmark suite for the CPI
// Genie space, grouped by category for reporting.
func DefaultBenchmarkQuestions() []Question {
	return []Question{
		{ID: "BQ-001", Text: "What is the most recent CPI value for Bermuda?", Category: "single_value"},
		{ID: "BQ-002", Text: "Which country had the highest CPI in 2020?", Category: "ranking"},
		{ID: "BQ-003", Text: "How many countries are in the dataset?", Category: "aggregation"},
		{ID: "BQ-004", Text: "Show the CPI trend for Bermuda from 2015 to 2023", Category: "time_series"},
		{ID: "BQ-005", Text: "Compare the CPI of United States and United Kingdom in 2019", Category: "comparison"},
		{ID: "BQ-006", Text: "What is the average CPI across all countries for each year?", Category: "aggregation"},
		{ID: "BQ-007", Text: "List the top 5 countries with the lowest CPI in the most recent year", Category: "ranking"},
		{ID: "BQ-008", Text: "What years of data are available?", Category: "metadata"},
		{ID: "BQ-009", Text: "What was the year-over-year change in CPI for Bermuda in 2022?", Category: "calculation"},
		{ID: "BQ-010", Text: "Which countries have CPI data for all years in the dataset?", Category: "complex"},
	}
}

// DefaultReportQuestions is the built-in weekly report suite; Section names
// become the report headings, in this order.
func DefaultReportQuestions() []Question {
	return []Question{
		{ID: "RQ-001", Section: "Bermuda CPI Snapshot", Text: "What is the most recent CPI value for Bermuda and how does it compare to the previous year?"},
		{ID: "RQ-002", Section: "Global Rankings", Text: "List the top 10 countries with the highest CPI in the most recent year available"},
		{ID: "RQ-003", Section: "Peer Comparison", Text: "Compare the CPI of Bermuda, United States, United Kingdom, and Canada for the last 5 available years"},
		{ID: "RQ-004", Section: "Trends", Text: "What is the average CPI across all countries for each of the last 5 years?"},
		{ID: "RQ-005", Section: "Data Coverage", Text: "How many countries and years are covered in the dataset?"},
	}
}

// DefaultSuggestions seeds the web app's suggestion chips.
func DefaultSuggestions() []string {
	return []string{
		"What is the latest CPI index for all regions?",
		"Show year-over-year inflation trend for World since 2020",
		"Compare G7 vs Emerging Markets CPI index",
		"Which region had the highest inflation last month?",
		"Show monthly CPI change for World in 2024",
	}
}
