package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/store"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB000"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusStyle(s store.Status) lipgloss.Style {
	switch s {
	case store.StatusCompleted:
		return okStyle
	case store.StatusFailed:
		return errStyle
	case store.StatusEmpty, store.StatusDuplicate:
		return warnStyle
	default:
		return dimStyle
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func renderResult(w io.Writer, res *research.Result) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Task %d · %s", res.TaskID, res.Topic)))
	if res.Error != "" {
		fmt.Fprintln(w, errStyle.Render(res.Error))
		return
	}
	meta := statusStyle(res.Status).Render(string(res.Status))
	if res.Provider != "" {
		meta += dimStyle.Render(" via " + res.Provider)
	}
	fmt.Fprintln(w, meta)
	if res.Duplicate {
		fmt.Fprintln(w, warnStyle.Render("All articles were already stored by earlier tasks."))
	}
	if len(res.Articles) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, a := range res.Articles {
		renderArticle(w, i+1, a)
	}
}

func renderArticle(w io.Writer, n int, a sources.Article) {
	fmt.Fprintf(w, "%s %s\n", dimStyle.Render(strconv.Itoa(n)+"."), titleStyle.Render(a.Title))
	if a.URL != "" {
		fmt.Fprintln(w, "   "+dimStyle.Render(a.URL))
	}
	if a.Summary != "" {
		fmt.Fprintln(w, "   "+a.Summary)
	} else if a.Description != "" {
		fmt.Fprintln(w, "   "+truncate(a.Description, 200))
	}
	if a.Topics != nil && *a.Topics != "" {
		fmt.Fprintln(w, "   "+okStyle.Render("topics: "+*a.Topics))
	}
	fmt.Fprintln(w)
}

func renderTasks(w io.Writer, tasks []store.Task) {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			truncate(t.Topic, 40),
			statusStyle(t.Status).Render(string(t.Status)),
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Topic", "Status", "Created"},
		rows,
		[]columnAlignment{alignRight},
	))
}

func renderDocuments(w io.Writer, docs []store.Document) {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		topics := ""
		if d.Topics != nil {
			topics = *d.Topics
		}
		rows = append(rows, []string{
			strconv.FormatInt(d.ID, 10),
			strconv.FormatInt(d.TaskID, 10),
			d.Source,
			truncate(d.Content.Title, 60),
			truncate(topics, 40),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Task", "Source", "Title", "Topics"},
		rows,
		[]columnAlignment{alignRight, alignRight},
	))
}

func renderMatches(w io.Writer, matches []vector.Match) {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{
			strconv.FormatFloat(m.Distance, 'f', 3, 64),
			strconv.FormatInt(m.Metadata.TaskID, 10),
			truncate(m.Metadata.Title, 60),
			m.Metadata.URL,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Distance", "Task", "Title", "URL"},
		rows,
		[]columnAlignment{alignRight, alignRight},
	))
}

func renderStats(w io.Writer, s *store.Stats) {
	fmt.Fprintln(w, titleStyle.Render("Newsdesk stats"))
	fmt.Fprintf(w, "Tasks:     %d\nDocuments: %d\n\n", s.TotalTasks, s.TotalDocuments)
	if len(s.TopTopics) == 0 {
		return
	}
	rows := make([][]string, 0, len(s.TopTopics))
	for _, t := range s.TopTopics {
		rows = append(rows, []string{t.Topic, strconv.Itoa(t.Count)})
	}
	fmt.Fprintln(w, renderTable([]string{"Topic", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}
