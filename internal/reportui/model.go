// Package reportui provides the Bubble Tea fairness audit interface.
package reportui

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/stats"
)

const (
	tabOverview = iota
	tabGroups
	tabThreshold
	tabDataset
)

const (
	plotHeight    = 10
	datasetRows   = 20
	thresholdStep = 20 // threshold = step / thresholdStep
	reportCache   = 8
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623")).Bold(true)
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	alertCardStyle  = cardStyle.BorderForeground(lipgloss.Color("#F5A623"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Input is everything the UI needs to render an audit.
type Input struct {
	Records   []model.Record
	Cases     []stats.ScoredCase
	Selector  stats.GroupSelector
	Threshold float64
	GapAlert  float64
	// Source describes where the records came from, e.g. "network".
	Source string
	// Notice is shown in the footer, e.g. a load warning.
	Notice string
}

// Model implements the Bubble Tea audit UI.
type Model struct {
	in      Input
	step    int
	report  model.FairnessReport
	reports *lru.Cache[int, model.FairnessReport]
	sweep   []stats.SweepPoint

	tabs       []string
	activeTab  int
	viewports  []viewport.Model
	groupTable table.Model

	width  int
	height int
}

// NewModel constructs the audit UI model.
func NewModel(in Input) (*Model, error) {
	cache, err := lru.New[int, model.FairnessReport](reportCache)
	if err != nil {
		return nil, fmt.Errorf("failed to create report cache: %w", err)
	}
	m := &Model{
		in:      in,
		step:    stepFor(in.Threshold),
		reports: cache,
		sweep:   stats.Sweep(in.Cases, in.Selector, stats.DefaultThresholds()),
		tabs:    []string{"Overview", "Groups", "Threshold", "Dataset"},
	}
	m.initViewports()
	m.groupTable = buildGroupTable(model.FairnessReport{}, 0, 1)
	m.refreshReport()
	return m, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=", "+":
			m.setStep(m.step + 1)
			return m, nil
		case "-":
			m.setStep(m.step - 1)
			return m, nil
		case "g", "home":
			m.viewports[m.activeTab].GotoTop()
			return m, nil
		case "G", "end":
			m.viewports[m.activeTab].GotoBottom()
			return m, nil
		default:
			if m.activeTab == tabGroups {
				var cmd tea.Cmd
				m.groupTable, cmd = m.groupTable.Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

// Threshold returns the decision threshold currently shown.
func (m *Model) Threshold() float64 {
	return float64(m.step) / thresholdStep
}

// Report returns the report for the current threshold.
func (m *Model) Report() model.FairnessReport {
	return m.report
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.in.Notice != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.groupTable.SetWidth(m.width)
	m.groupTable.SetHeight(maxInt(1, vpHeight-1))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabGroups {
		m.groupTable.Focus()
	} else {
		m.groupTable.Blur()
	}
}

func (m *Model) setStep(step int) {
	step = clampInt(step, 1, thresholdStep-1)
	if step == m.step {
		return
	}
	m.step = step
	m.refreshReport()
}

func (m *Model) refreshReport() {
	report, ok := m.reports.Get(m.step)
	if !ok {
		report = stats.ReportFromCases(m.in.Cases, m.in.Selector, m.Threshold())
		m.reports.Add(m.step, report)
	}
	m.report = report
	_, bodyHeight, _ := m.layoutHeights()
	m.groupTable = buildGroupTable(report, maxInt(m.width, 80), bodyHeight)
	if m.activeTab == tabGroups {
		m.groupTable.Focus()
	}
	m.renderTabContents()
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Settings: threshold=%.2f  gap-alert=%s  records=%d  source=%s",
		m.Threshold(), stats.Percent(m.in.GapAlert), len(m.in.Records), m.in.Source)
	return tabs + "\n" + padLines(headerStyle.Render(truncateLine(summary, m.width)), m.width)
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Threshold: -/=  Quit: q")
	if m.in.Notice != "" {
		return help + "\n" + errorStyle.Render(truncateLine(m.in.Notice, m.width))
	}
	return help
}

func (m *Model) renderBody(height int) string {
	if m.activeTab == tabGroups {
		if m.report.Overall.Count == 0 {
			return fitLines("No labeled records loaded.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.groupTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, m.in.GapAlert, width))
	m.viewports[tabThreshold].SetContent(renderThreshold(m.sweep, m.Threshold(), width))
	m.viewports[tabDataset].SetContent(renderDataset(m.in.Records))
}

func renderOverview(report model.FairnessReport, gapAlert float64, width int) string {
	if report.Overall.Count == 0 {
		return "No labeled records loaded."
	}
	gapCard := metricCard
	if stats.GapExceeded(report, gapAlert) {
		gapCard = alertCard
	}
	cards := []string{
		metricCard("Records", strconv.Itoa(report.Overall.Count)),
		metricCard("Accuracy", stats.Percent(report.Overall.Accuracy)),
		metricCard(report.GroupA.Name+" recall", stats.Percent(report.GroupA.Metrics.Recall)),
		metricCard(report.GroupB.Name+" recall", stats.Percent(report.GroupB.Metrics.Recall)),
		gapCard("Recall gap", stats.SignedPercent(report.Disparity.RecallGap)),
	}
	var layout string
	if width < 80 {
		layout = strings.Join(cards, "\n")
	} else {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1])
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[2], cards[3], cards[4])
		layout = lipgloss.JoinVertical(lipgloss.Left, row1, row2)
	}

	var buf bytes.Buffer
	if err := stats.RenderReport(&buf, report, gapAlert); err != nil {
		return fmt.Sprintf("Failed to render report: %v", err)
	}
	text := buf.String()
	if stats.GapExceeded(report, gapAlert) {
		if i := strings.Index(text, "Disparity detected"); i >= 0 {
			text = text[:i] + alertStyle.Render(strings.TrimRight(text[i:], "\n"))
		}
	}
	return strings.TrimRight(layout+"\n\n"+text, "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func alertCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), alertStyle.Render(value))
	return alertCardStyle.Render(content)
}

func renderThreshold(points []stats.SweepPoint, current float64, width int) string {
	if len(points) == 0 {
		return "No labeled records loaded."
	}
	var buf bytes.Buffer
	if err := stats.RenderSweep(&buf, points, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render sweep: %v", err)
	}
	header := headerStyle.Render(fmt.Sprintf("Current threshold: %.2f (adjust with -/=)", current))
	return strings.TrimRight(header+"\n"+buf.String(), "\n")
}

func renderDataset(records []model.Record) string {
	var buf bytes.Buffer
	if err := stats.RenderRecords(&buf, records, datasetRows); err != nil {
		return fmt.Sprintf("Failed to render dataset: %v", err)
	}
	if len(records) > datasetRows {
		fmt.Fprintf(&buf, "... showing first %d\n", datasetRows)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func buildGroupTable(report model.FairnessReport, width, height int) table.Model {
	columns := []table.Column{
		{Title: "Group", Width: 9},
		{Title: "Count", Width: 6},
		{Title: "Accuracy", Width: 9},
		{Title: "Recall", Width: 8},
		{Title: "Precision", Width: 9},
		{Title: "Specificity", Width: 11},
		{Title: "TP", Width: 5},
		{Title: "FP", Width: 5},
		{Title: "TN", Width: 5},
		{Title: "FN", Width: 5},
	}
	rows := []table.Row{
		groupRow("overall", report.Overall),
		groupRow(report.GroupA.Name, report.GroupA.Metrics),
		groupRow(report.GroupB.Name, report.GroupB.Metrics),
	}
	if report.Unmatched > 0 {
		rows = append(rows, table.Row{"unmatched", strconv.Itoa(report.Unmatched), "-", "-", "-", "-", "-", "-", "-", "-"})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(groupTableStyles())
	return t
}

func groupRow(name string, m model.Metrics) table.Row {
	return table.Row{
		name,
		strconv.Itoa(m.Count),
		stats.Percent(m.Accuracy),
		stats.Percent(m.Recall),
		stats.Percent(m.Precision),
		stats.Percent(m.Specificity),
		strconv.Itoa(m.Confusion.TP),
		strconv.Itoa(m.Confusion.FP),
		strconv.Itoa(m.Confusion.TN),
		strconv.Itoa(m.Confusion.FN),
	}
}

func groupTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func stepFor(threshold float64) int {
	return clampInt(int(math.Round(threshold*thresholdStep)), 1, thresholdStep-1)
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
