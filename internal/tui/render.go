package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-topo/internal/catalog"
)

// listTop is the first screen row of the sheet list: header, search line
// and count line come before it.
const listTop = 3

var (
	accent    = lipgloss.Color("#2E7D32")
	dim       = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	highlight = lipgloss.Color("#F9A825")

	headerStyle   = lipgloss.NewStyle().Foreground(accent).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	selectedStyle = lipgloss.NewStyle().Foreground(highlight).Bold(true)
	hoveredStyle  = lipgloss.NewStyle().Foreground(accent)
	paneStyle     = lipgloss.NewStyle().Width(listWidth).MaxWidth(listWidth)
)

// Map glyphs.
const (
	glyphEmpty    = ' '
	glyphImage    = '·'
	glyphSheet    = '░'
	glyphHovered  = '▒'
	glyphSelected = '█'
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(), m.renderMap())
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatus())
}

func (m Model) renderHeader() string {
	snap := m.view.Snapshot()
	focus := "list"
	switch m.focus {
	case paneMap:
		focus = "map"
	case paneSearch:
		focus = "search"
	}
	return headerStyle.Render("topo") + dimStyle.Render(fmt.Sprintf("  %s  zoom %d%%  tab switch · / search · f favorite · F favorites only · b background · q quit",
		focus, int(snap.State.Scale*100+0.5)))
}

func (m Model) renderList() string {
	lines := make([]string, 0, m.mapRows())
	search := "/ " + m.query
	if m.focus == paneSearch {
		search += "▏"
	}
	lines = append(lines, search)
	count := fmt.Sprintf("%d / %d", len(m.rows), m.view.Catalog().Len())
	if m.favOnly {
		count += " ♥"
	}
	lines = append(lines, dimStyle.Render(count))

	selected, _ := m.view.Selected()
	rows := m.listRows()
	off := m.offset()
	for i := off; i < len(m.rows) && i < off+rows; i++ {
		r := m.rows[i]
		mark := " "
		if m.prefs.IsFavorite(m.ctx, m.key, r.ID) {
			mark = "♥"
		}
		line := truncate(fmt.Sprintf("%s %s", mark, r.Title()), listWidth-1)
		switch {
		case i == m.cursor && m.focus != paneMap:
			line = cursorStyle.Render(line)
		case r.ID == selected.ID:
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(m.rows) == 0 {
		lines = append(lines, dimStyle.Render("no sheets"))
	}
	for len(lines) < m.mapRows() {
		lines = append(lines, "")
	}
	return paneStyle.Render(strings.Join(lines[:m.mapRows()], "\n"))
}

func (m Model) listRows() int { return max(m.height-listTop-1, 0) }

// offset scrolls the list so the cursor stays visible.
func (m Model) offset() int {
	return max(m.cursor-m.listRows()+1, 0)
}

// renderMap samples the view at the center of every cell.
func (m Model) renderMap() string {
	cols, rows := m.mapCols(), m.mapRows()
	if cols == 0 || rows == 0 {
		return ""
	}
	snap := m.view.Snapshot()
	eng := m.view.Engine()
	image := orb.Bound{Max: orb.Point{snap.Natural.W, snap.Natural.H}}
	selected := snap.State.SelectedID

	var b strings.Builder
	for row := range rows {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := range cols {
			p := cellCenter(col, row)
			r, hit := m.view.RegionAt(p)
			switch {
			case hit && r.ID == selected:
				b.WriteString(selectedStyle.Render(string(glyphSelected)))
			case hit && r.ID == snap.Hovered:
				b.WriteString(hoveredStyle.Render(string(glyphHovered)))
			case hit:
				b.WriteRune(glyphSheet)
			case snap.ShowBackground && image.Contains(eng.ScreenToImage(p)):
				b.WriteString(dimStyle.Render(string(glyphImage)))
			default:
				b.WriteRune(glyphEmpty)
			}
		}
	}
	return b.String()
}

func (m Model) renderStatus() string {
	if m.status != "" {
		return m.status
	}
	if r, ok := m.view.Selected(); ok {
		return selectedStyle.Render(describe(r))
	}
	if r, ok := m.view.Hovered(); ok {
		return hoveredStyle.Render(r.Title())
	}
	return dimStyle.Render("no sheet selected")
}

func describe(r catalog.Region) string {
	parts := []string{r.Title()}
	if r.Province != "" {
		parts = append(parts, r.Province)
	}
	if r.DownloadURL != "" {
		parts = append(parts, r.DownloadURL)
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
