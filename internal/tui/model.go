// Package tui is the terminal sheet browser behind `topo browse`. It drives
// the same mapview.View as the web viewer: a list pane on the left and a
// character map of the index on the right.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/mapview"
	"github.com/joeblew999/plat-topo/internal/search"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// Terminal cells are mapped to this many screen pixels.
const (
	cellW = 8
	cellH = 16
)

const (
	listWidth = 34
	panStep   = 4 * cellW
	zoomStep  = 0.25
	wheelStep = 0.1
)

type pane int

const (
	paneList pane = iota
	paneMap
	paneSearch
)

// Model is the bubbletea model of the browser.
type Model struct {
	ctx   context.Context
	view  *mapview.View
	prefs *service.PrefsService
	key   string

	width  int
	height int

	focus   pane
	query   string
	favOnly bool
	rows    []catalog.Region
	cursor  int
	status  string
}

// New returns a browser over view. Favorites are read from and written to
// prefs under key. A view whose image size is unknown is sized to the
// extent of its regions.
func New(ctx context.Context, view *mapview.View, prefs *service.PrefsService, key string) Model {
	if !view.Snapshot().Ready {
		view.ImageLoaded(extent(view.Catalog()))
	}
	view.SetShowBackground(prefs.Get(ctx, key).ShowBackground)
	m := Model{ctx: ctx, view: view, prefs: prefs, key: key}
	m.refilter()
	return m
}

// extent is the bounding size of every region, measured from the origin.
func extent(cat *catalog.Catalog) viewport.Size {
	var size viewport.Size
	for _, r := range cat.All() {
		b := r.Shape.Bound()
		size.W = max(size.W, b.Max[0])
		size.H = max(size.H, b.Max[1])
	}
	return size
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.view.Resize(m.container())
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		m.mouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	if m.focus == paneSearch {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.focus = paneList
		case tea.KeyBackspace:
			if r := []rune(m.query); len(r) > 0 {
				m.query = string(r[:len(r)-1])
				m.refilter()
			}
		case tea.KeyRunes, tea.KeySpace:
			m.query += string(msg.Runes)
			m.refilter()
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.focus == paneList {
			m.focus = paneMap
		} else {
			m.focus = paneList
		}
	case "/":
		m.focus = paneSearch
	case "esc":
		m.view.Deselect(mapview.SourceList)
	case "F":
		m.favOnly = !m.favOnly
		m.refilter()
	case "f":
		m.toggleFavorite()
	case "b":
		m.toggleBackground()
	case "+", "=":
		m.view.ZoomBy(zoomStep * m.view.Snapshot().State.Scale)
	case "-", "_":
		m.view.ZoomBy(-zoomStep * m.view.Snapshot().State.Scale)
	case "0":
		m.view.Reset()
	default:
		if m.focus == paneMap {
			m.mapKey(msg.String())
		} else {
			m.listKey(msg.String())
		}
	}
	return m, nil
}

func (m *Model) listKey(k string) {
	switch k {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "enter", " ":
		if r, ok := m.current(); ok {
			m.view.Select(r.ID, mapview.SourceList)
		}
	}
}

func (m *Model) mapKey(k string) {
	switch k {
	case "up", "k":
		m.view.PanBy(0, panStep)
	case "down", "j":
		m.view.PanBy(0, -panStep)
	case "left", "h":
		m.view.PanBy(panStep, 0)
	case "right", "l":
		m.view.PanBy(-panStep, 0)
	}
}

// mouse feeds pointer events on the map pane through the view's gesture
// handling, so a drag pans and a click selects.
func (m *Model) mouse(msg tea.MouseMsg) {
	p, inside := m.screenPoint(msg.X, msg.Y)
	if !inside {
		if msg.Action == tea.MouseActionRelease || msg.Action == tea.MouseActionMotion {
			m.view.PointerLeave()
		}
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && msg.X < listWidth {
			m.clickList(msg.Y)
		}
		return
	}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.view.ZoomAt(wheelStep*m.view.Snapshot().State.Scale, p)
	case msg.Button == tea.MouseButtonWheelDown:
		m.view.ZoomAt(-wheelStep*m.view.Snapshot().State.Scale, p)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.view.PointerDown(p)
	case msg.Action == tea.MouseActionMotion:
		if !m.view.PointerMove(p) {
			r, _ := m.view.RegionAt(p)
			m.view.Hover(r.ID)
		}
	case msg.Action == tea.MouseActionRelease:
		if m.view.PointerUp(p) {
			m.view.ClickAt(p)
		}
	}
}

func (m *Model) clickList(y int) {
	i := y - listTop + m.offset()
	if y < listTop || i < 0 || i >= len(m.rows) {
		return
	}
	m.cursor = i
	m.view.Select(m.rows[i].ID, mapview.SourceList)
}

func (m *Model) toggleFavorite() {
	r, ok := m.current()
	if m.focus == paneMap || !ok {
		r, ok = m.view.Selected()
	}
	if !ok {
		return
	}
	on, err := m.prefs.ToggleFavorite(m.ctx, m.key, r.ID)
	switch {
	case err != nil:
		m.status = err.Error()
	case on:
		m.status = fmt.Sprintf("♥ %s", r.Title())
	default:
		m.status = fmt.Sprintf("♡ %s", r.Title())
	}
	if m.favOnly {
		m.refilter()
	}
}

func (m *Model) toggleBackground() {
	show := !m.view.Snapshot().ShowBackground
	if err := m.prefs.SetShowBackground(m.ctx, m.key, show); err != nil {
		m.status = err.Error()
		return
	}
	m.view.SetShowBackground(show)
}

func (m *Model) refilter() {
	m.rows = search.Filter(m.view.Catalog().All(), m.query, "")
	if m.favOnly {
		m.rows = search.OnlyFavorites(m.rows, func(id string) bool {
			return m.prefs.IsFavorite(m.ctx, m.key, id)
		})
	}
	m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
}

func (m Model) current() (catalog.Region, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return catalog.Region{}, false
	}
	return m.rows[m.cursor], true
}

// Map pane geometry: one header line above, one status line below.
func (m Model) mapCols() int { return max(m.width-listWidth, 0) }
func (m Model) mapRows() int { return max(m.height-2, 0) }

func (m Model) container() viewport.Size {
	return viewport.Size{W: float64(m.mapCols() * cellW), H: float64(m.mapRows() * cellH)}
}

// screenPoint converts a terminal cell to the center of its pixel box in
// map-pane coordinates.
func (m Model) screenPoint(x, y int) (orb.Point, bool) {
	col, row := x-listWidth, y-1
	if col < 0 || row < 0 || col >= m.mapCols() || row >= m.mapRows() {
		return orb.Point{}, false
	}
	return cellCenter(col, row), true
}

func cellCenter(col, row int) orb.Point {
	return orb.Point{(float64(col) + 0.5) * cellW, (float64(row) + 0.5) * cellH}
}
