// Package tui is the live dashboard. All chart state changes happen inside
// Update, so the monitor is only ever touched from the bubbletea loop.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/simdash/internal/config"
	"github.com/jask/simdash/internal/feed"
	"github.com/jask/simdash/internal/logging"
	"github.com/jask/simdash/internal/service"
	"github.com/jask/simdash/internal/wire"
)

// DialFunc opens the push channel connection.
type DialFunc func(ctx context.Context) (feed.Conn, error)

type appState string

const (
	viewList   appState = "list"
	viewDetail appState = "detail"
)

// App is the bubbletea model.
type App struct {
	ctx      context.Context
	cfg      config.Config
	monitor  *service.Monitor
	dial     DialFunc
	exporter service.Exporter
	// ExportDir is where exported PNGs land.
	ExportDir string

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	state     appState
	cursor    int
	focused   string
	summary   string
	width     int
	height    int
	status    string
	statusErr bool
	loading   bool
	online    bool
	parseErrs int

	channel    *feed.Channel
	events     chan feed.Event
	connecting bool
}

func New(ctx context.Context, cfg config.Config, mon *service.Monitor, dial DialFunc) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	summary := cfg.UI.Summary
	if summary != "table" {
		summary = "bar"
	}
	return &App{
		ctx:       ctx,
		cfg:       cfg,
		monitor:   mon,
		dial:      dial,
		exporter:  service.Exporter{Width: 1280, Height: 640},
		ExportDir: ".",
		keys:      defaultKeys(),
		help:      help.New(),
		spinner:   sp,
		state:     viewList,
		summary:   summary,
		width:     100,
		height:    40,
		loading:   true,
		status:    "loading charts...",
	}
}

// messages

type seedMsg struct {
	payloads []wire.ChartPayload
	err      error
}

type detailMsg struct {
	id      string
	payload wire.ChartPayload
	err     error
}

type connectedMsg struct {
	channel    *feed.Channel
	events     chan feed.Event
	connecting bool
}

type connectErrMsg struct{ error }

type eventMsg feed.Event

type statusMsg string

type errMsg struct{ error }

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.seedCmd())
}

func (a *App) seedCmd() tea.Cmd {
	return func() tea.Msg {
		if a.monitor.Backend == nil {
			return seedMsg{err: errors.New("backend not configured")}
		}
		payloads, err := a.monitor.Backend.FetchAll(a.ctx)
		return seedMsg{payloads: payloads, err: err}
	}
}

func (a *App) detailCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if a.monitor.Backend == nil {
			return detailMsg{id: id, err: errors.New("backend not configured")}
		}
		p, err := a.monitor.Backend.FetchOne(a.ctx, id)
		return detailMsg{id: id, payload: p, err: err}
	}
}

// connect returns a dial command unless a channel is live or being dialed.
// Only one channel may feed the model, or notifications could interleave.
func (a *App) connect() tea.Cmd {
	if a.channel != nil || a.connecting {
		return nil
	}
	a.connecting = true
	return a.connectCmd()
}

// connectCmd dials the push channel and starts reading it. Events are
// forwarded in order through a buffered channel that waitForEvent drains.
func (a *App) connectCmd() tea.Cmd {
	return func() tea.Msg {
		if a.dial == nil {
			return connectErrMsg{errors.New("push channel not configured")}
		}
		conn, err := a.dial(a.ctx)
		if err != nil {
			return connectErrMsg{err}
		}
		ch := feed.NewChannel(conn, feed.Options{AckParseFailures: a.cfg.Feed.AckParseFailures})
		events := make(chan feed.Event, 64)
		ch.Subscribe(func(ev feed.Event) { events <- ev })
		go func() {
			if err := ch.Run(a.ctx); err != nil {
				logging.Warnf("feed: %v", err)
			}
			close(events)
		}()
		return connectedMsg{channel: ch, events: events}
	}
}

func waitForEvent(events <-chan feed.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (a *App) exportCmd(id string) tea.Cmd {
	v, ok := a.monitor.View(id)
	return func() tea.Msg {
		if !ok {
			return errMsg{fmt.Errorf("export: unknown chart %q", id)}
		}
		name := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(id)
		path := filepath.Join(a.ExportDir, strings.TrimSuffix(name, filepath.Ext(name))+".png")
		f, err := os.Create(path)
		if err != nil {
			return errMsg{err}
		}
		defer f.Close()
		if err := a.exporter.RenderPNG(f, v); err != nil {
			return errMsg{err}
		}
		return statusMsg("exported " + path)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(m)
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.help.Width = m.Width
	case spinner.TickMsg:
		if a.loading {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(m)
			return a, cmd
		}
	case seedMsg:
		a.loading = false
		if m.err != nil {
			a.setError(fmt.Errorf("load charts: %w", m.err))
		} else {
			c := a.monitor.SeedFrom(a.ctx, m.payloads)
			a.setStatus(fmt.Sprintf("loaded %d charts", c.Count))
		}
		return a, a.connect()
	case connectedMsg:
		a.connecting = false
		if a.channel != nil {
			_ = m.channel.Close()
			return a, nil
		}
		a.channel = m.channel
		a.events = m.events
		return a, waitForEvent(m.events)
	case connectErrMsg:
		a.connecting = false
		a.online = false
		a.setError(fmt.Errorf("push channel: %w", m.error))
	case eventMsg:
		a.applyEvent(feed.Event(m))
		if feed.Event(m).Kind == feed.EventClosed {
			return a, nil
		}
		return a, waitForEvent(a.events)
	case detailMsg:
		if a.state != viewDetail || m.id != a.focused {
			return a, nil
		}
		if m.err != nil {
			a.setError(m.err)
			return a, nil
		}
		if c := a.monitor.ApplyDetail(a.ctx, m.payload); c.Err != nil {
			a.setError(fmt.Errorf("refresh %s: %w", m.id, c.Err))
			return a, nil
		}
		a.setStatus("refreshed " + m.id)
	case statusMsg:
		a.setStatus(string(m))
	case errMsg:
		a.setError(m.error)
	}
	return a, nil
}

func (a *App) applyEvent(ev feed.Event) {
	c := a.monitor.Handle(a.ctx, ev)
	switch c.Kind {
	case service.ChangeConnected:
		a.online = true
		a.setStatus("connected to " + a.cfg.Feed.URL)
	case service.ChangeDisconnected:
		a.online = false
		a.channel = nil
		if c.Err != nil {
			a.setError(fmt.Errorf("disconnected: %w", c.Err))
		} else {
			a.setStatus("disconnected")
		}
	case service.ChangeParseFailed:
		a.parseErrs++
		a.setError(fmt.Errorf("unparseable frame: %w", c.Err))
	case service.ChangeRemoved:
		if a.state == viewDetail && c.ID == a.focused {
			a.state = viewList
			a.focused = ""
			a.setStatus(c.ID + " was removed")
		}
		a.clampCursor()
	case service.ChangeCreated:
		a.setStatus("new chart " + c.ID)
	}
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Quit):
		if a.channel != nil {
			_ = a.channel.Close()
		}
		return a, tea.Quit
	case key.Matches(m, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(m, a.keys.Summary):
		if a.summary == "bar" {
			a.summary = "table"
		} else {
			a.summary = "bar"
		}
	case key.Matches(m, a.keys.Reconnect):
		if cmd := a.connect(); cmd != nil {
			a.setStatus("reconnecting...")
			return a, cmd
		}
	}

	switch a.state {
	case viewDetail:
		switch {
		case key.Matches(m, a.keys.Back):
			a.state = viewList
			a.focused = ""
		case key.Matches(m, a.keys.Refresh):
			return a, a.detailCmd(a.focused)
		case key.Matches(m, a.keys.Export):
			return a, a.exportCmd(a.focused)
		}
	default:
		ids := a.monitor.Charts.IDs()
		switch {
		case key.Matches(m, a.keys.Up):
			if a.cursor > 0 {
				a.cursor--
			}
		case key.Matches(m, a.keys.Down):
			if a.cursor < len(ids)-1 {
				a.cursor++
			}
		case key.Matches(m, a.keys.Open):
			if len(ids) > 0 {
				a.focused = ids[a.cursor]
				a.state = viewDetail
				return a, a.detailCmd(a.focused)
			}
		case key.Matches(m, a.keys.Refresh):
			a.loading = true
			return a, tea.Batch(a.spinner.Tick, a.seedCmd())
		case key.Matches(m, a.keys.Export):
			if len(ids) > 0 {
				return a, a.exportCmd(ids[a.cursor])
			}
		}
	}
	return a, nil
}

func (a *App) clampCursor() {
	n := a.monitor.Charts.Len()
	if a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
}

func (a *App) setStatus(s string) {
	a.status, a.statusErr = s, false
}

func (a *App) setError(err error) {
	logging.Warnf("%v", err)
	a.status, a.statusErr = err.Error(), true
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewDetail:
		body = a.renderDetail()
	default:
		body = a.renderList()
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, a.renderStatus(), a.help.View(a.keys))
}

func (a *App) renderList() string {
	header := headerStyle.Render("simdash") + "  " + mutedStyle.Render(fmt.Sprintf("%d charts", a.monitor.Charts.Len()))
	if a.loading {
		return header + "\n\n" + a.spinner.View() + " " + a.status
	}
	views := a.monitor.Views()
	if len(views) == 0 {
		return header + "\n\n" + mutedStyle.Render("waiting for charts...")
	}

	chartHeight := max(a.cfg.UI.ChartHeight, 5)
	cardHeight := chartHeight + 4
	fit := max((a.height-4)/cardHeight, 1)
	start := 0
	if a.cursor >= fit {
		start = a.cursor - fit + 1
	}
	end := min(start+fit, len(views))

	cards := []string{header}
	for i := start; i < end; i++ {
		cards = append(cards, renderCard(views[i], a.width, chartHeight, i == a.cursor))
	}
	if end < len(views) {
		cards = append(cards, mutedStyle.Render(fmt.Sprintf("… %d more", len(views)-end)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func (a *App) renderDetail() string {
	v, ok := a.monitor.View(a.focused)
	if !ok {
		return mutedStyle.Render("chart " + a.focused + " is gone")
	}
	sum, _ := a.monitor.Summary(a.focused)
	width := max(a.width-2, 40)
	chartHeight := max(a.height-len(sum.Entries)*2-10, a.cfg.UI.ChartHeight)

	var final string
	if a.summary == "table" {
		final = renderSummaryTable(sum, v)
	} else {
		final = renderSummaryBars(sum, v, width/2)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(v.ID)+"  "+mutedStyle.Render(fmt.Sprintf("%d steps", len(v.Steps))),
		renderLineChart(v, width, chartHeight),
		renderLegend(v),
		"",
		headerStyle.Render("Final Values"),
		final,
	)
}

func (a *App) renderStatus() string {
	conn := warningStyle.Render("● offline")
	if a.online {
		conn = successStyle.Render("● live")
	}
	status := statusBarText.Render(a.status)
	if a.statusErr {
		status = errorStyle.Render(a.status)
	}
	extra := ""
	if a.parseErrs > 0 {
		extra = "  " + infoStyle.Render(fmt.Sprintf("%d bad frames", a.parseErrs))
	}
	if err := a.monitor.Palettes.Err(); err != nil {
		extra += "  " + warningStyle.Render("palettes not saved")
	}
	return conn + "  " + status + extra
}
