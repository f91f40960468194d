package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/jask/simdash/internal/backend"
	"github.com/jask/simdash/internal/chart"
	"github.com/jask/simdash/internal/config"
	"github.com/jask/simdash/internal/database"
	"github.com/jask/simdash/internal/feed"
	"github.com/jask/simdash/internal/logging"
	"github.com/jask/simdash/internal/palette"
	"github.com/jask/simdash/internal/projector"
	"github.com/jask/simdash/internal/service"
	"github.com/jask/simdash/internal/testdata"
	"github.com/jask/simdash/internal/tui"
)

// Context is handed to every command's Run.
type Context struct {
	Ctx    context.Context
	Config config.Config
}

type CLI struct {
	Config   string `help:"Config file path (overrides SIMDASH_CONFIG)." type:"path"`
	LogLevel string `help:"Log level: debug, info, warn, error."`

	Run    RunCmd    `cmd:"" default:"1" help:"Open the live dashboard."`
	Watch  WatchCmd  `cmd:"" help:"Apply the push channel headlessly and log each change."`
	Export ExportCmd `cmd:"" help:"Render one chart to PNG."`
	Demo   DemoCmd   `cmd:"" help:"Serve a fake simulation backend for trying the dashboard."`
	Conf   ConfCmd   `cmd:"" name:"config" help:"Show or write the effective configuration."`
	Reset  ResetCmd  `cmd:"" help:"Delete all stored sessions and palettes."`
}

// engine is the state shared by the commands that talk to a backend.
type engine struct {
	store   *service.SessionStore
	monitor *service.Monitor
}

func openEngine(ctx context.Context, cfg config.Config) (*engine, error) {
	client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.BatchPath, cfg.Backend.DetailPath, cfg.Backend.Timeout)
	if err != nil {
		return nil, err
	}
	store, err := service.OpenSessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pal := palette.NewStore(store.KV, palette.Options{Key: cfg.Store.Key})
	if err := pal.Load(ctx); err != nil {
		logging.Warnf("restore palettes: %v", err)
	}
	return &engine{store: store, monitor: service.NewMonitor(chart.NewRegistry(), pal, client)}, nil
}

func (e *engine) close() {
	// the run context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Close(ctx); err != nil {
		logging.Warnf("close store: %v", err)
	}
}

func dialer(cfg config.Config) tui.DialFunc {
	return func(ctx context.Context) (feed.Conn, error) {
		conn, err := feed.Dial(ctx, cfg.Feed.URL, cfg.Feed.HandshakeTimeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

type RunCmd struct{}

func (r *RunCmd) Run(c *Context) error {
	if path := c.Config.Log.File; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		logging.SetOutput(f)
	}

	eng, err := openEngine(c.Ctx, c.Config)
	if err != nil {
		return err
	}
	defer eng.close()

	app := tui.New(c.Ctx, c.Config, eng.monitor, dialer(c.Config))
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(c.Ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

type WatchCmd struct {
	Seed bool `help:"Load the batch endpoint before listening." default:"true" negatable:""`
}

func (w *WatchCmd) Run(c *Context) error {
	eng, err := openEngine(c.Ctx, c.Config)
	if err != nil {
		return err
	}
	defer eng.close()
	mon := eng.monitor

	if w.Seed {
		if _, err := mon.Seed(c.Ctx); err != nil {
			return err
		}
	}
	mon.Subscribe(func(ch service.Change) {
		switch ch.Kind {
		case service.ChangeRejected:
			logging.Warnf("%s %s: %v", ch.Kind, ch.ID, ch.Err)
		case service.ChangeParseFailed, service.ChangeDisconnected:
			if ch.Err != nil {
				logging.Warnf("%s: %v", ch.Kind, ch.Err)
				return
			}
			logging.Infof("%s", ch.Kind)
		default:
			logging.Infof("%s %s", ch.Kind, ch.ID)
		}
	})

	conn, err := feed.Dial(c.Ctx, c.Config.Feed.URL, c.Config.Feed.HandshakeTimeout)
	if err != nil {
		return err
	}
	channel := feed.NewChannel(conn, feed.Options{AckParseFailures: c.Config.Feed.AckParseFailures})
	channel.Subscribe(func(ev feed.Event) { mon.Handle(c.Ctx, ev) })
	runErr := channel.Run(c.Ctx)

	fmt.Println(summaryTable(mon.Views(), terminalWidth()))
	if c.Ctx.Err() != nil {
		return nil
	}
	if runErr != nil {
		return runErr
	}
	return errors.New("push channel closed")
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 100
	}
	return w
}

func summaryTable(views []projector.RenderView, width int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("CHART", "SERIES", "STEPS", "FINAL VALUES").
		Width(width)
	for _, v := range views {
		finals := make([]string, 0, len(v.Series))
		for _, s := range v.Series {
			if n := len(s.Values); n > 0 {
				finals = append(finals, fmt.Sprintf("%s=%g", s.Label, s.Values[n-1]))
			}
		}
		t.Row(v.ID, fmt.Sprint(len(v.Series)), fmt.Sprint(len(v.Steps)), strings.Join(finals, " "))
	}
	return t.Render()
}

type ExportCmd struct {
	ID     string `arg:"" help:"Chart id (source file name)."`
	Output string `short:"o" help:"Output PNG path. Defaults to <id>.png." type:"path"`
	Width  int    `default:"1280" help:"Image width in pixels."`
	Height int    `default:"640" help:"Image height in pixels."`
}

func (e *ExportCmd) Run(c *Context) error {
	eng, err := openEngine(c.Ctx, c.Config)
	if err != nil {
		return err
	}
	defer eng.close()

	if _, err := eng.monitor.Seed(c.Ctx); err != nil {
		return err
	}
	v, ok := eng.monitor.View(e.ID)
	if !ok {
		if s, ok := eng.monitor.Suggest(e.ID); ok {
			return fmt.Errorf("unknown chart %q (did you mean %q?)", e.ID, s)
		}
		return fmt.Errorf("unknown chart %q", e.ID)
	}
	out := e.Output
	if out == "" {
		out = strings.TrimSuffix(filepath.Base(e.ID), filepath.Ext(e.ID)) + ".png"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := (service.Exporter{Width: e.Width, Height: e.Height}).RenderPNG(f, v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

type DemoCmd struct {
	Interval time.Duration `default:"500ms" help:"Time between simulated steps."`
	Seed     uint64        `default:"1" help:"Random seed."`
}

func (d *DemoCmd) Run(c *Context) error {
	cfg := c.Config
	sim := testdata.NewSim(d.Seed)

	apiAddr, err := hostPort(cfg.Backend.BaseURL)
	if err != nil {
		return err
	}
	pushAddr, err := hostPort(cfg.Feed.URL)
	if err != nil {
		return err
	}
	pushPath := "/"
	if u, _ := url.Parse(cfg.Feed.URL); u != nil && u.Path != "" {
		pushPath = u.Path
	}
	pushMux := http.NewServeMux()
	pushMux.Handle(pushPath, sim.PushHandler())

	servers := []*http.Server{
		{Addr: apiAddr, Handler: sim.Handler(cfg.Backend.BatchPath, cfg.Backend.DetailPath), ReadHeaderTimeout: 5 * time.Second},
		{Addr: pushAddr, Handler: pushMux, ReadHeaderTimeout: 5 * time.Second},
	}
	errc := make(chan error, len(servers)+1)
	for _, s := range servers {
		ln, err := net.Listen("tcp", s.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.Addr, err)
		}
		logging.Infof("demo listening on %s", s.Addr)
		go func(s *http.Server) {
			if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}(s)
	}
	go func() { errc <- sim.Run(c.Ctx, d.Interval) }()

	select {
	case <-c.Ctx.Done():
	case err = <-errc:
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sim.DisconnectAll()
	for _, s := range servers {
		_ = s.Shutdown(shutdown)
	}
	return err
}

func hostPort(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return u.Host, nil
}

type ConfCmd struct {
	Write bool `help:"Write the effective configuration to the config file."`
}

func (cc *ConfCmd) Run(c *Context) error {
	if cc.Write {
		if err := config.Save(c.Config); err != nil {
			return err
		}
		fmt.Println(config.Path())
		return nil
	}
	cfg := c.Config
	rows := [][]string{
		{"backend.base_url", cfg.Backend.BaseURL},
		{"backend.batch_path", cfg.Backend.BatchPath},
		{"backend.detail_path", cfg.Backend.DetailPath},
		{"backend.timeout", cfg.Backend.Timeout.String()},
		{"feed.url", cfg.Feed.URL},
		{"feed.handshake_timeout", cfg.Feed.HandshakeTimeout.String()},
		{"feed.ack_parse_failures", fmt.Sprint(cfg.Feed.AckParseFailures)},
		{"store.driver", cfg.Store.Driver},
		{"store.path", cfg.Store.Path},
		{"store.dir", cfg.Store.Dir},
		{"store.key", cfg.Store.Key},
		{"session.id", cfg.Session.ID},
		{"session.ttl", cfg.Session.TTL.String()},
		{"log.level", cfg.Log.Level},
		{"log.file", cfg.Log.File},
		{"ui.chart_height", fmt.Sprint(cfg.UI.ChartHeight)},
		{"ui.summary", cfg.UI.Summary},
	}
	fmt.Println(table.New().Border(lipgloss.NormalBorder()).Headers("KEY", "VALUE").Rows(rows...).Render())
	return nil
}

type ResetCmd struct {
	Yes bool `short:"y" help:"Do not ask for confirmation."`
}

func (r *ResetCmd) Run(c *Context) error {
	if !r.Yes {
		fmt.Print("Delete all stored sessions and palettes? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			return nil
		}
	}
	svc := &service.MaintenanceService{PrefsDir: c.Config.Store.Dir}
	if _, err := os.Stat(c.Config.Store.Path); err == nil {
		db, err := database.Prepare(c.Config.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		svc.DB = db
	}
	if err := svc.Reset(c.Ctx); err != nil {
		return err
	}
	fmt.Println("reset complete")
	return nil
}
