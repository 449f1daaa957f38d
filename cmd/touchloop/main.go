package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gioui.org/f32"
	"github.com/phuslu/log"
	"github.com/spf13/pflag"

	"go.yuchanns.xyz/touchloop"
	_ "go.yuchanns.xyz/touchloop/postproc/script"
	_ "go.yuchanns.xyz/touchloop/provider/evdev"
	_ "go.yuchanns.xyz/touchloop/provider/xinput"
)

var (
	providers  []string
	modules    []string
	showFPS    bool
	size       string
	save       bool
	configPath string
	logLevel   string
	frames     uint64
)

func init() {
	pflag.StringArrayVarP(&providers, "provider", "p", nil, "add an input provider, id:backend[,args]")
	pflag.StringArrayVarP(&modules, "module", "m", nil, "enable a post-processing module, \"list\" prints them")
	pflag.BoolVarP(&showFPS, "fps", "F", false, "log the frame rate every second")
	pflag.StringVar(&size, "size", "", "window size, WxH")
	pflag.BoolVarP(&save, "save", "s", false, "write the merged configuration back")
	pflag.StringVar(&configPath, "config", touchloop.ConfigPath(), "configuration file")
	pflag.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pflag.Uint64Var(&frames, "frames", 0, "stop after that many frames")
}

func main() {
	pflag.Parse()

	conf, err := touchloop.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	if logLevel != "" {
		conf.Log.Level = logLevel
	}
	touchloop.SetupLogging(conf.Log.Level)

	for _, m := range modules {
		if m == "list" {
			fmt.Println("Available post-processing modules:")
			for _, name := range touchloop.PostProcNames() {
				fmt.Printf("  %s\n", name)
			}
			fmt.Println("Available providers:")
			for _, name := range touchloop.ProviderBackends() {
				fmt.Printf("  %s\n", name)
			}
			return
		}
	}

	if err := applyFlags(conf); err != nil {
		log.Fatal().Err(err).Msg("invalid arguments")
	}
	if save {
		if err := touchloop.WriteConfig(configPath, conf); err != nil {
			log.Fatal().Err(err).Msg("save configuration")
		}
		log.Info().Str("path", configPath).Msg("Configuration saved")
	}

	if err := run(conf); err != nil {
		log.Fatal().Err(err).Msg("touchloop failed")
	}
}

func applyFlags(conf *touchloop.Config) error {
	for _, p := range providers {
		spec, err := touchloop.ParseProviderSpec(p)
		if err != nil {
			return err
		}
		conf.AddProvider(spec)
	}
	for _, m := range modules {
		for _, name := range strings.Split(m, ",") {
			if name = strings.TrimSpace(name); name != "" {
				conf.PostProc.Modules = append(conf.PostProc.Modules, name)
			}
		}
	}
	if showFPS {
		conf.App.ShowFPS = true
	}
	if size != "" {
		w, h, err := touchloop.ParseSize(size)
		if err != nil {
			return err
		}
		conf.Window.Width, conf.Window.Height = w, h
	}
	return nil
}

func run(conf *touchloop.Config) error {
	app := touchloop.NewApp()
	app.ShowEventStats = conf.App.ShowEventStats
	app.Exceptions.Add(touchloop.SuppressPanics())

	for _, p := range touchloop.BuildProviders(conf.ProviderSpecs()) {
		app.AddProvider(p)
	}
	if len(app.Providers()) == 0 {
		log.Warn().Msg("No input provider configured, use -p id:backend[,args]")
	}

	loop := app.Loop()
	for _, name := range conf.PostProc.Modules {
		mod, err := touchloop.NewPostProc(name, conf.PostProc)
		if err != nil {
			return err
		}
		if c, ok := mod.(interface{ Close() }); ok {
			defer c.Close()
		}
		loop.AddPostProc(mod)
		log.Info().Str("module", name).Msg("Post-processing module enabled")
	}

	win := touchloop.NewHeadlessWindow(app.Tree, float32(conf.Window.Width), float32(conf.Window.Height))
	win.MaxFPS = conf.App.MaxFPS
	win.MaxFrames = frames
	tr := &tracer{tree: app.Tree}
	tr.id, _ = win.AddWidget("tracer", f32.Pt(0, 0), win.Size(), tr)
	app.SetWindow(win)
	app.AddListener(win)

	if conf.App.ShowFPS {
		app.Clock.ScheduleInterval(touchloop.CallbackFunc(func(time.Duration) bool {
			log.Info().Msgf("FPS %.1f, %d touches", app.Clock.FPS(), len(app.Touches()))
			return true
		}), time.Second)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	// the loop is single goroutine; the signal is polled once per frame
	app.Clock.ScheduleInterval(touchloop.CallbackFunc(func(time.Duration) bool {
		select {
		case <-sigs:
			app.Stop()
			return false
		default:
			return true
		}
	}), 0)

	return app.Run(false)
}

// tracer grabs every touch starting on it and logs its path in its own
// coordinates.
type tracer struct {
	tree *touchloop.Tree
	id   touchloop.WidgetID
}

func (tr *tracer) OnTouchDown(t *touchloop.Touch) bool {
	t.Grab(tr.id)
	log.Info().Int64("touch", t.ID).Str("device", t.Device).
		Str("widget", tr.tree.Name(tr.id)).
		Bool("doubletap", t.IsDoubleTap).
		Msgf("down at (%.1f, %.1f)", t.X, t.Y)
	return true
}

func (tr *tracer) OnTouchMove(t *touchloop.Touch) bool {
	if t.GrabCurrent != tr.id {
		return false
	}
	log.Debug().Msgf("touch %d moved to (%.1f, %.1f)", t.ID, t.X, t.Y)
	return true
}

func (tr *tracer) OnTouchUp(t *touchloop.Touch) bool {
	if t.GrabCurrent != tr.id {
		return false
	}
	t.Ungrab(tr.id)
	log.Info().Int64("touch", t.ID).
		Dur("held", time.Since(t.TimeStart)).
		Msgf("up at (%.1f, %.1f)", t.X, t.Y)
	return true
}
