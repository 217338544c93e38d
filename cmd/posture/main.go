// Posture Police watches the webcam and beeps when you slouch for too long.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/posture-police/internal/config"
	plog "github.com/teslashibe/posture-police/internal/log"
	"github.com/teslashibe/posture-police/pkg/app"
)

func main() {
	cfg, loader := parseFlags()

	plog.Init(cfg.Log.Level, cfg.Log.Format)

	a, err := app.New(cfg, loader)
	if err != nil {
		fatal("configuration error", err)
	}
	if err := a.Init(); err != nil {
		fatal("initialization failed", err)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		plog.Error("runtime error", "error", err)
	}
}

// parseFlags pins the flags given on the command line over the config file
// and environment, then loads the result.
func parseFlags() (*config.Config, *config.Loader) {
	configPath := flag.String("config", "", "Config file (default: ./posture.yaml if present)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	sensitivity := flag.Int("sensitivity", 0, "Sensitivity 1-10, higher is stricter")
	delay := flag.Duration("delay", 0, "Bad posture time before the alarm, 1s-60s")
	cameraOn := flag.Bool("camera", false, "Start the camera immediately")
	device := flag.Int("device", 0, "Camera device index")
	backend := flag.String("pose", "", "Pose backend: openpose or movenet")
	model := flag.String("model", "", "Pose model path")
	port := flag.Int("port", 0, "Dashboard port")
	noWeb := flag.Bool("no-web", false, "Disable the web dashboard")
	desktopUI := flag.Bool("desktop", false, "Open the desktop window")
	alertBackend := flag.String("alert", "", "Alert backend: auto, aplay, afplay, bell, mock")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			if *debug {
				loader.Override("log.level", "debug")
			}
		case "sensitivity":
			loader.Override("monitor.sensitivity", *sensitivity)
		case "delay":
			loader.Override("monitor.alarm_delay", *delay)
		case "camera":
			loader.Override("monitor.camera_on_start", *cameraOn)
		case "device":
			loader.Override("camera.device", *device)
		case "pose":
			loader.Override("pose.backend", *backend)
		case "model":
			loader.Override("pose.model_path", *model)
		case "port":
			loader.Override("web.port", *port)
		case "no-web":
			loader.Override("web.enabled", !*noWeb)
		case "desktop":
			loader.Override("desktop.enabled", *desktopUI)
		case "alert":
			loader.Override("alert.backend", *alertBackend)
		}
	})

	cfg, err := loader.Load()
	if err != nil {
		fatal("configuration error", err)
	}
	return cfg, loader
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "posture: %s: %v\n", msg, err)
	os.Exit(1)
}
