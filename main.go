package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile    string
	OutputFile    string
	Variant       string
	Workers       int
	BatchRows     int
	OverlayFormat string
	HttpPort      int

	Warp         bool
	Overlay      bool
	Stats        bool
	ExportPoints bool
	MqttMode     bool
	HttpMode     bool
}

// Runner is the set of modes the command line can dispatch to
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunWarp()
	RunOverlay()
	RunStats()
	RunExportPoints()
	RunService()
}

// run parses args and dispatches to the selected mode on app
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("mlswarp", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.OutputFile, "output", "", "Output file (default: config output, overlay.svg or control-points.geojson)")
	fs.StringVar(&opts.Variant, "variant", "", "Override transform family: affine, similarity or rigid")
	fs.IntVar(&opts.Workers, "workers", -1, "Override number of concurrent row batches (0 = GOMAXPROCS)")
	fs.IntVar(&opts.BatchRows, "batch-rows", -1, "Override rows per batch (0 = whole image at once)")
	fs.StringVar(&opts.OverlayFormat, "overlay-format", "svg", "Overlay format: svg or png")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.Warp, "warp", false, "Warp the configured source image and exit")
	fs.BoolVar(&opts.Overlay, "overlay", false, "Render control point displacements and exit")
	fs.BoolVar(&opts.Stats, "stats", false, "Print mapping statistics as JSON and exit")
	fs.BoolVar(&opts.ExportPoints, "export-points", false, "Write control points as GeoJSON and exit")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode, warping on job requests")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for jobs and results")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "mlswarp version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.Warp:
		app.RunWarp()
	case opts.Overlay:
		app.RunOverlay()
	case opts.Stats:
		app.RunStats()
	case opts.ExportPoints:
		app.RunExportPoints()
	case opts.MqttMode || opts.HttpMode:
		app.RunService()
	default:
		fmt.Fprintln(out, "No mode selected")
		fmt.Fprintln(out, "Use --warp to warp the configured source image")
		fmt.Fprintln(out, "Use --overlay to render control point displacements")
		fmt.Fprintln(out, "Use --stats to print mapping statistics")
		fmt.Fprintln(out, "Use --export-points to write control points as GeoJSON")
		fmt.Fprintln(out, "Use --mqtt and/or --http to run the service")
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
}
