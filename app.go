package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/kwv/mlswarp/warp"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *warp.Config
	Source       image.Image
	StateTracker *warp.StateTracker
	MQTTClient   *warp.MQTTClient
	Publisher    *warp.Publisher
	Out          io.Writer

	// CLI flags (effectively dependencies)
	ConfigFile    string
	OutputFile    string
	Variant       string
	Workers       int
	BatchRows     int
	OverlayFormat string
	HttpPort      int
	MqttMode      bool
	HttpMode      bool

	// jobMu serializes jobs; each job already uses every configured worker
	jobMu sync.Mutex
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: warp.NewStateTracker(),
		Out:          os.Stdout,
		Workers:      -1,
		BatchRows:    -1,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.OutputFile = opts.OutputFile
	a.Variant = opts.Variant
	a.Workers = opts.Workers
	a.BatchRows = opts.BatchRows
	a.OverlayFormat = opts.OverlayFormat
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file and applies command line overrides
func (a *App) loadConfig() (*warp.Config, error) {
	config, err := warp.LoadConfig(a.ConfigFile)
	if err != nil {
		return nil, err
	}

	if a.Variant != "" {
		v, err := warp.ParseVariant(a.Variant)
		if err != nil {
			return nil, err
		}
		config.Variant = v
	}
	if a.Workers >= 0 {
		config.Workers = a.Workers
	}
	if a.BatchRows >= 0 {
		config.BatchRows = a.BatchRows
	}

	a.Config = config
	return config, nil
}

// outputPath returns --output if given, else fallback
func (a *App) outputPath(fallback string) string {
	if a.OutputFile != "" {
		return a.OutputFile
	}
	return fallback
}

// RunWarp warps the configured source image and writes the result
func (a *App) RunWarp() {
	config, err := a.loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	src, err := warp.LoadImage(config.Source)
	if err != nil {
		log.Fatalf("Failed to load source image: %v", err)
	}

	result, err := warp.RunJob(context.Background(), src, config, warp.JobFromConfig(config))
	if err != nil {
		log.Fatalf("Warp failed: %v", err)
	}

	output := a.outputPath(config.Output)
	if err := warp.SaveImage(output, result.Image); err != nil {
		log.Fatalf("Failed to save warped image: %v", err)
	}

	fmt.Fprintf(a.Out, "Warped %s (%dx%d, %s, %d control points) in %v\n",
		config.Source, result.Stats.Cols, result.Stats.Rows, result.Variant,
		len(config.ControlPoints), result.Duration)
	fmt.Fprintf(a.Out, "Max displacement: %.1f px, mean: %.2f px\n",
		result.Stats.MaxDisplacement, result.Stats.MeanDisplacement)
	if result.Stats.Degenerate > 0 {
		fmt.Fprintf(a.Out, "Degenerate fits: %d pixels (no unique local transform, translated by centroid offset)\n", result.Stats.Degenerate)
	}
	fmt.Fprintf(a.Out, "Saved to %s\n", output)
}

// RunOverlay renders control point displacements over the source image extent
func (a *App) RunOverlay() {
	config, err := a.loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rows, cols, err := warp.ImageSize(config.Source)
	if err != nil {
		log.Fatalf("Failed to read source image size: %v", err)
	}

	format := strings.ToLower(a.OverlayFormat)
	output := a.outputPath("overlay." + format)

	f, err := os.Create(output)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	renderer := warp.NewOverlayRenderer(rows, cols, config.ControlPoints)
	renderer.Caption = fmt.Sprintf("%s, %d points", config.Variant, len(config.ControlPoints))
	switch format {
	case "png":
		err = renderer.RenderToPNG(f)
	case "svg":
		err = renderer.RenderToSVG(f)
	default:
		log.Fatalf("Unknown overlay format %q (use svg or png)", a.OverlayFormat)
	}
	if err != nil {
		log.Fatalf("Failed to render overlay: %v", err)
	}

	fmt.Fprintf(a.Out, "Saved overlay of %d control points to %s\n", len(config.ControlPoints), output)
}

// RunStats computes the mapping without resampling and prints its statistics
func (a *App) RunStats() {
	config, err := a.loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rows, cols, err := warp.ImageSize(config.Source)
	if err != nil {
		log.Fatalf("Failed to read source image size: %v", err)
	}

	grid := warp.NewGrid(rows, cols)
	mapping, err := warp.NewDeformer(config.Options()).Deform(context.Background(), grid, config.ControlPointSet(), config.Variant)
	if err != nil {
		log.Fatalf("Deformation failed: %v", err)
	}

	stats := warp.Summarize(grid, mapping)
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		log.Fatalf("Failed to encode stats: %v", err)
	}
}

// RunExportPoints writes the configured control points as GeoJSON
func (a *App) RunExportPoints() {
	config, err := a.loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	output := a.outputPath("control-points.geojson")
	if err := warp.SaveControlPointsGeoJSON(output, config.ControlPoints); err != nil {
		log.Fatalf("Failed to export control points: %v", err)
	}
	fmt.Fprintf(a.Out, "Exported %d control points to %s\n", len(config.ControlPoints), output)
}

// processJob warps the service's source image for one job, records the result
// and publishes it when MQTT is active
func (a *App) processJob(ctx context.Context, job *warp.Job) (*warp.Result, error) {
	a.jobMu.Lock()
	defer a.jobMu.Unlock()

	result, err := warp.RunJob(ctx, a.Source, a.Config, job)
	if err != nil {
		a.StateTracker.RecordFailure(err)
		if a.Publisher != nil {
			if pubErr := a.Publisher.PublishError(job.ID, err); pubErr != nil {
				log.Printf("[MQTT] Error publishing failure for %s: %v", job.ID, pubErr)
			}
		}
		return nil, err
	}

	a.StateTracker.Update(result)
	log.Printf("[DEFORM] %s: %s, %d control points, max displacement %.1f px, %d degenerate, %v",
		result.JobID, result.Variant, len(job.ControlPoints),
		result.Stats.MaxDisplacement, result.Stats.Degenerate, result.Duration)

	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(result); err != nil {
			log.Printf("[MQTT] Error publishing result for %s: %v", result.JobID, err)
		}
	}
	return result, nil
}

// handleMQTTJob is the MQTT job handler
func (a *App) handleMQTTJob(job *warp.Job, err error) {
	if err != nil {
		a.StateTracker.RecordFailure(err)
		if a.Publisher != nil {
			if pubErr := a.Publisher.PublishError("", err); pubErr != nil {
				log.Printf("[MQTT] Error publishing failure: %v", pubErr)
			}
		}
		return
	}
	if _, err := a.processJob(context.Background(), job); err != nil {
		log.Printf("[DEFORM] %s failed: %v", job.ID, err)
	}
}

// RunService runs the MQTT and/or HTTP service until interrupted
func (a *App) RunService() {
	fmt.Fprintln(a.Out, "Starting mlswarp service...")

	config, err := a.loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v (looked at %s)", err, a.ConfigFile)
	}
	log.Printf("Loaded config from %s", a.ConfigFile)

	src, err := warp.LoadImage(config.Source)
	if err != nil {
		log.Fatalf("Failed to load source image: %v", err)
	}
	a.Source = src
	b := src.Bounds()
	log.Printf("Source image %s: %dx%d", config.Source, b.Dx(), b.Dy())

	// Warp with the configured control points so the endpoints have a result immediately
	if _, err := a.processJob(context.Background(), warp.JobFromConfig(config)); err != nil {
		log.Printf("Warning: initial warp failed: %v", err)
	}

	if a.MqttMode {
		mqttClient, err := warp.InitMQTT(config, a.handleMQTTJob)
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		if mqttClient == nil {
			log.Fatal("MQTT broker not configured in config.yaml")
		}
		a.MQTTClient = mqttClient
		a.Publisher = warp.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix)
		fmt.Fprintln(a.Out, "MQTT result publisher initialized")
	}

	if a.HttpMode {
		httpServer := newHTTPServer(a.StateTracker, a.processJob)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")

	if a.MqttMode {
		fmt.Fprintln(a.Out, "\nMQTT:")
		fmt.Fprintf(a.Out, "  Job requests: %s\n", config.MQTT.RequestTopic)
		fmt.Fprintf(a.Out, "  Results:      %s/{jobId}/image, %s/{jobId}/stats\n", a.Publisher.Prefix(), a.Publisher.Prefix())
		fmt.Fprintf(a.Out, "  Latest stats: %s/latest\n", a.Publisher.Prefix())
	}

	if a.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Fprintln(a.Out, "  GET  /health       - Health check")
		fmt.Fprintln(a.Out, "  POST /deform       - Warp with a JSON job, returns PNG")
		fmt.Fprintln(a.Out, "  GET  /warped.png   - Latest warped image")
		fmt.Fprintln(a.Out, "  GET  /overlay.svg  - Latest control point overlay")
		fmt.Fprintln(a.Out, "  GET  /stats.json   - Latest mapping statistics")
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(a.Out, "\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(a.Out, "Service stopped")
}
