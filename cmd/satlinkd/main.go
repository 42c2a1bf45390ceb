package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/signalsfoundry/satlink/core"
	"github.com/signalsfoundry/satlink/internal/comms"
	"github.com/signalsfoundry/satlink/internal/logging"
	"github.com/signalsfoundry/satlink/internal/observability"
	"github.com/signalsfoundry/satlink/model"
	"github.com/signalsfoundry/satlink/timectrl"
)

func main() {
	duration := flag.Duration("duration", 60*time.Second, "total run duration (0 = run until killed)")
	tick := flag.Duration("tick", 1*time.Second, "tick interval for orbit propagation and expiry sweeps")
	accelerated := flag.Bool("accelerated", false, "run the tick loop in accelerated mode (vs real-time)")
	scenarioPath := flag.String("scenario", "configs/constellation.json", "constellation scenario file")
	metricsAddr := flag.String("metrics-addr", ":9464", "listen address for the /metrics endpoint")
	demo := flag.Bool("demo", true, "register a demo terminal and exercise the link")
	flag.Parse()

	ctx := context.Background()
	log := logging.NewFromEnv()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		panic(fmt.Errorf("init tracing: %w", err))
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	linkMetrics, err := observability.NewLinkCollector(nil)
	if err != nil {
		panic(fmt.Errorf("register link metrics: %w", err))
	}
	passMetrics, err := observability.NewPassCollector(nil)
	if err != nil {
		panic(fmt.Errorf("register pass metrics: %w", err))
	}

	// ==== Constellation setup ====

	sats := core.NewSatelliteRegistry()
	stations := core.NewGroundStationRegistry()

	f, err := os.Open(*scenarioPath)
	if err != nil {
		panic(fmt.Errorf("open scenario %q: %w", *scenarioPath, err))
	}
	scenario, err := core.LoadConstellation(sats, stations, f)
	f.Close()
	if err != nil {
		panic(fmt.Errorf("load scenario: %w", err))
	}
	log.Info(ctx, "constellation loaded",
		logging.Int("satellites", len(scenario.SatelliteIDs)),
		logging.Int("ground_stations", len(scenario.StationIDs)),
	)

	svc := comms.NewService(sats, stations,
		comms.WithLogger(log),
		comms.WithMetrics(linkMetrics),
	)
	defer svc.Close()

	svc.Subscribe(func(ev comms.Event) {
		log.Info(ctx, "link event",
			logging.String("event", string(ev.Type)),
			logging.String("terminal_id", ev.TerminalID),
		)
	})

	// ==== Metrics endpoint ====

	mux := http.NewServeMux()
	mux.Handle("/metrics", linkMetrics.Handler())
	go func() {
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "metrics server failed", logging.String("error", err.Error()))
		}
	}()
	log.Info(ctx, "metrics endpoint up", logging.String("addr", *metricsAddr))

	// ==== Tick loop ====

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), *tick, mode)

	predictor := core.NewPassPredictor(sats, nil)
	tc.AddListener(func(simTime time.Time) {
		sats.Tick(simTime)
		if n := svc.ExpireStale(simTime); n > 0 {
			log.Info(ctx, "expired stale messages", logging.Int("count", n))
		}
	})

	if *demo {
		runDemo(ctx, log, svc, predictor, passMetrics)
	}

	fmt.Printf("satlinkd running: duration=%s tick=%s mode=%v\n", *duration, *tick, mode)
	<-tc.Start(*duration)

	stats := svc.Statistics("")
	fmt.Printf("shutdown: %d terminals, %d messages, %d active SOS alerts\n",
		stats.Terminals, stats.Messages, stats.ActiveSOSAlerts)
}

// runDemo registers one handheld terminal in the Sierra Nevada
// backcountry and walks it through the main flows: connect, a position
// report, a pass prediction and an SOS round trip.
func runDemo(ctx context.Context, log logging.Logger, svc *comms.Service, predictor *core.PassPredictor, passMetrics *observability.PassCollector) {
	loc := model.Location{Latitude: 36.578, Longitude: -118.292, AccuracyM: 8}

	term, err := svc.RegisterTerminal(ctx, comms.TerminalSpec{
		Name:     "demo-handheld",
		Type:     model.TerminalHandheld,
		Network:  model.NetworkIridium,
		Location: loc,
		Capabilities: model.TerminalCapabilities{
			Data: true, SMS: true, SOS: true, GPS: true,
		},
		Plan:               "emergency-basic",
		DataAllowanceBytes: 1 << 20,
	})
	if err != nil {
		log.Error(ctx, "demo terminal registration failed", logging.String("error", err.Error()))
		return
	}

	if _, err := svc.Connect(ctx, term.ID); err != nil {
		log.Warn(ctx, "demo connect failed", logging.String("error", err.Error()))
		return
	}

	if _, err := svc.SendMessage(ctx, term.ID, comms.SendRequest{
		Type:        model.MessagePosition,
		Destination: "basecamp",
		Content:     fmt.Sprintf("position lat=%.4f lon=%.4f", loc.Latitude, loc.Longitude),
	}); err != nil {
		log.Warn(ctx, "demo position report failed", logging.String("error", err.Error()))
	}

	start := time.Now()
	passes := predictor.Predict(time.Now().UTC(), loc, 6*time.Hour)
	passMetrics.ObservePrediction(time.Since(start), len(passes))
	for _, p := range passes {
		fmt.Printf("pass %-12s %s -> %s elev=%4.1f quality=%s\n",
			p.SatelliteID,
			p.Start.Format(time.RFC3339),
			p.End.Format(time.RFC3339),
			p.MaxElevationDeg,
			p.Quality,
		)
	}

	alert, err := svc.SendSOS(ctx, term.ID, comms.SOSRequest{
		Type:    model.SOSTest,
		Message: "demo alert, no action required",
	})
	if err != nil {
		log.Warn(ctx, "demo sos failed", logging.String("error", err.Error()))
		return
	}
	if err := svc.CancelSOS(ctx, alert.ID, "demo complete"); err != nil {
		log.Warn(ctx, "demo sos cancel failed", logging.String("error", err.Error()))
	}
}
