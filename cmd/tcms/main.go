// The tcms command runs the train control and monitoring simulation, either
// on a local in-process bus or against a relay server.
package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/tcms/bus"
	"github.com/sarchlab/tcms/datarecording"
	"github.com/sarchlab/tcms/monitoring"
	"github.com/sarchlab/tcms/node"
	"github.com/sarchlab/tcms/relay"
	"github.com/sarchlab/tcms/sim"
	"github.com/sarchlab/tcms/tcms"
)

var (
	durationFlag  float64
	seedFlag      int64
	lossFlag      float64
	minDelayFlag  float64
	maxDelayFlag  float64
	relayFlag     string
	monitorFlag   bool
	monitorPort   int
	openDashboard bool
	recordFlag    string
	autoStartFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "tcms",
	Short: "Run the train control and monitoring simulation.",
	Long: `Run the train control and monitoring simulation. The train, its ` +
		`sensors and actuators, and the control unit exchange messages over ` +
		`a lossy, delayed bus. By default the bus is simulated in-process; ` +
		`with --relay the messages go through a relay server instead.`,
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.Flags().Float64Var(&durationFlag, "duration",
		envFloat("TCMS_DURATION", 60), "simulated seconds to run")
	rootCmd.Flags().Int64Var(&seedFlag, "seed",
		1, "seed for the wind, channel, and boarding draws")
	rootCmd.Flags().Float64Var(&lossFlag, "loss",
		bus.DefaultLossProbability, "loss probability of the local bus")
	rootCmd.Flags().Float64Var(&minDelayFlag, "min-delay",
		float64(bus.DefaultMinDelay), "minimum bus delay in seconds")
	rootCmd.Flags().Float64Var(&maxDelayFlag, "max-delay",
		float64(bus.DefaultMaxDelay), "maximum bus delay in seconds")
	rootCmd.Flags().StringVar(&relayFlag, "relay",
		os.Getenv("TCMS_RELAY"),
		"relay websocket URL, e.g. ws://localhost:8765; empty for local bus")
	rootCmd.Flags().BoolVar(&monitorFlag, "monitor",
		false, "start the monitoring server")
	rootCmd.Flags().IntVar(&monitorPort, "monitor-port",
		0, "port of the monitoring server, 0 for a random port")
	rootCmd.Flags().BoolVar(&openDashboard, "open-dashboard",
		false, "open the monitoring page in the browser")
	rootCmd.Flags().StringVar(&recordFlag, "record",
		os.Getenv("TCMS_RECORD"),
		"record traces into the named SQLite database")
	rootCmd.Flags().BoolVar(&autoStartFlag, "auto-start",
		true, "press Start Moving at the beginning of the run")
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	return fallback
}

func run() {
	log := logrus.New()
	engine := sim.NewSerialEngine()

	builder := tcms.MakeBuilder().
		WithEngine(engine).
		WithSeed(seedFlag).
		WithLossProbability(lossFlag).
		WithDelayBounds(
			sim.VTimeInSec(minDelayFlag), sim.VTimeInSec(maxDelayFlag))

	var client *relay.Client
	if relayFlag != "" {
		client = relay.MakeClientBuilder().
			WithChannel("SimulationBus").
			WithURL(relayFlag).
			WithLogger(log).
			WithReportSenders(node.SpeedSensorID,
				node.StationSensorID, node.PassengerSensorID).
			Build()
		defer client.Close()

		builder = builder.WithBus(client)
	}

	scheduler := builder.Build("TCMS")
	scheduler.Start()

	setUpRecording(engine, scheduler)
	setUpMonitoring(engine, scheduler)

	if autoStartFlag {
		scheduler.PressButton(node.ButtonStartMoving)
	}

	if client != nil {
		runPaced(engine, log)
	} else {
		if err := engine.RunUntil(sim.VTimeInSec(durationFlag)); err != nil {
			log.WithError(err).Fatal("simulation failed")
		}
	}

	log.WithField("time", engine.CurrentTime()).Info("simulation finished")
	atexit.Exit(0)
}

// runPaced advances virtual time in lockstep with the wall clock, so the
// relayed messages experience their real network delay.
func runPaced(engine sim.Engine, log *logrus.Logger) {
	period := tcms.ControlLoopFreq.Period()
	horizon := sim.VTimeInSec(durationFlag)

	for now := sim.VTimeInSec(0); now < horizon; now += period {
		if err := engine.RunUntil(now); err != nil {
			log.WithError(err).Fatal("simulation failed")
		}

		time.Sleep(time.Duration(float64(period) * float64(time.Second)))
	}
}

func setUpRecording(engine sim.Engine, scheduler *tcms.Scheduler) {
	if recordFlag == "" {
		return
	}

	recorder := datarecording.New(recordFlag)

	if transport := scheduler.Transport(); transport != nil {
		transport.AcceptHook(datarecording.NewBusTracer(engine, recorder))
	}

	engine.AcceptHook(datarecording.NewTelemetryTracer(
		engine, recorder, scheduler.Train(), 1.0))
}

func setUpMonitoring(engine sim.Engine, scheduler *tcms.Scheduler) {
	if !monitorFlag {
		return
	}

	monitor := monitoring.NewMonitor()
	if monitorPort != 0 {
		monitor = monitor.WithPortNumber(monitorPort)
	}
	if openDashboard {
		monitor = monitor.WithDashboardOpening()
	}

	monitor.RegisterEngine(engine)
	monitor.RegisterScheduler(scheduler)
	monitor.StartServer()
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("cannot load .env file")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
