// The relay command runs the websocket rendezvous server that the networked
// simulation nodes exchange frames through.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/tcms/relay"
)

var (
	addrFlag     string
	lossFlag     float64
	minDelayFlag time.Duration
	maxDelayFlag time.Duration
	verboseFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the message bus relay server.",
	Long: `Run the message bus relay server. Registered nodes send frames ` +
		`addressed to a target node; the relay forwards each frame after a ` +
		`loss draw and a uniformly sampled delay.`,
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	defaultAddr := os.Getenv("TCMS_RELAY_ADDR")
	if defaultAddr == "" {
		defaultAddr = relay.DefaultAddr
	}

	rootCmd.Flags().StringVar(&addrFlag, "addr",
		defaultAddr, "address to listen on")
	rootCmd.Flags().Float64Var(&lossFlag, "loss",
		relay.DefaultLossProbability, "probability that a frame is dropped")
	rootCmd.Flags().DurationVar(&minDelayFlag, "min-delay",
		relay.DefaultMinDelay, "minimum forwarding delay")
	rootCmd.Flags().DurationVar(&maxDelayFlag, "max-delay",
		relay.DefaultMaxDelay, "maximum forwarding delay")
	rootCmd.Flags().BoolVar(&verboseFlag, "verbose",
		false, "log dropped and forwarded frames")
}

func run() {
	log := logrus.New()
	if verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}

	server := relay.MakeServerBuilder().
		WithAddr(addrFlag).
		WithLossProbability(lossFlag).
		WithDelayBounds(minDelayFlag, maxDelayFlag).
		WithLogger(log).
		Build()

	if err := server.Start(); err != nil {
		log.WithError(err).Fatal("cannot start relay server")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := server.Shutdown(); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("cannot load .env file")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
