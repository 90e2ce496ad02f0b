package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"firestige.xyz/fabrictap/internal/config"
	"firestige.xyz/fabrictap/internal/dispatch"
	"firestige.xyz/fabrictap/internal/handler"
	"firestige.xyz/fabrictap/internal/metrics"
	"firestige.xyz/fabrictap/internal/socket"
)

var sniffFlags struct {
	protocol  string
	port      uint16
	backend   string
	count     int
	hexdump   bool
	layerDump bool
	quiet     bool
}

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Capture and print RoCEv2 or NVMe/TCP frames",
	Long: `Open a capture handle on the interface, keep frames addressed to the selected
transport and destination port, decode their protocol header and print them.
Runs until interrupted or --count frames were printed. Requires CAP_NET_RAW.

Examples:
  fabrictap sniff -i enp5s0                          # RoCEv2 on UDP/4791
  fabrictap sniff -i enp5s0 --protocol tcp           # NVMe/TCP on TCP/4420
  fabrictap sniff -i enp5s0 --count 10 --hexdump     # stop after 10 frames
  fabrictap sniff -i enp5s0 --backend afpacket -q    # TPACKET_V3 ring, log only`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadSniffConfig(cmd)
		if err != nil {
			exitWithError("failed to load configuration", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Metrics.Enabled {
			srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, logrus.StandardLogger())
			if err := srv.Start(ctx); err != nil {
				exitWithError("failed to start metrics server", err)
			}
			defer stopMetrics(srv, logrus.StandardLogger())
		}

		open, err := socket.OpenerFor(cfg.Capture.Backend)
		if err != nil {
			exitWithError("invalid capture backend", err)
		}
		d := dispatch.New(
			dispatch.WithOpener(open),
			dispatch.WithSocketOptions(cfg.Capture.SocketOptions()),
			dispatch.WithQueueCapacity(cfg.Capture.QueueCapacity),
			dispatch.WithKernelFilter(cfg.Capture.KernelFilter),
			dispatch.WithLogger(logrus.StandardLogger()),
		)
		if err := runSniff(ctx, cfg, d, os.Stdout, sniffFlags.quiet); err != nil {
			exitWithError("sniff failed", err)
		}
	},
}

func init() {
	f := sniffCmd.Flags()
	f.StringVar(&sniffFlags.protocol, "protocol", "", "udp or tcp, overrides capture.protocol")
	f.Uint16Var(&sniffFlags.port, "port", 0, "destination port, overrides capture.port")
	f.StringVar(&sniffFlags.backend, "backend", "", "raw or afpacket, overrides capture.backend")
	f.IntVar(&sniffFlags.count, "count", 0, "stop after n frames, overrides capture.count")
	f.BoolVar(&sniffFlags.hexdump, "hexdump", false, "append a payload hex dump")
	f.BoolVar(&sniffFlags.layerDump, "layer-dump", false, "append the gopacket layer dump")
	f.BoolVarP(&sniffFlags.quiet, "quiet", "q", false, "log frames instead of printing them")
}

func loadSniffConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	c := &cfg.Capture
	if sniffFlags.protocol != "" {
		c.Protocol = sniffFlags.protocol
		if !cmd.Flags().Changed("port") {
			c.Port = 0
		}
	}
	if cmd.Flags().Changed("port") {
		c.Port = sniffFlags.port
	}
	if sniffFlags.backend != "" {
		c.Backend = sniffFlags.backend
	}
	if sniffFlags.count > 0 {
		c.Count = sniffFlags.count
	}
	if sniffFlags.hexdump {
		c.Hexdump = true
	}
	if sniffFlags.layerDump {
		c.LayerDump = true
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runSniff captures until ctx is done or the frame count is reached, then
// stops the capturer and prints its counters.
func runSniff(ctx context.Context, cfg *config.Config, c capturer, out io.Writer, quiet bool) error {
	sel, err := cfg.Capture.Selector()
	if err != nil {
		return err
	}

	var h handler.Handler
	var printer *handler.Printer
	if quiet {
		// The discarding printer only counts toward the frame limit.
		printer = handler.NewPrinter(io.Discard, handler.WithLimit(cfg.Capture.Count))
		h = handler.Multi(handler.NewLogger(logrus.StandardLogger()), printer)
	} else {
		printer = handler.NewPrinter(out,
			handler.WithLimit(cfg.Capture.Count),
			handler.WithHexdump(cfg.Capture.Hexdump),
			handler.WithLayerDump(cfg.Capture.LayerDump),
		)
		h = printer
	}

	fmt.Fprintf(out, "Sniffing %s on %s (Ctrl+C to stop)\n", sel, cfg.Interface)
	if err := c.Start(cfg.Interface, sel, h); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-printer.Done():
	}

	if err := c.Stop(); err != nil {
		return err
	}
	printStats(out, c.Stats())
	return nil
}

// stopMetrics shuts the metrics server down, logging a failed shutdown.
func stopMetrics(srv interface{ Stop(context.Context) error }, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.WithError(err).Warn("metrics server shutdown failed")
	}
}

func printStats(out io.Writer, st dispatch.Stats) {
	fmt.Fprintln(out, "Capture statistics:")
	fmt.Fprintf(out, "  captured:       %d\n", st.Captured)
	fmt.Fprintf(out, "  matched:        %d\n", st.Matched)
	fmt.Fprintf(out, "  unmatched:      %d\n", st.Unmatched)
	fmt.Fprintf(out, "  truncated:      %d\n", st.Truncated)
	fmt.Fprintf(out, "  handled:        %d\n", st.Handled)
	fmt.Fprintf(out, "  dropped:        %d\n", st.Dropped)
	fmt.Fprintf(out, "  discarded:      %d\n", st.Discarded)
	if st.HandlerPanics > 0 {
		fmt.Fprintf(out, "  handler panics: %d\n", st.HandlerPanics)
	}
	if st.ReadErrors > 0 {
		fmt.Fprintf(out, "  read errors:    %d\n", st.ReadErrors)
	}
	if st.KernelDrops > 0 {
		fmt.Fprintf(out, "  kernel drops:   %d\n", st.KernelDrops)
	}
}
