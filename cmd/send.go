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
	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/frame"
	"firestige.xyz/fabrictap/internal/handler"
	"firestige.xyz/fabrictap/internal/sender"
)

var sendFlags struct {
	protocol string
	dstIP    string
	dstMAC   string
	payload  string
	count    int
	interval time.Duration
	quiet    bool
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Build and transmit a RoCEv2 or NVMe/TCP frame",
	Long: `Build one frame from the send section of the configuration and write it
to the interface on a raw link-layer socket. Requires CAP_NET_RAW.

Examples:
  fabrictap send -i enp5s0                               # RoCEv2 "Hello RDMA!" to 192.168.1.200
  fabrictap send -i enp5s0 --protocol nvmetcp            # NVMe/TCP "Hello from NVMe/TCP!"
  fabrictap send -i enp5s0 --count 100 --interval 10ms   # 100 frames, 10ms apart`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadSendConfig(cmd)
		if err != nil {
			exitWithError("failed to load configuration", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := sender.New(sender.WithChecksums(cfg.Send.Checksums), sender.WithLogger(logrus.StandardLogger()))
		if err := runSend(ctx, cfg, s, os.Stdout, sendFlags.quiet); err != nil {
			exitWithError("send failed", err)
		}
	},
}

func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendFlags.protocol, "protocol", "", "rocev2 or nvmetcp, overrides send.protocol")
	f.StringVar(&sendFlags.dstIP, "dst-ip", "", "destination IP, overrides send.dst_ip")
	f.StringVar(&sendFlags.dstMAC, "dst-mac", "", "destination MAC, overrides send.dst_mac")
	f.StringVar(&sendFlags.payload, "payload", "", "payload text, overrides send.payload")
	f.IntVar(&sendFlags.count, "count", 0, "number of frames, overrides send.count")
	f.DurationVar(&sendFlags.interval, "interval", 0, "pause between frames, overrides send.interval")
	f.BoolVarP(&sendFlags.quiet, "quiet", "q", false, "do not print the frame before sending")
}

// loadSendConfig loads configuration and applies send flags. A protocol
// switch re-derives the protocol defaults for fields left unset.
func loadSendConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	s := &cfg.Send
	if cmd.Flags().Changed("protocol") && sendFlags.protocol != s.Protocol {
		s.Protocol = sendFlags.protocol
		s.SrcIP, s.DstIP, s.SrcPort, s.Payload = "", "", 0, ""
	}
	if sendFlags.dstIP != "" {
		s.DstIP = sendFlags.dstIP
	}
	if sendFlags.dstMAC != "" {
		s.DstMAC = sendFlags.dstMAC
	}
	if sendFlags.payload != "" {
		s.Payload = sendFlags.payload
		s.PayloadHex = ""
	}
	if sendFlags.count > 0 {
		s.Count = sendFlags.count
	}
	if cmd.Flags().Changed("interval") {
		s.Interval = sendFlags.interval
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSend(ctx context.Context, cfg *config.Config, s frameSender, out io.Writer, quiet bool) error {
	f, err := cfg.Send.Frame()
	if err != nil {
		return fmt.Errorf("build frame: %w", err)
	}

	if !quiet {
		handler.NewPrinter(out).Handle(showable(f))
	}

	if err := s.SendCount(ctx, cfg.Interface, f, cfg.Send.Count, cfg.Send.Interval); err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent %d frame(s) on %s: %s\n", cfg.Send.Count, cfg.Interface, f)
	return nil
}

// showable presents an outgoing frame in the same form as a captured one.
func showable(f frame.Frame) core.ClassifiedFrame {
	link := f.Link()
	link.EtherType = 0x0800
	if f.Network().Version() == 6 {
		link.EtherType = 0x86DD
	}
	return core.ClassifiedFrame{
		Link:      link,
		Network:   f.Network(),
		Transport: f.Transport(),
		Header:    f.Header(),
		Payload:   f.Payload(),
	}
}
