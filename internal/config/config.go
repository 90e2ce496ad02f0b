// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/fabrictap/internal/core"
)

// Config represents the top-level configuration.
// Maps to the `fabrictap:` root key in YAML.
type Config struct {
	Interface string        `mapstructure:"interface"`
	Log       LogConfig     `mapstructure:"log"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
	Capture   CaptureConfig `mapstructure:"capture"`
	Send      SendConfig    `mapstructure:"send"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // trace / debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text / pattern
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations. Stdout is always on.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Capture ───

// CaptureConfig configures the dispatch loop.
type CaptureConfig struct {
	Backend       string        `mapstructure:"backend"`  // raw | afpacket
	Protocol      string        `mapstructure:"protocol"` // udp | tcp
	Port          uint16        `mapstructure:"port"`     // 0 = well-known port of protocol
	QueueCapacity int           `mapstructure:"queue_capacity"`
	SnapLen       int           `mapstructure:"snap_len"`
	BufferSizeMB  int           `mapstructure:"buffer_size_mb"` // afpacket only
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
	Promiscuous   bool          `mapstructure:"promiscuous"`
	KernelFilter  bool          `mapstructure:"kernel_filter"`
	Count         int           `mapstructure:"count"` // 0 = until interrupted
	Hexdump       bool          `mapstructure:"hexdump"`
	LayerDump     bool          `mapstructure:"layer_dump"`
}

// ─── Send ───

// SendConfig describes the frame built by `fabrictap send`. Empty address
// and port fields take the defaults of the selected protocol.
type SendConfig struct {
	Protocol   string        `mapstructure:"protocol"` // rocev2 | nvmetcp
	SrcMAC     string        `mapstructure:"src_mac"`
	DstMAC     string        `mapstructure:"dst_mac"`
	SrcIP      string        `mapstructure:"src_ip"`
	DstIP      string        `mapstructure:"dst_ip"`
	SrcPort    uint16        `mapstructure:"src_port"`
	DstPort    uint16        `mapstructure:"dst_port"`
	TTL        uint8         `mapstructure:"ttl"`
	RoceV2     RoceV2Config  `mapstructure:"rocev2"`
	NvmeTcp    NvmeTcpConfig `mapstructure:"nvmetcp"`
	Payload    string        `mapstructure:"payload"`
	PayloadHex string        `mapstructure:"payload_hex"` // overrides payload
	Count      int           `mapstructure:"count"`
	Interval   time.Duration `mapstructure:"interval"`
	Checksums  bool          `mapstructure:"checksums"`
}

// RoceV2Config holds RoCEv2 header fields.
type RoceV2Config struct {
	Version   uint8  `mapstructure:"version"`
	Opcode    uint8  `mapstructure:"opcode"`
	QueuePair uint16 `mapstructure:"queue_pair"`
	PSN       uint32 `mapstructure:"psn"`
}

// NvmeTcpConfig holds NVMe/TCP header fields. Length is always derived from the payload.
type NvmeTcpConfig struct {
	PDUType uint8 `mapstructure:"pdu_type"`
	Flags   uint8 `mapstructure:"flags"`
}

// Send protocol names.
const (
	SendRoceV2  = "rocev2"
	SendNvmeTcp = "nvmetcp"
)

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `fabrictap: ...`.
type configRoot struct {
	Fabrictap Config `mapstructure:"fabrictap"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment only. Env vars use the FABRICTAP_ prefix
// (e.g., FABRICTAP_LOG_LEVEL, FABRICTAP_SEND_DST_IP).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "fabrictap.log.level" → env "FABRICTAP_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Fabrictap

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "fabrictap." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("fabrictap.interface", "enp5s0")

	// Log defaults
	v.SetDefault("fabrictap.log.level", "info")
	v.SetDefault("fabrictap.log.format", "text")
	v.SetDefault("fabrictap.log.pattern", "%time [%level] %caller: %msg %field\n")
	v.SetDefault("fabrictap.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("fabrictap.log.outputs.file.enabled", false)
	v.SetDefault("fabrictap.log.outputs.file.path", "/var/log/fabrictap/fabrictap.log")
	v.SetDefault("fabrictap.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("fabrictap.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("fabrictap.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("fabrictap.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("fabrictap.metrics.enabled", false)
	v.SetDefault("fabrictap.metrics.listen", ":9092")
	v.SetDefault("fabrictap.metrics.path", "/metrics")

	// Capture defaults
	v.SetDefault("fabrictap.capture.backend", "raw")
	v.SetDefault("fabrictap.capture.protocol", "udp")
	v.SetDefault("fabrictap.capture.port", 0)
	v.SetDefault("fabrictap.capture.queue_capacity", 1024)
	v.SetDefault("fabrictap.capture.snap_len", 65535)
	v.SetDefault("fabrictap.capture.buffer_size_mb", 8)
	v.SetDefault("fabrictap.capture.poll_timeout", "100ms")
	v.SetDefault("fabrictap.capture.promiscuous", true)
	v.SetDefault("fabrictap.capture.kernel_filter", true)
	v.SetDefault("fabrictap.capture.count", 0)
	v.SetDefault("fabrictap.capture.hexdump", false)
	v.SetDefault("fabrictap.capture.layer_dump", false)

	// Send defaults
	v.SetDefault("fabrictap.send.protocol", SendRoceV2)
	v.SetDefault("fabrictap.send.src_mac", "00:11:22:33:44:55")
	v.SetDefault("fabrictap.send.dst_mac", "ff:ff:ff:ff:ff:ff")
	v.SetDefault("fabrictap.send.src_ip", "")
	v.SetDefault("fabrictap.send.dst_ip", "")
	v.SetDefault("fabrictap.send.src_port", 0)
	v.SetDefault("fabrictap.send.dst_port", 0)
	v.SetDefault("fabrictap.send.ttl", 64)
	v.SetDefault("fabrictap.send.rocev2.version", core.RoceV2Version)
	v.SetDefault("fabrictap.send.rocev2.opcode", core.OpcodeWrite)
	v.SetDefault("fabrictap.send.rocev2.queue_pair", 123)
	v.SetDefault("fabrictap.send.rocev2.psn", 456)
	v.SetDefault("fabrictap.send.nvmetcp.pdu_type", 0x01)
	v.SetDefault("fabrictap.send.nvmetcp.flags", 0x00)
	v.SetDefault("fabrictap.send.payload", "")
	v.SetDefault("fabrictap.send.payload_hex", "")
	v.SetDefault("fabrictap.send.count", 1)
	v.SetDefault("fabrictap.send.interval", "0s")
	v.SetDefault("fabrictap.send.checksums", true)
}

// sendProfile holds the per-protocol addressing used when fields are left empty.
type sendProfile struct {
	srcIP, dstIP string
	srcPort      uint16
	payload      string
}

var sendProfiles = map[string]sendProfile{
	SendRoceV2:  {srcIP: "192.168.0.4", dstIP: "192.168.1.200", srcPort: 12345, payload: "Hello RDMA!"},
	SendNvmeTcp: {srcIP: "192.168.0.10", dstIP: "192.168.0.20", srcPort: 50000, payload: "Hello from NVMe/TCP!"},
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "pattern":
	default:
		return fmt.Errorf("%w: invalid log format: %s (must be json/text/pattern)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Capture validation ──
	c := &cfg.Capture
	if c.Backend != "raw" && c.Backend != "afpacket" {
		return fmt.Errorf("%w: unsupported capture.backend: %s (must be raw/afpacket)", core.ErrConfigInvalid, c.Backend)
	}
	if _, err := c.Selector(); err != nil {
		return err
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: capture.queue_capacity must be positive", core.ErrConfigInvalid)
	}
	if c.SnapLen <= 0 || c.SnapLen > 262144 {
		return fmt.Errorf("%w: capture.snap_len out of range: %d", core.ErrConfigInvalid, c.SnapLen)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("%w: capture.poll_timeout must be positive", core.ErrConfigInvalid)
	}
	if c.Count < 0 {
		return fmt.Errorf("%w: capture.count must not be negative", core.ErrConfigInvalid)
	}

	// ── Send defaults ──
	s := &cfg.Send
	s.Protocol = strings.ToLower(s.Protocol)
	profile, ok := sendProfiles[s.Protocol]
	if !ok {
		return fmt.Errorf("%w: unsupported send.protocol: %s (must be rocev2/nvmetcp)", core.ErrConfigInvalid, s.Protocol)
	}
	if s.SrcIP == "" {
		s.SrcIP = profile.srcIP
	}
	if s.DstIP == "" {
		s.DstIP = profile.dstIP
	}
	if s.SrcPort == 0 {
		s.SrcPort = profile.srcPort
	}
	if s.Payload == "" && s.PayloadHex == "" {
		s.Payload = profile.payload
	}
	if s.Count < 1 {
		return fmt.Errorf("%w: send.count must be at least 1", core.ErrConfigInvalid)
	}
	if s.Interval < 0 {
		return fmt.Errorf("%w: send.interval must not be negative", core.ErrConfigInvalid)
	}

	return nil
}

// Selector returns the capture selector. A zero port means the well-known
// port of the protocol.
func (c CaptureConfig) Selector() (core.CaptureSelector, error) {
	proto, err := core.ParseTransportProtocol(c.Protocol)
	if err != nil {
		return core.CaptureSelector{}, fmt.Errorf("capture.protocol: %w", err)
	}
	port := c.Port
	if port == 0 {
		switch proto {
		case core.ProtocolUDP:
			port = core.RoceV2Port
		case core.ProtocolTCP:
			port = core.NvmeTcpPort
		}
	}
	sel := core.CaptureSelector{Protocol: proto, Port: port}
	return sel, sel.Validate()
}
