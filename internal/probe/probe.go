// Package probe implements read-only capability probes over kernel and
// service state. Probes never persist changes to the host; the one probe
// that loads a kernel module to test availability unloads it again before
// returning.
package probe

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nnversace/hosttune/internal/execx"
	"golang.org/x/sys/unix"
)

// Probe keys. Service probes use KeyServiceActive + ":" + service name.
const (
	KeyKernelRelease       = "kernel_release"
	KeyCongestionControl   = "tcp_congestion_control"
	KeyAvailableCongestion = "tcp_available_congestion_control"
	KeyDefaultQdisc        = "default_qdisc"
	KeyMPTCPEnabled        = "mptcp_enabled"
	KeyBBRAvailable        = "bbr_available"
	KeyZRAMActive          = "zram_active"
	KeySwapDevices         = "swap_devices"
	KeySSHPort             = "ssh_port"
	KeyDNSListener         = "dns_listener"
	KeyServiceActive       = "service_active"
)

// Result is one named observation, optionally checked against a wanted value.
type Result struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Want    string `json:"want,omitempty"`
	OK      bool   `json:"ok"`
	Matches bool   `json:"matches"`
}

// Prober reads kernel and service state. The filesystem root is
// configurable so tests can point probes at a scratch tree instead
// of the live /proc and /sys.
type Prober struct {
	root   string
	runner execx.Runner
}

// New returns a Prober rooted at "/" using the given runner for
// probes that shell out (systemctl, ss, modprobe).
func New(runner execx.Runner) *Prober { return NewWithRoot("/", runner) }

// NewWithRoot returns a Prober whose file probes resolve under root.
func NewWithRoot(root string, runner execx.Runner) *Prober {
	if root == "" {
		root = "/"
	}
	return &Prober{root: root, runner: runner}
}

func (p *Prober) path(rel string) string { return filepath.Join(p.root, rel) }

// Probe returns the observed value for key and whether the probe target
// exists at all. ok=false distinguishes "unsupported on this kernel"
// from "supported but not set to the expected value".
func (p *Prober) Probe(ctx context.Context, key string) (string, bool) {
	switch {
	case key == KeyKernelRelease:
		return kernelRelease(), true
	case key == KeyCongestionControl:
		return p.readValue("proc/sys/net/ipv4/tcp_congestion_control")
	case key == KeyAvailableCongestion:
		return p.readValue("proc/sys/net/ipv4/tcp_available_congestion_control")
	case key == KeyDefaultQdisc:
		return p.readValue("proc/sys/net/core/default_qdisc")
	case key == KeyMPTCPEnabled:
		return p.readValue("proc/sys/net/mptcp/enabled")
	case key == KeyBBRAvailable:
		return p.probeBBR(ctx)
	case key == KeyZRAMActive:
		return p.probeZRAM()
	case key == KeySwapDevices:
		return p.probeSwapDevices()
	case key == KeySSHPort:
		return p.probeSSHPort()
	case key == KeyDNSListener:
		return p.probeDNSListener(ctx)
	case strings.HasPrefix(key, KeyServiceActive+":"):
		return p.probeServiceActive(ctx, strings.TrimPrefix(key, KeyServiceActive+":"))
	}
	return "", false
}

// Check probes key and compares the observation against want.
func (p *Prober) Check(ctx context.Context, key, want string) Result {
	v, ok := p.Probe(ctx, key)
	return Result{Key: key, Value: v, Want: want, OK: ok, Matches: ok && v == want}
}

// Observe probes key without an expectation; Matches mirrors OK.
func (p *Prober) Observe(ctx context.Context, key string) Result {
	v, ok := p.Probe(ctx, key)
	return Result{Key: key, Value: v, OK: ok, Matches: ok}
}

func (p *Prober) readValue(rel string) (string, bool) {
	data, err := os.ReadFile(p.path(rel))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// probeBBR reports whether the bbr congestion control algorithm can be
// used on this kernel. When bbr is not listed as available it attempts a
// module load purely as an availability test and immediately unloads it
// so the probe stays side-effect free.
func (p *Prober) probeBBR(ctx context.Context) (string, bool) {
	avail, ok := p.readValue("proc/sys/net/ipv4/tcp_available_congestion_control")
	if !ok {
		return "", false
	}
	if containsWord(avail, "bbr") {
		return "true", true
	}
	if res, err := p.runner.Run(ctx, "modprobe", "tcp_bbr"); err != nil || !res.Ok() {
		return "false", true
	}
	avail, _ = p.readValue("proc/sys/net/ipv4/tcp_available_congestion_control")
	loaded := containsWord(avail, "bbr")
	_, _ = p.runner.Run(ctx, "modprobe", "-r", "tcp_bbr")
	return strconv.FormatBool(loaded), true
}

func (p *Prober) probeZRAM() (string, bool) {
	if _, err := os.Stat(p.path("sys/block/zram0")); err != nil {
		return "", false
	}
	devs, ok := p.probeSwapDevices()
	if ok && strings.Contains(devs, "zram") {
		return "active", true
	}
	return "inactive", true
}

func (p *Prober) probeSwapDevices() (string, bool) {
	data, err := os.ReadFile(p.path("proc/swaps"))
	if err != nil {
		return "", false
	}
	var devs []string
	for i, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if i == 0 { // header
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			devs = append(devs, fields[0])
		}
	}
	return strings.Join(devs, ","), true
}

// probeSSHPort reads the effective Port directive from sshd_config.
// Absent directive means the compiled-in default of 22.
func (p *Prober) probeSSHPort() (string, bool) {
	data, err := os.ReadFile(p.path("etc/ssh/sshd_config"))
	if err != nil {
		return "", false
	}
	port := "22"
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) >= 2 && strings.EqualFold(fields[0], "Port") {
			port = fields[1]
		}
	}
	return port, true
}

func (p *Prober) probeDNSListener(ctx context.Context) (string, bool) {
	res, err := p.runner.Run(ctx, "ss", "-lntu")
	if err != nil || !res.Ok() {
		return "", false
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.Contains(line, ":53 ") {
			return "listening", true
		}
	}
	return "none", true
}

func (p *Prober) probeServiceActive(ctx context.Context, name string) (string, bool) {
	res, err := p.runner.Run(ctx, "systemctl", "is-active", name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(res.Stdout)
	if v == "" {
		v = "unknown"
	}
	return v, true
}

func kernelRelease() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uname.Release[:])
}

func containsWord(s, w string) bool {
	for _, f := range strings.Fields(s) {
		if f == w {
			return true
		}
	}
	return false
}
