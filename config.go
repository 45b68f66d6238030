// Package peerengine is the per-peer BitTorrent protocol engine: given
// a live connection to a remote peer already past handshake, it drives
// choke/interest state, pipelines block requests, serves outbound
// block data, and reports rate/status to the swarm-wide collaborators.
package peerengine

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meteogrid/peerengine/internal/controller"
)

// Config holds the engine's tunables. Zero-value fields are filled in
// from DefaultConfig by LoadConfig when a key is absent from the file.
type Config struct {
	// BlockSize is the request granularity used when no smaller size
	// is forced by a short final block.
	BlockSize uint32 `yaml:"block_size"`

	// LoMark and HiMark are the steady-state pipelining watermarks: a
	// refill only happens once the outstanding-request count drops
	// below LoMark, topping back up to HiMark.
	LoMark int `yaml:"lo_mark"`
	HiMark int `yaml:"hi_mark"`

	// EndgameLoMark replaces LoMark once a peer's piece manager reply
	// has latched endgame mode.
	EndgameLoMark int `yaml:"endgame_lo_mark"`

	// MaxOutstandingRequests is a hard ceiling on blockQueue size,
	// independent of and at least as large as HiMark.
	MaxOutstandingRequests int `yaml:"max_outstanding_requests"`

	// RateTickInterval is how often upRate/downRate are extracted and
	// published to the rate and status registers.
	RateTickInterval time.Duration `yaml:"rate_tick_interval"`

	// KeepAliveInterval is how often the controller emits its own
	// KEEPALIVE, independent of the rate tick.
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`

	// UploadBandwidthBudget is the default per-peer upload byte rate
	// granted to the sender queue before the choke manager issues its
	// first real grant.
	UploadBandwidthBudget float64 `yaml:"upload_bandwidth_budget"`
	UploadBandwidthBurst  int     `yaml:"upload_bandwidth_burst"`
}

// DefaultConfig mirrors the watermarks and intervals named in the
// engine's design: loMark=10, hiMark=15, endgameLoMark=1, a 5-second
// rate tick, and a 2-minute keepalive.
var DefaultConfig = Config{
	BlockSize:              16 * 1024,
	LoMark:                 10,
	HiMark:                 15,
	EndgameLoMark:          1,
	MaxOutstandingRequests: 30,
	RateTickInterval:       5 * time.Second,
	KeepAliveInterval:      2 * time.Minute,
	UploadBandwidthBudget:  1 << 20, // 1 MiB/s
	UploadBandwidthBurst:   1 << 18,
}

// ControllerConfig projects c onto the subset a single controller
// needs, for handing to controller.New's Deps.
func (c Config) ControllerConfig() controller.Config {
	return controller.Config{
		LoMark:                 c.LoMark,
		HiMark:                 c.HiMark,
		EndgameLoMark:          c.EndgameLoMark,
		MaxOutstandingRequests: c.MaxOutstandingRequests,
		RateTickInterval:       c.RateTickInterval,
		KeepAliveInterval:      c.KeepAliveInterval,
		UploadBandwidthBudget:  c.UploadBandwidthBudget,
		UploadBandwidthBurst:   c.UploadBandwidthBurst,
	}
}

// LoadConfig reads filename as YAML into a copy of DefaultConfig. A
// missing file is not an error: DefaultConfig is returned unchanged.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
