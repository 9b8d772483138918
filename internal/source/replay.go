// Package source feeds IEEE 802.15.4 frames into the stack from pcap
// capture files. It is the development and test substitute for a real MAC
// driver receive path.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"icc.tech/wpan-agent/internal/frame"
	"icc.tech/wpan-agent/internal/metrics"
	"icc.tech/wpan-agent/internal/stack"
)

// Link-layer header types for IEEE 802.15.4 captures (DLT values).
const (
	// LinkTypeWithFCS is DLT_IEEE802_15_4: frames carry the trailing
	// 2-byte frame check sequence.
	LinkTypeWithFCS = layers.LinkType(195)
	// LinkTypeNoFCS is DLT_IEEE802_15_4_NOFCS.
	LinkTypeNoFCS = layers.LinkType(230)
)

// ReplayConfig configures a pcap replay run.
type ReplayConfig struct {
	Path string        // pcap file with DLT 195 or 230 frames
	Loop bool          // restart from the beginning at EOF
	Pace time.Duration // optional delay between frames (0 = as fast as possible)
}

// Replay reads a capture file and injects every frame into the stack.
type Replay struct {
	cfg ReplayConfig
	stk *stack.Stack
}

// NewReplay creates a replay source over the given stack.
func NewReplay(cfg ReplayConfig, stk *stack.Stack) *Replay {
	return &Replay{cfg: cfg, stk: stk}
}

// Run replays the capture until EOF (or forever when looping) or until the
// context is cancelled.
func (r *Replay) Run(ctx context.Context) error {
	for {
		n, err := r.replayFile(ctx)
		if err != nil {
			return err
		}
		slog.Info("replay pass finished", "path", r.cfg.Path, "frames", n)

		if !r.cfg.Loop {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// replayFile replays one pass over the file and returns the frame count.
func (r *Replay) replayFile(ctx context.Context) (int, error) {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return 0, fmt.Errorf("replay: open %q: %w", r.cfg.Path, err)
	}
	defer f.Close()

	pr, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("replay: read pcap header of %q: %w", r.cfg.Path, err)
	}

	var stripFCS bool
	switch pr.LinkType() {
	case LinkTypeWithFCS:
		stripFCS = true
	case LinkTypeNoFCS:
		stripFCS = false
	default:
		return 0, fmt.Errorf("replay: %q has link type %v, want IEEE 802.15.4 (DLT 195 or 230)",
			r.cfg.Path, pr.LinkType())
	}

	count := 0
	for {
		data, _, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("replay: read frame %d: %w", count, err)
		}

		if stripFCS && len(data) >= 2 {
			data = data[:len(data)-2]
		}

		meta, payload, err := frame.Decode(data)
		if err != nil {
			metrics.FramesDroppedTotal.WithLabelValues(metrics.DropDecode).Inc()
			slog.Debug("replay: undecodable frame skipped", "frame", count, "error", err)
			continue
		}

		metrics.ReplayFramesTotal.Inc()
		r.stk.Input(meta, payload)
		count++

		if r.cfg.Pace > 0 {
			select {
			case <-ctx.Done():
				return count, ctx.Err()
			case <-time.After(r.cfg.Pace):
			}
		} else {
			select {
			case <-ctx.Done():
				return count, ctx.Err()
			default:
			}
		}
	}
}
