// Package pacing implements the server's production loop: it drains an
// audiosource.Source in groups, publishes the spec as the broadcast
// preamble, and paces delivery of the remaining groups so a client's
// buffer drifts toward full rather than empty under benign jitter.
package pacing

import (
	"time"

	"github.com/drgolem/pcmcast/internal/audiosource"
	"github.com/drgolem/pcmcast/internal/logx"
	"github.com/drgolem/pcmcast/internal/metrics"
	"github.com/drgolem/pcmcast/internal/protocol"
)

const (
	// SamplesPerGroup is the number of samples broadcast as one Samples
	// message; the final group of a source may be shorter.
	SamplesPerGroup = 1000

	// InitialBufferSeconds is the size, in seconds of audio, of the
	// leading prebuffer window sent without pacing delay.
	InitialBufferSeconds = 3

	// PacingFactor scales the real-time inter-group sleep so the
	// client stays slightly ahead of real time rather than behind it.
	PacingFactor = 0.8
)

// Broadcaster is the subset of transport.Server the pacing loop depends
// on, kept narrow so it can be exercised with a fake in tests.
type Broadcaster interface {
	Broadcast(message []byte) error
	UpdatePreamble(b []byte)
}

// Run drains src to completion, publishing spec as the preamble and
// broadcasting sample groups through b, pacing delivery after the initial
// prebuffer window. It returns once the source is exhausted; the caller
// decides whether the transport keeps serving afterward.
func Run(src audiosource.Source, b Broadcaster) {
	logger := logx.L()
	spec := src.Spec()

	specMsg := protocol.Serialize(protocol.SpecMessage(spec))
	b.UpdatePreamble(specMsg)
	if err := b.Broadcast(specMsg); err != nil {
		logger.Error("failed to broadcast spec", "error", err)
		return
	}
	logger.Info("pacing loop started",
		"channels", spec.Channels,
		"sample_rate", spec.SampleRate,
		"bits_per_sample", spec.BitsPerSample)

	prebufferSamples := uint64(InitialBufferSeconds) * uint64(spec.SampleRate)
	groupSleep := time.Duration(float64(SamplesPerGroup) / float64(spec.SampleRate) * PacingFactor * float64(time.Second))

	var streamed uint64
	group := make([]int16, 0, SamplesPerGroup)

	for {
		group = group[:0]
		for len(group) < SamplesPerGroup {
			s, ok := src.Next()
			if !ok {
				break
			}
			group = append(group, s)
		}
		if len(group) == 0 {
			break
		}

		msg := protocol.Serialize(protocol.SamplesMessage(group))
		if err := b.Broadcast(msg); err != nil {
			logger.Error("failed to broadcast samples", "error", err)
			return
		}
		streamed += uint64(len(group))
		metrics.SamplesStreamedTotal.Add(float64(len(group)))

		if streamed > prebufferSamples && groupSleep > 0 {
			time.Sleep(groupSleep)
		}

		if len(group) < SamplesPerGroup {
			break
		}
	}

	if err := src.Err(); err != nil {
		logger.Warn("source ended with error, treating as end of stream", "error", err)
	}
	logger.Info("pacing loop finished", "samples_streamed", streamed)
}
