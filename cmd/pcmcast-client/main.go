// Command pcmcast-client connects to a pcmcast-server and either writes
// the received PCM stream to a WAV file or plays it through a speaker.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/pcmcast/internal/logx"
	"github.com/drgolem/pcmcast/internal/protocol"
	"github.com/drgolem/pcmcast/internal/sink"
	"github.com/drgolem/pcmcast/internal/transport"
)

var (
	ip             string
	port           int
	filePath       string
	defaultSpeaker bool
	speakerName    string
	logLevel       string
	logFormat      string
	connectTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "pcmcast-client",
	Short: "Stream PCM audio from a pcmcast-server to a file or a speaker",
	RunE:  runClient,
}

var listSpeakersCmd = &cobra.Command{
	Use:   "list-available-speakers",
	Short: "List output device names known to the local audio system",
	RunE:  runListSpeakers,
}

func init() {
	rootCmd.Flags().StringVar(&ip, "ip", "127.0.0.1", "Server address")
	rootCmd.Flags().IntVar(&port, "port", 8080, "Server port")
	rootCmd.Flags().StringVar(&filePath, "file", "", "Write the stream to this WAV file (must end in .wav)")
	rootCmd.Flags().BoolVar(&defaultSpeaker, "default-speaker", false, "Play the stream through the default output device")
	rootCmd.Flags().StringVar(&speakerName, "speaker", "", "Play the stream through the named output device")
	rootCmd.Flags().StringVar(&logLevel, "log-level", envOr("PCMCAST_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", envOr("PCMCAST_LOG_FORMAT", "text"), "Log format: text or json")
	rootCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 10*time.Second, "How long to keep retrying a refused connection")

	rootCmd.AddCommand(listSpeakersCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runListSpeakers(cmd *cobra.Command, args []string) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := sink.ListOutputDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Println(d.Name)
	}
	return nil
}

// selectSink validates the mutually exclusive output flags, returning an
// error when they are not usable. It does not pick the sink itself:
// runClient drives the WAV loop when --file is set, the speaker loop otherwise.
func selectSink() error {
	n := 0
	if filePath != "" {
		n++
	}
	if defaultSpeaker {
		n++
	}
	if speakerName != "" {
		n++
	}
	if n != 1 {
		return errors.New("exactly one of --file, --default-speaker, or --speaker is required")
	}
	if filePath != "" {
		if !strings.HasSuffix(filePath, ".wav") {
			return fmt.Errorf("--file must end in .wav, got %q", filePath)
		}
		dir := filepath.Dir(filePath)
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("parent directory of --file does not exist: %w", err)
		}
	}
	return nil
}

func runClient(cmd *cobra.Command, args []string) error {
	logger := logx.New(logFormat, logx.ParseLevel(logLevel), os.Stderr)
	logx.Set(logger)

	if err := selectSink(); err != nil {
		slog.Error("invalid flags", "error", err)
		return err
	}

	addr := fmt.Sprintf("%s:%d", ip, port)
	client, err := transport.Connect(addr, time.Now().Add(connectTimeout))
	if err != nil {
		slog.Error("failed to connect", "addr", addr, "error", err)
		return err
	}
	defer client.Close()
	slog.Info("connected", "addr", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	stop := make(chan struct{})
	go func() {
		<-sigChan
		close(stop)
		client.Close()
	}()

	if filePath != "" {
		return runWavClient(client, stop)
	}
	return runSpeakerClient(client, stop)
}

func runWavClient(client *transport.Client, stop <-chan struct{}) error {
	out := sink.NewWavSink(filePath)
	var samplesReceived uint64

	for {
		payload, err := client.Receive()
		if err != nil {
			select {
			case <-stop:
				slog.Info("interrupted, finalizing output")
			default:
				slog.Info("stream ended", "error", err)
			}
			break
		}
		if len(payload) == 0 {
			// Empty preamble: no Spec has been published yet.
			continue
		}

		msg, err := protocol.Deserialize(payload)
		if err != nil {
			slog.Error("protocol error, aborting", "error", err)
			_ = out.Finalize()
			return err
		}

		if msg.IsSpec {
			out.PutSpec(msg.Spec)
			continue
		}
		if err := out.PutSamples(msg.Samples); err != nil {
			slog.Error("failed to buffer samples", "error", err)
			return err
		}
		samplesReceived += uint64(len(msg.Samples))
	}

	if err := out.Finalize(); err != nil {
		slog.Error("failed to finalize WAV file", "error", err)
		return err
	}
	slog.Info("shutdown summary", "samples_received", samplesReceived, "path", filePath)
	return nil
}

func runSpeakerClient(client *transport.Client, stop <-chan struct{}) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	device, err := selectDevice()
	if err != nil {
		slog.Error("failed to select output device", "error", err)
		return err
	}
	slog.Info("selected output device", "name", device.Name)

	var spk *sink.SpeakerSink
	var samplesReceived uint64

	for {
		payload, err := client.Receive()
		if err != nil {
			select {
			case <-stop:
				slog.Info("interrupted")
			default:
				slog.Info("stream ended", "error", err)
			}
			break
		}
		if len(payload) == 0 {
			continue
		}

		msg, err := protocol.Deserialize(payload)
		if err != nil {
			slog.Error("protocol error, aborting", "error", err)
			if spk != nil {
				_ = spk.Stop()
			}
			return err
		}

		if msg.IsSpec {
			if spk == nil {
				spk, err = sink.NewSpeakerSink(device, msg.Spec)
				if err != nil {
					slog.Error("failed to open speaker sink", "error", err)
					return err
				}
				if err := spk.Start(); err != nil {
					slog.Error("failed to start speaker stream", "error", err)
					return err
				}
			}
			continue
		}
		if spk != nil {
			spk.Push(msg.Samples)
			samplesReceived += uint64(len(msg.Samples))
		}
	}

	if spk != nil {
		_ = spk.Stop()
		slog.Info("shutdown summary", "samples_received", samplesReceived, "samples_played", spk.SamplesPlayed())
	}
	return nil
}

func selectDevice() (sink.Device, error) {
	switch {
	case speakerName != "":
		return sink.FindOutputDeviceByName(speakerName)
	default:
		return sink.DefaultOutputDevice()
	}
}
