package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
	"github.com/tphan267/huddle/pkg/config"
	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/media"
	"github.com/tphan267/huddle/pkg/peer"
	"github.com/tphan267/huddle/pkg/protocol"
	"github.com/tphan267/huddle/pkg/session"
	"github.com/tphan267/huddle/pkg/signaling"
	"github.com/tphan267/huddle/pkg/ui"
)

var version = "dev"

var (
	flagServer   string
	flagSecret   string
	flagRoom     string
	flagCodec    string
	flagLogLevel string
	flagNoMic    bool
)

var rootCmd = &cobra.Command{
	Use:   "huddle-client",
	Short: "Join a huddle voice room from the terminal",
	Long: `huddle-client logs in with a shared secret, joins a room and keeps a
WebRTC audio link to every other participant until interrupted.

Type "m" and enter to toggle the microphone, "q" to leave.

Examples:
  huddle-client --secret 1234
  huddle-client --server http://10.0.0.5:3000 --secret 5678 --room standup --codec msgpack`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSecret == "" {
			return fmt.Errorf("--secret is required")
		}
		return run(cmd.Context(), os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagServer, "server", "s", "http://localhost:"+config.DefaultPort, "Server URL")
	rootCmd.Flags().StringVar(&flagSecret, "secret", "", "Login secret")
	rootCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "Room to join (server default if empty)")
	rootCmd.Flags().StringVar(&flagCodec, "codec", "json", "Signaling codec (json or msgpack)")
	rootCmd.Flags().StringVar(&flagLogLevel, "loglevel", "warn", "Log level")
	rootCmd.Flags().BoolVar(&flagNoMic, "no-mic", false, "Join without sending audio")
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer) error {
	log := logger.New(os.Stderr, "HUDDLE", logger.ParseLevel(flagLogLevel))

	codec, err := protocol.CodecByName(flagCodec)
	if err != nil {
		return err
	}

	creds, err := login(flagServer, flagSecret)
	if err != nil {
		return err
	}

	room := flagRoom
	if room == "" {
		room = creds.DefaultRoom
	}

	renderer := ui.NewRenderer(out)
	renderer.Welcome(creds.Name, room)

	var (
		mic   *media.LocalAudio
		track webrtc.TrackLocal
	)
	if !flagNoMic {
		if mic, err = media.NewLocalAudio("huddle-" + creds.Name); err != nil {
			log.Warn("Audio capture unavailable, joining receive-only: %v", err)
			mic = nil
		} else {
			track = mic.Track()
		}
	}

	factory, err := peer.NewPionFactory(config.ToWebRTC(creds.ICEServers), track, log)
	if err != nil {
		return fmt.Errorf("failed to set up WebRTC: %w", err)
	}

	client := signaling.NewClient(flagServer, codec, log)

	opts := session.Options{
		Name:     creds.Name,
		Room:     room,
		Signaler: client,
		Factory:  factory,
		Observer: renderer,
		Logger:   log,
	}
	if mic != nil {
		opts.Mic = mic
	}
	sess := session.New(opts)

	if err := client.Connect(ctx, sess); err != nil {
		return err
	}
	if err := sess.Join(); err != nil {
		client.Close()
		return err
	}

	captureCtx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()
	if mic != nil {
		go func() {
			if err := mic.Capture(captureCtx, nil); err != nil && captureCtx.Err() == nil {
				log.Error("Audio capture stopped: %v", err)
			}
		}()
	}

	commands := make(chan string)
	go readCommands(in, commands)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-commands:
			if !ok {
				// stdin closed; keep running until signalled
				commands = nil
				continue
			}
			switch line {
			case "m":
				if _, err := sess.ToggleMic(); err != nil {
					log.Warn("%v", err)
				}
			case "q":
				break loop
			case "":
			default:
				renderer.Notice(`unknown command, use "m" or "q"`)
			}
		}
	}

	stopCapture()
	return sess.Leave()
}

func readCommands(in io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		out <- strings.ToLower(strings.TrimSpace(scanner.Text()))
	}
}
