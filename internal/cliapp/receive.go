package cliapp

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/beamline/beamline/internal/config"
	"github.com/beamline/beamline/internal/transfer"
	"github.com/beamline/beamline/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagReceiverSTUN     string
	flagReceiverTURN     string
	flagReceiverTURNUser string
	flagReceiverTURNPass string
)

var receiveCmd = &cobra.Command{
	Use:     "receive <room-id|link>",
	Aliases: []string{"r"},
	Short:   "Receive files from a sender",
	Long: `Receive files from a sender over an encrypted WebRTC data channel.

Examples:
  beamline receive ABC123
  beamline receive "https://beamline.dev?room=ABC123"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return runReceive(roomID)
	},
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVarP(&flagReceiverSTUN, "stun", "s", "", "Custom STUN server")
	receiveCmd.Flags().StringVarP(&flagReceiverTURN, "turn", "t", "", "Custom TURN server")
	receiveCmd.Flags().StringVarP(&flagReceiverTURNUser, "turn-user", "u", "", "TURN username")
	receiveCmd.Flags().StringVarP(&flagReceiverTURNPass, "turn-pass", "p", "", "TURN password")
}

// parseRoomInput accepts either a bare room code or a deep-link URL of
// the form {origin}?room={code}, per the protocol's query-parameter
// convention (not a path segment).
func parseRoomInput(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("room ID or link must not be empty")
	}
	if !strings.Contains(input, "://") {
		return strings.ToUpper(input), nil
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}
	roomID := parsed.Query().Get("room")
	if roomID == "" {
		return "", fmt.Errorf("link does not contain a room code: %s", input)
	}
	return strings.ToUpper(roomID), nil
}

func runReceive(roomID string) error {
	cfg, err := LoadConfig(config.Options{
		STUNServer: flagReceiverSTUN,
		TURNServer: flagReceiverTURN,
		TURNUser:   flagReceiverTURNUser,
		TURNPass:   flagReceiverTURNPass,
	})
	if err != nil {
		return err
	}

	stop := ui.RunConnectionSpinner("Connecting to signaling server...")
	connCtx, err := NewConnectionContext(cfg)
	stop()
	if err != nil {
		return err
	}
	defer connCtx.Close()

	connCtx.Handler.JoinRoom(roomID)
	var isInitiator bool
	select {
	case rj := <-connCtx.Handler.RoomJoined:
		isInitiator = rj.IsInitiator
	case errPayload := <-connCtx.Handler.Error:
		return fmt.Errorf("join room %s: %s", roomID, errPayload.Message)
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out joining room %s", roomID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop = ui.RunConnectionSpinner("Establishing WebRTC connection...")
	session, controller, err := establishPeerSession(ctx, cfg, connCtx.Handler, isInitiator)
	stop()
	if err != nil {
		return fmt.Errorf("establish peer connection: %w", err)
	}

	fatal := make(chan error, 1)
	watchSessionHealth(session, controller, func(err error) {
		select {
		case fatal <- err:
		default:
		}
	})

	return runReceiveLoop(controller, fatal)
}

// runReceiveLoop services an indefinite stream of offered files: the
// sender may queue several batches over one session, so the receiver
// keeps prompting and tracking progress until the peer disconnects.
func runReceiveLoop(controller *transfer.Controller, fatal chan error) error {
	model := ui.NewProgressModel()
	reader := bufio.NewReader(os.Stdin)
	received := 0
	start := time.Now()

	for {
		select {
		case offer := <-controller.Offers:
			accept := promptAccept(reader, offer.Info)
			if accept {
				model.Track(offer.Info.ID, offer.Info.Name, offer.Info.Size)
			}
			offer.Decision <- accept

		case p := <-controller.Progress:
			model.UpdateProgress(p.FileID, p.BytesDone, p.TotalBytes, p.BytesPerSec)
			fmt.Print("\r" + model.View())

		case rf := <-controller.Received:
			if err := saveReceivedFile(rf); err != nil {
				ui.PrintErrorf("save %s: %v", rf.Info.Name, err)
				model.MarkError(rf.Info.ID)
				continue
			}
			model.MarkComplete(rf.Info.ID)
			received++
			ui.PrintSuccess(fmt.Sprintf("received %s (%s)", rf.Info.Name, ui.FormatSize(rf.Info.Size)))

		case err := <-fatal:
			finishReceive(received, start)
			return err
		}
	}
}

func finishReceive(received int, start time.Time) {
	if received == 0 {
		return
	}
	ui.RenderTransferSummary(ui.TransferSummary{
		Status:   "Complete",
		Files:    received,
		Duration: ui.FormatDuration(time.Since(start)),
	})
}

func promptAccept(reader *bufio.Reader, info transfer.FileInfo) bool {
	ui.RenderFileTable([]ui.FileTableItem{{Index: 1, Name: info.Name, Size: info.Size, Type: info.Type}})
	fmt.Print("Accept this file? [Y/n] ")
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	return line == "" || strings.EqualFold(line, "y")
}

func saveReceivedFile(rf *transfer.ReceivedFile) error {
	name := rf.Info.Name
	if rf.Info.Path != "" {
		name = rf.Info.Path
	}
	if err := os.MkdirAll(dirOf(name), 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, rf.Data, 0o644)
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
