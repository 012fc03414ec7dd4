package cliapp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/beamline/beamline/internal/config"
	"github.com/beamline/beamline/internal/files"
	"github.com/beamline/beamline/internal/transfer"
	"github.com/beamline/beamline/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagOrigin   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagZip      bool
)

var sendCmd = &cobra.Command{
	Use:     "send <file|dir>...",
	Aliases: []string{"s"},
	Short:   "Send files to a receiver",
	Long: `Send one or more files, or whole directories, directly to a receiver
over an encrypted WebRTC data channel.

Examples:
  beamline send file1.txt file2.pdf
  beamline send ./photos --zip
  beamline send --relay file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(args)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&flagOrigin, "domain", "d", "", "Web app origin shown in the room link")
	sendCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	sendCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	sendCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	sendCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	sendCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode (requires --turn)")
	sendCmd.Flags().BoolVar(&flagZip, "zip", false, "Archive directory arguments into a single zip before sending")
}

func runSend(paths []string) error {
	if flagZip {
		zipped, err := zipDirectoryArgs(paths)
		if err != nil {
			return err
		}
		paths = zipped
	}

	localFiles, err := files.Validate(paths)
	if err != nil {
		return err
	}
	displayFileTable(localFiles)

	cfg, err := LoadConfig(config.Options{
		Origin:     flagOrigin,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
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

	connCtx.Handler.CreateRoom()
	var roomID string
	select {
	case roomID = <-connCtx.Handler.RoomCreated:
	case errPayload := <-connCtx.Handler.Error:
		return fmt.Errorf("create room: %s", errPayload.Message)
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for the signaling server to create a room")
	}

	fmt.Println()
	ui.RenderRoomInfo(roomID, cfg.RoomLink(roomID))

	stop = ui.RunWaitingSpinner("Waiting for a receiver to join...")
	select {
	case <-connCtx.Handler.PeerJoined:
		stop()
	case errPayload := <-connCtx.Handler.Error:
		stop()
		return fmt.Errorf("waiting for peer: %s", errPayload.Message)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop = ui.RunConnectionSpinner("Establishing WebRTC connection...")
	session, controller, err := establishPeerSession(ctx, cfg, connCtx.Handler, true)
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

	if err := controller.Send(localFiles); err != nil {
		return fmt.Errorf("queue files: %w", err)
	}

	return runSendProgress(controller, localFiles, fatal)
}

func runSendProgress(controller *transfer.Controller, localFiles []files.LocalFile, fatal chan error) error {
	// File IDs are assigned inside Controller.Send and never handed back
	// to the caller, so the first progress sample for an unseen ID is
	// attributed to the next file in queue order (files stream serially).
	model := ui.NewProgressModel()
	nextName := 0

	start := time.Now()
	for {
		select {
		case p := <-controller.Progress:
			if !model.Has(p.FileID) && nextName < len(localFiles) {
				model.Track(p.FileID, localFiles[nextName].Name, localFiles[nextName].Size)
				nextName++
			}
			model.UpdateProgress(p.FileID, p.BytesDone, p.TotalBytes, p.BytesPerSec)
			fmt.Print("\r" + model.View())

		case err := <-controller.SendErrors:
			return err

		case <-controller.Complete:
			elapsed := time.Since(start)
			total := files.TotalSize(localFiles)
			ui.RenderTransferSummary(ui.TransferSummary{
				Status:    "Complete",
				Files:     len(localFiles),
				TotalSize: ui.FormatSize(total),
				Duration:  ui.FormatDuration(elapsed),
				Speed:     ui.FormatSpeed(float64(total) / elapsed.Seconds()),
			})
			return nil

		case err := <-fatal:
			return err
		}
	}
}

func displayFileTable(localFiles []files.LocalFile) {
	items := make([]ui.FileTableItem, len(localFiles))
	for i, f := range localFiles {
		items[i] = ui.FileTableItem{Index: i + 1, Name: f.Name, Size: f.Size, Type: f.Type}
	}
	fmt.Println()
	ui.RenderFileTable(items)
}

func zipDirectoryArgs(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !stat.IsDir() {
			out = append(out, p)
			continue
		}
		zipPath := p + ".zip"
		if err := files.ZipDirectory(p, zipPath); err != nil {
			return nil, fmt.Errorf("zip %s: %w", p, err)
		}
		out = append(out, zipPath)
	}
	return out, nil
}
