package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxkey/internal/session"
	"github.com/MrWong99/voxkey/pkg/audio/portaudio"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Dictate one utterance from the microphone",
	Long: `Dictate one utterance from the default microphone.

Partial transcripts are printed while you speak. Press Enter to stop, or
let the voice activity detector stop after a pause when vad.engine is set.
The final transcript is printed on its own line.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func runListen(cmd *cobra.Command, _ []string) error {
	cfg, _, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	svc, err := newService(cfg, logger, historyOptions(store)...)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Shutdown(sctx); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	src := portaudio.New(portaudio.WithFrameDuration(cfg.Recognition.FrameInterval()))
	sess, err := svc.StartSession(ctx, src, consoleListener(out, errOut))
	if err != nil {
		return err
	}
	fmt.Fprintln(errOut, "listening, press Enter to stop")

	go func() {
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		sess.Stop()
	}()

	<-sess.Done()
	if _, err := sess.Result(); err != nil {
		if errors.Is(err, session.ErrEmptyResult) {
			fmt.Fprintln(errOut, "(nothing recognised)")
			return nil
		}
		return err
	}
	return nil
}

// consoleListener rewrites the current line with each partial and ends it
// with the final transcript.
func consoleListener(out, errOut io.Writer) session.Listener {
	return session.ListenerFuncs{
		Partial: func(text string) { fmt.Fprintf(out, "\r\033[K%s", text) },
		Final:   func(text string) { fmt.Fprintf(out, "\r\033[K%s\n", text) },
		Stopped: func() { fmt.Fprint(errOut, "\r\033[K…") },
	}
}
