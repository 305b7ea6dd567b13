package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vibetex/internal/config"
	"vibetex/internal/perception"
)

// transcribeCmd turns an audio file into prompt text
var transcribeCmd = &cobra.Command{
	Use:   "transcribe [audio]",
	Short: "Transcribe an audio file with the Whisper endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	if err := cfg.LLM.RequireAPIKey(); err != nil {
		return err
	}
	if cfg.LLM.Provider == config.ProviderGemini {
		return fmt.Errorf("transcription needs an OpenAI-compatible provider, not %s", cfg.LLM.Provider)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	pc := cfg.ResolveProvider("")
	t := perception.NewWhisperTranscriber(pc.APIKey, pc.BaseURL, cfg.LLM.TranscriptionModel, pc.Timeout)
	text, err := t.Transcribe(ctx, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
