package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/features"
)

const defaultDescribePrompt = "Describe this image in two or three sentences, " +
	"mentioning the subjects, setting and any visible text."

var describeCmd = &cobra.Command{
	Use:   "describe [file]",
	Short: "Describe an image with a vision assistant",
	Long: `Sends the image to the configured vision assistant (OpenAI when
OPENAI_TOKEN is set, Gemini when GEMINI_API_KEY is set) and prints its
description. Useful for spot-checking what the assistant sees before a
long keyframe annotation run.`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

func init() {
	describeCmd.Flags().String("prompt", defaultDescribePrompt, "Question to ask about the image")
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg := config.Load()
	prompt := mustGetString(cmd, "prompt")

	frame, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	source, err := assistantSource(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return source.With(ctx, func(assistant features.Assistant) error {
		text, err := assistant.DescribeFrame(ctx, frame, prompt)
		if err != nil {
			return fmt.Errorf("assistant failed: %w", err)
		}
		fmt.Printf("[%s] %s\n", assistant.Name(), text)
		return nil
	})
}
