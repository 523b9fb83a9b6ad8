// Package analyze classifies a single image from the command line.
package analyze

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/inference"
	"github.com/redharvest/redharvest-go/internal/render"
)

// Command returns the analyze subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var overlayPath string

	cmd := &cobra.Command{
		Use:   "analyze [image file]",
		Short: "Classify one image and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, args[0], overlayPath)
		},
	}

	cmd.Flags().StringVarP(&overlayPath, "overlay", "o", "",
		"Write the image with drawn detections to this PNG file")
	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, imagePath, overlayPath string) error {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	client := inference.New(settings.Inference.Endpoint, settings.Inference.Timeout)
	defer client.Close()

	result, err := client.Classify(cmd.Context(), imageData, imagePath)
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))

	if overlayPath == "" {
		return nil
	}

	img, err := render.DecodeBytes(imageData)
	if err != nil {
		return err
	}
	out, err := os.Create(overlayPath)
	if err != nil {
		return fmt.Errorf("failed to create overlay file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if err := render.EncodePNG(out, render.Overlay(img, result.Detections)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "overlay written to %s\n", overlayPath)
	return nil
}
