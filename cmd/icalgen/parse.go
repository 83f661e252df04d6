package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"icalgen/internal/pipeline"
)

var (
	parseImage string
	parseJSON  bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [text-file]",
	Short: "Print the weekly slots found in a timetable",
	Long: `Parse prints the weekly slots recognized in a text file, in standard
input when the file is "-" or omitted, or in an image given with --image.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := pipeline.New(conf)
		if err != nil {
			return err
		}

		var text string
		if parseImage != "" {
			text, err = conv.Text(cmd.Context(), pipeline.Request{Image: parseImage})
		} else {
			text, err = readText(cmd.InOrStdin(), args)
		}
		if err != nil {
			return err
		}

		slots := conv.Parser.Parse(text)
		out := cmd.OutOrStdout()
		if parseJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(slots)
		}
		for _, s := range slots {
			fmt.Fprintf(out, "%-9s %5s-%-5s %s\n", s.Day, s.StartClock(), s.EndClock(), s.Code)
		}
		fmt.Fprintf(out, "%d slots\n", len(slots))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseImage, "image", "", "Read the timetable from an image through OCR")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print slots as JSON")
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return string(b), nil
}
