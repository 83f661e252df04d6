package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"icalgen/internal/ocr"
	"icalgen/internal/pipeline"
)

type generateFlags struct {
	image    string
	url      string
	textFile string
	start    string
	end      string
	output   string
	summary  string
}

var genFlags generateFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an .ics file from a timetable",
	Long: `Generate reads a timetable from --image (local file or http(s) URL),
--url (web page, captured with headless Chromium) or --text (already extracted
text), expands every weekly slot between --start and --end inclusive and
writes the calendar to --output.`,
	Example: `  icalgen generate --image horaire.png --start 2024-09-03 --end 2024-12-20
  icalgen generate --text horaire.txt --start 2024-09-03 --end 2024-12-20 -o automne.ics`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		conv, err := pipeline.New(conf)
		if err != nil {
			return err
		}
		if genFlags.summary != "" {
			conv.Summary = genFlags.summary
		}

		req, err := buildRequest(genFlags, conv)
		if err != nil {
			return err
		}

		res, err := conv.Run(cmd.Context(), req)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "iCal file generated successfully: %s (%d events from %d slots)\n",
			res.Output, len(res.Events), len(res.Slots))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringVar(&genFlags.image, "image", "", "Timetable screenshot path or http(s) URL")
	f.StringVar(&genFlags.url, "url", "", "Web page to capture and read")
	f.StringVar(&genFlags.textFile, "text", "", "File holding already extracted timetable text")
	f.StringVar(&genFlags.start, "start", "", "First date, YYYY-MM-DD")
	f.StringVar(&genFlags.end, "end", "", "Last date, YYYY-MM-DD (inclusive)")
	f.StringVarP(&genFlags.output, "output", "o", pipeline.DefaultOutput, "Output file path")
	f.StringVar(&genFlags.summary, "summary", "", "Event title (overrides config)")
	generateCmd.MarkFlagsMutuallyExclusive("image", "url", "text")
	_ = generateCmd.MarkFlagRequired("start")
	_ = generateCmd.MarkFlagRequired("end")
}

// buildRequest turns flags into a request for conv. A --text file is read by
// swapping conv's extractor for ocr.TextFile and passing the file as the image.
func buildRequest(f generateFlags, conv *pipeline.Converter) (pipeline.Request, error) {
	start, end, err := parseRange(f.start, f.end, conv.Location)
	if err != nil {
		return pipeline.Request{}, err
	}

	req := pipeline.Request{
		Image:   f.image,
		PageURL: f.url,
		Start:   start,
		End:     end,
		Output:  f.output,
	}
	if f.textFile != "" {
		conv.Extractor = ocr.TextFile{}
		req.Image = f.textFile
	}
	return req, nil
}

func parseRange(startStr, endStr string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(time.DateOnly, startStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: want YYYY-MM-DD", startStr)
	}
	end, err := time.ParseInLocation(time.DateOnly, endStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: want YYYY-MM-DD", endStr)
	}
	return start, end, nil
}
