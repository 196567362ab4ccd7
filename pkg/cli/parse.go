package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/williamokano/tddf_uploader/pkg/tddf"
)

// parsedFile is the --json output of parse
type parsedFile struct {
	Filename  string `json:"filename"`
	DelayText string `json:"delayText"`
	tddf.ParsedTimestamps
}

func (a *app) parseCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <filename>...",
		Short: "Decode the scheduled slot and processing delay of TDDF filenames",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per filename")

	cmd.RunE = a.command(func(cmd *cobra.Command, args []string, log zerolog.Logger) error {
		loc, err := a.cfg.Location()
		if err != nil {
			return err
		}

		results := make([]parsedFile, 0, len(args))
		failed := 0
		for _, name := range args {
			parsed := tddf.ParseInLocation(name, loc)
			if !parsed.ParseSuccess {
				failed++
				log.Debug().Str("file", name).Err(parsed.Err()).Msg("filename did not parse")
			}
			results = append(results, parsedFile{
				Filename:         name,
				DelayText:        tddf.FormatDelay(parsed.ProcessingDelaySeconds),
				ParsedTimestamps: parsed,
			})
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range results {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
		} else if err := printParsed(cmd, results); err != nil {
			return err
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d: %w", failed, len(args), ErrParseFailed)
		}
		return nil
	})

	return cmd
}

func printParsed(cmd *cobra.Command, results []parsedFile) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSLOT\tSCHEDULED\tACTUAL\tDELAY")

	for _, r := range results {
		if !r.ParseSuccess {
			msg := "unknown error"
			if r.ErrorMessage != nil {
				msg = *r.ErrorMessage
			}
			fmt.Fprintf(w, "%s\t-\t-\t-\terror: %s\n", r.Filename, msg)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Filename,
			*r.ScheduledSlotLabel,
			r.ScheduledDateTime.Format(time.DateTime),
			r.ActualDateTime.Format(time.DateTime),
			r.DelayText,
		)
	}

	return w.Flush()
}
