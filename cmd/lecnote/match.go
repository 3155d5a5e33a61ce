package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"lecnote/internal/pipeline"
)

func matchCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "match <YYYYMMDD-HHMMSS | file name>",
		Short: "Show which course a recording time resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ts, ok := pipeline.TimestampFromName(args[0], a.loc)
			if !ok {
				return fmt.Errorf("no YYYYMMDD-HHMMSS timestamp in %q", args[0])
			}
			index, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}

			m, matched := index.Match(ts)
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(struct {
					Time       string `json:"time"`
					Matched    bool   `json:"matched"`
					CourseName string `json:"course_name,omitempty"`
					WeekNum    int    `json:"week_num"`
				}{ts.Format("2006-01-02T15:04:05Z07:00"), matched, m.CourseName, index.WeekNum(ts)})
			}
			if !matched {
				fmt.Fprintf(out, "%s: no course within tolerance (week %d)\n", ts.Format("2006-01-02 15:04"), index.WeekNum(ts))
				return nil
			}
			fmt.Fprintf(out, "%s: %s, week %d\n", ts.Format("2006-01-02 15:04"), m.CourseName, m.WeekNum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
