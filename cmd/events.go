package cmd

import (
	"fmt"
	"io"

	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var bySession bool

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the shell event log.",
}

var reportCommand = &cobra.Command{
	Use:   "report",
	Short: "Show a report of events.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		config, err := loadConfig()
		if err != nil {
			return err
		}

		fd, err := config.ReadEventLog()
		if err != nil {
			return err
		}
		defer fd.Close()

		return writeReport(cmd.OutOrStdout(), fd, bySession)
	},
}

func writeReport(w io.Writer, r io.Reader, bySession bool) error {
	var report interface{}
	var update func(*logger.LogEntry)
	if bySession {
		sessions := &logger.SessionReport{}
		report, update = sessions, sessions.Update
	} else {
		summary := logger.NewReport()
		report, update = summary, summary.Update
	}

	if err := logger.ReadJSONLinesLog(r, update); err != nil {
		return err
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, string(out))

	return nil
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(reportCommand)
	reportCommand.Flags().BoolVar(&bySession, "sessions", false, "group commands by session")
}
