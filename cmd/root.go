package cmd

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/josephlewis42/jobsh/core"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	command string
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jobsh",
	Short: "A shell with job control",
	Long: `An interactive shell that runs pipelines as jobs.

Jobs can be started in the background with &, stopped with Ctrl+Z and moved
between the foreground and background with fg and bg.`,
	Args: cobra.ExactArgs(0),
	// Exit statuses are reported by Execute.
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		logger := log.New(cmd.ErrOrStderr(), "jobsh: ", 0)

		var status int
		if cmd.Flags().Changed("command") {
			status, err = runCommand(configuration, logger, command)
		} else {
			status, err = runInteractive(configuration, logger)
		}
		if err != nil {
			return err
		}
		if status != 0 {
			return &core.ExitError{Status: status}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()

	var exitErr *core.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Status)
	}
	cobra.CheckErr(err)
}

func init() {
	defaultDir, err := config.DefaultDir()
	if err != nil {
		defaultDir = "."
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultDir, "configuration directory")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit")
}
