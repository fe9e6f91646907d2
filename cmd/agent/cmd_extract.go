package main

import (
	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/report"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract ARCHIVE DIR",
	Short: "Unpack a report bundle",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		fs := afero.NewOsFs()

		file, err := fs.Open(args[0])
		if err != nil {
			log.Fatal(err)
		}
		defer file.Close()

		if err := report.Extract(fs, file, args[1]); err != nil {
			log.Fatal(err)
		}

		log.Info("Extracted", args[0], "to", args[1])
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
