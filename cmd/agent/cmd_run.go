package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/browsermob/agent/pkg/browser"
	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/logstash"
	"github.com/browsermob/agent/pkg/report"
	"github.com/browsermob/agent/pkg/runner"
	"github.com/browsermob/agent/pkg/scheduler"
	"github.com/browsermob/agent/pkg/session"
	"github.com/browsermob/agent/pkg/utils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] PAGE...",
	Short: "Run a smoke test batch, one test per page",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := LoadConfig(viper.GetViper())
		if err != nil {
			log.Fatal(err)
		}
		config.Log()

		platform := browser.NewPlatformWithDefaults()
		if err := platform.LoadConfig(viper.GetViper()); err != nil {
			log.Fatal(err)
		}

		cases, err := smokeSuite(config.Application, args)
		if err != nil {
			log.Fatal(err)
		}

		fs := afero.NewOsFs()
		registry := session.NewRegistry()
		registry.SetFs(fs)

		logFs, err := utils.NewBasePathFs(filepath.Join(config.OutputDir, LogDir))
		if err != nil {
			log.Fatal(err)
		}
		stash := logstash.NewLogStash(config, logFs)

		r := runner.NewRunner(config, browser.NewCDPSession, registry)
		r.SetPlatform(platform)
		r.SetLogStash(stash)

		batch, err := r.Schedule(cases)
		if err != nil {
			log.Fatal(err)
		}

		ctx, cancel := utils.InterruptContext(context.Background())
		defer cancel()

		result, err := runBatch(ctx, batch, stash, viper.GetStringSlice("listen_http"))
		if result != nil {
			if path, err := report.WriteSummary(fs, config.OutputDir, result); err != nil {
				log.Warn("Failed to write summary:", err)
			} else {
				log.Info("Summary written to", path)
			}

			if viper.GetBool("bundle") {
				archive := config.OutputDir + ".tar.zst"
				if err := report.BundleToFile(fs, config.OutputDir, archive); err != nil {
					log.Warn("Failed to bundle reports:", err)
				} else if info, err := fs.Stat(archive); err == nil {
					log.Infof("Reports bundled to %s (%s)", archive, utils.HumanByteSize(info.Size()))
				}
			}

			result.WriteSummary(os.Stdout)
		}

		switch {
		case errors.Is(err, scheduler.ErrInterrupted):
			log.Warn(err)
			os.Exit(130)
		case err != nil:
			log.DebugError(err)
			log.Fatal(err)
		case !result.Success():
			os.Exit(1)
		}
	},
}

// Directory below the output directory holding test logs.
const LogDir = "logs"

// Wait for the batch while serving its progress on the given addresses.
func runBatch(ctx context.Context, batch *runner.Batch, stash logstash.LogStash, listen []string) (*runner.Result, error) {
	httpCtx, stopHttp := context.WithCancel(ctx)
	defer stopHttp()

	g := errgroup.Group{}
	for _, uri := range listen {
		g.Go(func() error {
			return serveHttp(httpCtx, batch.Scheduler(), stash, uri)
		})
	}

	result, err := batch.Wait(ctx)
	stopHttp()

	if httpErr := g.Wait(); httpErr != nil {
		log.Warn("HTTP server failed:", httpErr)
	}
	return result, err
}

func init() {
	runCmd.Flags().StringP("name", "n", "agent", "Batch name")
	runCmd.Flags().IntP("threads", "j", scheduler.DefaultPoolSize, "Number of tests to run concurrently")
	runCmd.Flags().StringP("output-dir", "o", runner.DefaultOutputDir, "Directory for screenshots and reports")
	runCmd.Flags().StringP("server", "s", browser.DefaultServer, "Remote browser host")
	runCmd.Flags().IntP("server-port", "p", browser.DefaultPort, "Remote browser DevTools port")
	runCmd.Flags().StringP("application", "a", runner.DefaultApplication, "URL of the application under test")
	runCmd.Flags().StringP("browser", "b", browser.DefaultSelector, "Browser selector, or platform:browser:version")
	runCmd.Flags().StringSlice("platform", []string{}, "Platform property key=value (repeatable)")
	runCmd.Flags().Duration("shutdown-grace", scheduler.DefaultShutdownGrace, "Time to wait for workers after the batch")
	runCmd.Flags().StringSliceP("listen-http", "l", []string{}, "Addresses to serve batch progress on, e.g. tcp://:8080")
	runCmd.Flags().Bool("bundle", false, "Archive the output directory as a .tar.zst file")
	runCmd.Flags().String("max-log-size", runner.DefaultMaxLogSize, "Size limit of each test log, 0 for unlimited")

	viper.BindPFlag("name", runCmd.Flags().Lookup("name"))
	viper.BindPFlag("threads", runCmd.Flags().Lookup("threads"))
	viper.BindPFlag("output_dir", runCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("server", runCmd.Flags().Lookup("server"))
	viper.BindPFlag("server_port", runCmd.Flags().Lookup("server-port"))
	viper.BindPFlag("application", runCmd.Flags().Lookup("application"))
	viper.BindPFlag("browser", runCmd.Flags().Lookup("browser"))
	viper.BindPFlag("platform", runCmd.Flags().Lookup("platform"))
	viper.BindPFlag("shutdown_grace", runCmd.Flags().Lookup("shutdown-grace"))
	viper.BindPFlag("listen_http", runCmd.Flags().Lookup("listen-http"))
	viper.BindPFlag("bundle", runCmd.Flags().Lookup("bundle"))
	viper.BindPFlag("max_log_size", runCmd.Flags().Lookup("max-log-size"))

	rootCmd.AddCommand(runCmd)
}
