package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediaproc/internal/config"
	"mediaproc/internal/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mediaproc",
		Short:         "Submit TV, radio and YouTube processing jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newProcessCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func newProcessCmd() *cobra.Command {
	var opts processOptions

	process := &cobra.Command{
		Use:   "process",
		Short: "Run one processing job and wait for its result",
	}
	process.PersistentFlags().StringVar(&opts.exportPath, "export", "", "write the result as JSON to this path (bare flag uses the default file name)")
	process.PersistentFlags().Lookup("export").NoOptDefVal = exportDefault
	process.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "give up waiting after this long (0 waits indefinitely)")
	process.PersistentFlags().BoolVar(&opts.json, "json", false, "print the result as JSON")

	for _, sub := range []struct {
		kind  domain.JobKind
		use   string
		short string
	}{
		{domain.JobKindTV, "tv <segment-id>", "Process a TV segment"},
		{domain.JobKindRadio, "radio <segment-id>", "Process a radio segment"},
		{domain.JobKindYouTube, "youtube <url>", "Process a YouTube video"},
	} {
		kind := sub.kind
		process.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				req, err := domain.NewJobRequest(kind, args[0])
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runProcess(ctx, req, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			},
		})
	}
	return process
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved, non-sensitive configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			info := cfg.Describe()
			keys := make([]string, 0, len(info))
			for key := range info {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-17s %s\n", key, info[key])
			}
			return nil
		},
	}
}

type processOptions struct {
	exportPath string
	timeout    time.Duration
	json       bool
}
