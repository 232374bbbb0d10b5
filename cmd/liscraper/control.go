package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liscraper/internal/control"
)

// controlCmd represents the control command
var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Pause, resume, or stop a running scrape",
	Long: `Control a running scrape through shared Redis flags.

A paused run waits between subjects until resumed; a stopped run finishes
the current subject and exits, leaving the rest of the queue intact. Flags
are cooperative: nothing is interrupted mid-profile.`,
}

var controlPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause processing after the current subject",
	Args:  cobra.NoArgs,
	RunE:  controlAction(func(ctx context.Context, sw *control.Switch) error { return sw.Pause(ctx) }, "Scrape paused"),
}

var controlResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused scrape",
	Args:  cobra.NoArgs,
	RunE:  controlAction(func(ctx context.Context, sw *control.Switch) error { return sw.Resume(ctx) }, "Scrape resumed"),
}

var controlStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the scrape after the current subject",
	Args:  cobra.NoArgs,
	RunE:  controlAction(func(ctx context.Context, sw *control.Switch) error { return sw.RequestStop(ctx) }, "Stop requested"),
}

var controlClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear both control flags",
	Args:  cobra.NoArgs,
	RunE:  controlAction(func(ctx context.Context, sw *control.Switch) error { return sw.Clear(ctx) }, "Control flags cleared"),
}

var controlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current control flags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		sw := control.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer sw.Close()

		paused, stopped, err := sw.State(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("paused:  %v\nstopped: %v\n", paused, stopped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.AddCommand(controlPauseCmd)
	controlCmd.AddCommand(controlResumeCmd)
	controlCmd.AddCommand(controlStopCmd)
	controlCmd.AddCommand(controlClearCmd)
	controlCmd.AddCommand(controlStatusCmd)
}

func controlAction(action func(context.Context, *control.Switch) error, done string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		sw := control.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer sw.Close()

		if err := action(ctx, sw); err != nil {
			return err
		}
		fmt.Println(done)
		return nil
	}
}
