package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/fleetwatch"
	"pkt.systems/fleetwatch/core"
	"pkt.systems/fleetwatch/internal/appconfig"
	"pkt.systems/fleetwatch/schema"
	"pkt.systems/pslog"
)

func newWatchCmd() *cobra.Command {
	var cfgPath string
	var machine int64
	var appType string
	var daemonName string
	var user string
	var level int64
	var timestamps bool
	var noPersist bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream fleet events to the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			stateDir := cfg.StateDir
			if noPersist {
				stateDir = ""
			}
			clientCfg := fleetwatch.ClientConfig{
				ServerURL: cfg.Server.URL,
				StateDir:  stateDir,
				Filter: schema.EventFilter{
					Machine:    machine,
					AppType:    appType,
					DaemonType: daemonName,
					User:       user,
					Level:      level,
				},
				Tabs: core.Config{
					NonClosable:  cfg.Tabs.NonClosable,
					ListTabTitle: cfg.Tabs.ListTitle,
					NewTabTitle:  cfg.Tabs.NewTitle,
				},
				EventBufferDepth: cfg.Events.BufferDepth,
				PageLimit:        cfg.Tabs.PageLimit,
				FeedbackHistory:  cfg.Events.FeedbackHistory,
				Timestamps:       timestamps,
			}
			httpClient := &http.Client{
				Timeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			}
			client, err := fleetwatch.NewClient(clientCfg, fleetwatch.ClientDeps{
				HTTPClient: httpClient,
				Out:        cmd.OutOrStdout(),
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := client.Stop(stopCtx); err != nil {
					logger.Warn("client stop failed", "err", err)
				}
			}()
			logger.Info("watching fleet events", "server", cfg.Server.URL)
			if err := client.Start(ctx); err != nil {
				return err
			}
			return client.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().Int64Var(&machine, "machine", 0, "filter messages by machine id")
	cmd.Flags().StringVar(&appType, "app-type", "", "filter messages by app type (kea, bind9)")
	cmd.Flags().StringVar(&daemonName, "daemon", "", "filter messages by daemon name")
	cmd.Flags().StringVar(&user, "user", "", "filter messages by user")
	cmd.Flags().Int64Var(&level, "level", 0, "minimum message level (0 info, 1 warning, 2 error)")
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "prefix events with their creation time")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not restore or save the tab session")
	return cmd
}
