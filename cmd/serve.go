package main

import (
	"github.com/spf13/cobra"

	"github.com/amachado/gaceta/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ops server with scheduled briefings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := buildDeps(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer d.Close()

			// Scheduled runs never prompt.
			if d.mailer != nil && d.cfg.Delivery.To != "" {
				d.pipeline.Deliverer = &mailDeliverer{mailer: d.mailer, cfg: d.cfg.Delivery}
			}

			if addr == "" {
				addr = d.cfg.Server.Address
			}
			var secret []byte
			if d.cfg.Server.JWTSecret != "" {
				secret = []byte(d.cfg.Server.JWTSecret)
			}
			s := server.New(d.pipeline, d.cfg.Server.Schedule, secret, nil)
			return s.Run(addr)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
