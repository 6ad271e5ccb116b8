package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amachado/gaceta/config"
	"github.com/amachado/gaceta/internal/mail"
)

// mailDeliverer ships the briefing over SMTP to the configured recipients.
type mailDeliverer struct {
	mailer *mail.Mailer
	cfg    config.DeliveryConfig
}

func (d *mailDeliverer) Deliver(ctx context.Context, subject, htmlBody string) error {
	if d.cfg.Subject != "" {
		subject = d.cfg.Subject
	}
	return d.mailer.Send(d.cfg.To, d.cfg.BCC, subject, htmlBody)
}

// gatedDeliverer prints the briefing and asks for confirmation before
// handing off to the real deliverer. Used by interactive runs.
type gatedDeliverer struct {
	next *mailDeliverer
}

func (d *gatedDeliverer) Deliver(ctx context.Context, subject, htmlBody string) error {
	fmt.Println("==== briefing preview ====")
	fmt.Println(htmlBody)
	fmt.Println("==========================")
	fmt.Printf("send to %s (bcc %d)? [y/N] ", d.next.cfg.To, len(d.next.cfg.BCC))

	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(answer)) != "y" {
		fmt.Println("not sent")
		return nil
	}
	return d.next.Deliver(ctx, subject, htmlBody)
}

func runCMD() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one briefing run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := buildDeps(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer d.Close()

			if d.mailer != nil && d.cfg.Delivery.To != "" {
				md := &mailDeliverer{mailer: d.mailer, cfg: d.cfg.Delivery}
				if d.cfg.Delivery.NonInteractive {
					d.pipeline.Deliverer = md
				} else {
					d.pipeline.Deliverer = &gatedDeliverer{next: md}
				}
			}

			res, err := d.pipeline.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("run %s finished at stage %s: %d articles, persisted=%t, delivered=%t\n",
				res.RunID, res.Stage, len(res.Articles), res.Persisted, res.Delivered)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file")
	return cmd
}
