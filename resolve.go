package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zerbitx/mockserver/encode"
	"github.com/zerbitx/mockserver/mock"
)

type resolved struct {
	Status  int                    `json:"status"`
	Headers map[string]interface{} `json:"headers"`
	Body    string                 `json:"body"`
	File    string                 `json:"file,omitempty"`
	DelayMS int64                  `json:"delayMs,omitempty"`
}

func newResolveCmd(f *flags) *cobra.Command {
	var (
		body    string
		headers []string
	)

	cmd := &cobra.Command{
		Use:   "resolve METHOD URL",
		Short: "Print the response a request would get, without starting a server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, f)
			if err != nil {
				return err
			}

			requestHeaders := map[string]string{}
			for _, h := range headers {
				name, value, ok := strings.Cut(h, "=")
				if !ok {
					return fmt.Errorf("header %q is not name=value", h)
				}
				requestHeaders[name] = value
			}

			res, err := newResolver(cfg, newLogger(cfg)).Resolve(mock.NewRequest(args[0], args[1], "", body, requestHeaders))
			if err != nil {
				return err
			}

			return encode.JSONIndented(resolved{
				Status:  res.Status,
				Headers: res.Headers.Map(),
				Body:    res.Body,
				File:    res.File,
				DelayMS: res.Delay.Milliseconds(),
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&body, "body", "d", "", "Request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header as name=value, repeatable")

	return cmd
}
