package main

import (
	"github.com/spf13/cobra"

	"icalgen/internal/pipeline"
	"icalgen/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversion HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if serveListen != "" {
			conf.Listen = serveListen
		}
		conv, err := pipeline.New(conf)
		if err != nil {
			return err
		}
		return web.StartServer(cmd.Context(), conf, conv)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
}
