// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// restmodel serves the collections of a JSON or YAML configuration as REST API
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/restmodel/core/backend"
)

// Service holds the configuration for this service. Every field can be overridden
// with the command line flag of the same name.
type Service struct {
	Addr     string `env:"RESTMODEL_ADDR,default=:3000" description:"the listen address"`
	Config   string `env:"RESTMODEL_CONFIG" description:"path of the JSON or YAML collection configuration"`
	LogLevel string `env:"RESTMODEL_LOG_LEVEL,default=info" description:"the log level"`
	Store    string `env:"RESTMODEL_STORE,default=memory" description:"memory, postgres, pgx, sqlite, local or s3"`
	DSN      string `env:"RESTMODEL_DSN" description:"database connection string, directory for local or bucket for s3"`
	Schema   string `env:"RESTMODEL_SCHEMA,default=restmodel" description:"the postgres schema"`
	Region   string `env:"RESTMODEL_S3_REGION,default=eu-central-1" description:"the AWS region of the s3 bucket"`
	Notifier string `env:"RESTMODEL_NOTIFIER" description:"comma separated notifiers, like kafka:localhost:9092/topic"`
	Metrics  string `env:"RESTMODEL_METRICS,default=/metrics" description:"the route of the prometheus metrics, empty to disable"`
	CORS     bool   `env:"RESTMODEL_CORS,default=false" description:"answer CORS requests"`
}

// Build-time variable set via ldflags
var version = "unset"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadService() (*Service, error) {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	return service, nil
}

func newRootCommand() *cobra.Command {
	service, err := loadService()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid environment:", err)
		os.Exit(2)
	}
	backend.Version = version

	root := &cobra.Command{
		Use:          "restmodel",
		Short:        "REST API for nested collections",
		SilenceUsage: true,
		Version:      version,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&service.Config, "config", "c", service.Config, "path of the JSON or YAML collection configuration")
	flags.StringVar(&service.LogLevel, "log-level", service.LogLevel, "log level: debug, info, warn or error")

	root.AddCommand(newServeCommand(service), newValidateCommand(service))
	return root
}
