// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/backend"
	"github.com/relabs-tech/restmodel/core/csql"
	"github.com/relabs-tech/restmodel/core/logger"
	"github.com/relabs-tech/restmodel/core/notifier"
	"github.com/relabs-tech/restmodel/core/persistence/objectstore"
	"github.com/relabs-tech/restmodel/core/persistence/sqlstore"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(service *Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured collections",
		Example: `  # in-memory collections on port 3000
  restmodel serve -c blog.yaml

  # persist in sqlite and publish notifications to kafka
  RESTMODEL_NOTIFIER=kafka:localhost:9092/blog restmodel serve -c blog.yaml --store sqlite --dsn blog.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), service)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&service.Addr, "addr", service.Addr, "the listen address")
	flags.StringVar(&service.Store, "store", service.Store, "memory, postgres, pgx, sqlite, local or s3")
	flags.StringVar(&service.DSN, "dsn", service.DSN, "database connection string, directory for local or bucket for s3")
	flags.StringVar(&service.Schema, "schema", service.Schema, "the postgres schema")
	flags.StringVar(&service.Notifier, "notifier", service.Notifier, "comma separated notifiers")
	flags.StringVar(&service.Metrics, "metrics", service.Metrics, "the route of the prometheus metrics")
	flags.BoolVar(&service.CORS, "cors", service.CORS, "answer CORS requests")
	return cmd
}

func newValidateCommand(service *Service) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the collection configuration and print the resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, format, err := readConfiguration(service.Config)
			if err != nil {
				return err
			}
			b, err := newBackend(mux.NewRouter(), data, format, backend.Builder{})
			if err != nil {
				return err
			}
			defer b.Close()
			out := cmd.OutOrStdout()
			for _, resource := range b.Resources() {
				fmt.Fprintln(out, resource)
			}
			return nil
		},
	}
}

// readConfiguration reads the configuration file, the format follows from the extension
func readConfiguration(path string) (string, string, error) {
	if path == "" {
		return "", "", errors.New("no configuration, use --config or RESTMODEL_CONFIG")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", "", err
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return string(data), format, nil
}

// newBackend creates the backend and turns configuration panics into errors
func newBackend(router *mux.Router, config, format string, builder backend.Builder) (b *backend.Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid configuration: %v", r)
		}
	}()
	builder.Router = router
	builder.Config = config
	builder.ConfigFormat = format
	b = backend.New(&builder)
	return b, nil
}

// adapterFor returns the persistence of the collections, and a function to release it
func adapterFor(ctx context.Context, service *Service) (backend.AdapterFunc, func(), error) {
	switch service.Store {
	case "", "memory":
		return backend.Memory(), func() {}, nil
	case csql.DriverPostgres, csql.DriverPgx, csql.DriverSQLite:
		db, err := csql.Open(service.Store, service.DSN, service.Schema)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.Adapter(db), func() { db.Close() }, nil
	case "local", "s3":
		config := objectstore.Configuration{
			DriverType:         objectstore.DriverTypeLocal,
			LocalConfiguration: &objectstore.LocalConfiguration{BasePath: service.DSN},
		}
		if service.Store == "s3" {
			config = objectstore.Configuration{
				DriverType: objectstore.DriverTypeAWSS3,
				S3Configuration: &objectstore.S3Configuration{
					AWSBucketName: service.DSN,
					AWSRegion:     service.Region,
				},
			}
		}
		driver, err := objectstore.NewDriver(ctx, config)
		if err != nil {
			return nil, nil, err
		}
		return objectstore.Adapter(driver), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store '%s'", service.Store)
}

func serve(ctx context.Context, service *Service) error {
	level, err := logrus.ParseLevel(service.LogLevel)
	if err != nil {
		return err
	}
	logger.InitLogger(level)

	data, format, err := readConfiguration(service.Config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, release, err := adapterFor(ctx, service)
	if err != nil {
		return err
	}
	defer release()

	var n core.Notifier
	if service.Notifier != "" {
		if n, err = notifier.New(ctx, service.Notifier); err != nil {
			return err
		}
		defer notifier.Close(n)
	}

	router := mux.NewRouter()
	b, err := newBackend(router, data, format, backend.Builder{
		Adapter:      adapter,
		Notifier:     n,
		Registerer:   prometheus.NewRegistry(),
		MetricsRoute: service.Metrics,
		CORS:         service.CORS,
		Compression:  true,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	srv := &http.Server{
		Addr:              service.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Default().Infoln("listen on", service.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err = <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Default().Infoln("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
