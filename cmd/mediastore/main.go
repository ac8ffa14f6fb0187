package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"runtime"
	"syscall"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/mdouchement/mediastore/internal/config"
	"github.com/mdouchement/mediastore/internal/database"
	"github.com/mdouchement/mediastore/internal/index"
	"github.com/mdouchement/mediastore/internal/media"
	"github.com/mdouchement/mediastore/internal/scheduler"
	"github.com/mdouchement/mediastore/internal/storage"
	"github.com/mdouchement/mediastore/internal/webserver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfgfile string
	v       = config.New()
)

func main() {
	c := &cobra.Command{
		Use:     "mediastore",
		Short:   "Chunked media upload service",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.PersistentFlags().StringVarP(&cfgfile, "config", "c", "", "Configuration file (default ./mediastore.yml)")

	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for mediastore",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringP("binding", "b", "0.0.0.0", "Server's binding")
	serverCmd.Flags().StringP("port", "p", "5000", "Server's port")
	v.BindPFlag("server.binding", serverCmd.Flags().Lookup("binding"))
	v.BindPFlag("server.port", serverCmd.Flags().Lookup("port"))
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgfile)
			if err != nil {
				return err
			}
			return database.StormInit(cfg.Database)
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgfile)
			if err != nil {
				return err
			}
			return database.StormReIndex(cfg.Database)
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgfile)
			if err != nil {
				return err
			}

			ctrl := webserver.Controller{
				Version: c.Parent().Version,
				Kinds:   cfg.BucketsByKind(),
			}

			//

			log := logrus.New()
			log.SetFormatter(&logger.LogrusTextFormatter{
				DisableColors:   false,
				ForceColors:     true,
				ForceFormatting: true,
				PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
			ctrl.Logger = logger.WrapLogrus(log)

			//

			db, err := database.StormOpen(cfg.Database)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			backend := storage.NewFileSystem(cfg.Storage)

			store, err := chunkstore.New(chunkstore.Controller{
				Logger:    ctrl.Logger,
				Database:  db,
				Storage:   backend,
				ChunkSize: cfg.Store.ChunkSize,
				CacheSize: cfg.Store.CacheSize,
			})
			if err != nil {
				return errors.Wrap(err, "could not create object store")
			}

			idx := index.New(ctrl.Logger, db)

			ctrl.Media = media.New(media.Controller{
				Logger:            ctrl.Logger,
				Store:             store,
				Index:             idx,
				Buckets:           cfg.Buckets(),
				CompensateOrphans: cfg.Upload.CompensateOrphans,
			})

			//

			buckets := make([]string, 0, len(cfg.Kinds))
			for _, bucket := range cfg.Buckets() {
				buckets = append(buckets, bucket.Name)
			}

			cron, err := scheduler.Start(scheduler.Controller{
				Logger:        ctrl.Logger,
				Store:         store,
				Index:         idx,
				Storage:       backend,
				Buckets:       buckets,
				Specification: cfg.Sweep.Specification,
				Grace:         cfg.Sweep.Grace,
			})
			if err != nil {
				return errors.Wrap(err, "could not start scheduler")
			}
			defer func() {
				<-cron.Stop().Done()
			}()

			//

			engine := webserver.EchoEngine(ctrl)
			engine.Server.ReadTimeout = cfg.Server.ReadTimeout
			engine.Server.WriteTimeout = cfg.Server.WriteTimeout
			webserver.PrintRoutes(engine)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			done := make(chan struct{})
			go func() {
				defer close(done)
				<-ctx.Done()
				log.Info("Shutting down")

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := engine.Shutdown(ctx); err != nil {
					log.Errorf("could not shutdown server: %s", err)
				}
			}()

			listen := fmt.Sprintf("%s:%s", cfg.Server.Binding, cfg.Server.Port)
			log.Printf("Server listening on %s", listen)
			if err = engine.Start(listen); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "could not run server")
			}

			<-done
			return nil
		},
	}
)
