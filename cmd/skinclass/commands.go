package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Brownie44l1/skinclass/internal/browse"
	"github.com/Brownie44l1/skinclass/internal/handlers"
	"github.com/Brownie44l1/skinclass/internal/knn"
	"github.com/Brownie44l1/skinclass/internal/metrics"
	"github.com/Brownie44l1/skinclass/internal/pipeline"
)

func predictCommand(logger logrus.FieldLogger) *cli.Command {
	return &cli.Command{
		Name:      "predict",
		Usage:     "classify one or more image files",
		ArgsUsage: "<file>...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("predict needs at least one image file", exitInput)
			}
			a, err := loadApp(c, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			var failed int
			for _, path := range c.Args().Slice() {
				res, err := a.Pipeline.PredictFile(c.Context, path)
				if err != nil {
					if !pipeline.IsInputError(err) {
						return err
					}
					failed++
					fmt.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
					continue
				}
				if c.NArg() > 1 {
					fmt.Fprintf(c.App.Writer, "%s: ", path)
				}
				fmt.Fprintf(c.App.Writer, "Predicted Category: %s\n", res.Label)
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d images could not be classified", failed, c.NArg()), exitInput)
			}
			return nil
		},
	}
}

type batchRecord struct {
	Source string           `json:"source"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func batchCommand(logger logrus.FieldLogger) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "classify every image matched by files, directories or ** globs",
		ArgsUsage: "<pattern>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print one JSON document instead of a table"},
			&cli.IntFlag{Name: "workers", Usage: "images decoded concurrently (default: batch.workers or CPU count)"},
		},
		Action: func(c *cli.Context) error {
			paths, err := browse.Expand(c.Args().Slice())
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return cli.Exit("no supported images matched", exitInput)
			}

			a, err := loadApp(c, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			workers := c.Int("workers")
			if workers == 0 {
				workers = a.Config.Batch.Workers
			}
			items, err := a.Pipeline.PredictBatch(c.Context, paths, workers)
			if err != nil {
				return err
			}

			records := make([]batchRecord, len(items))
			for i, item := range items {
				records[i] = batchRecord{Source: item.Source, Result: item.Result}
				if item.Err != nil {
					records[i].Error = item.Err.Error()
				}
			}
			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			return writeTable(c, records)
		},
	}
}

func writeTable(c *cli.Context, records []batchRecord) error {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tLABEL\tCONFIDENCE")
	for _, r := range records {
		if r.Result == nil {
			fmt.Fprintf(tw, "%s\t-\t%s\n", r.Source, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\n", r.Source, r.Result.Label, r.Result.Confidence)
	}
	return tw.Flush()
}

func browseCommand(logger logrus.FieldLogger) *cli.Command {
	return &cli.Command{
		Name:      "browse",
		Usage:     "step through a set of images interactively and classify them",
		ArgsUsage: "[pattern]...",
		Action: func(c *cli.Context) error {
			a, err := loadApp(c, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			rl, err := readline.New("skinclass> ")
			if err != nil {
				return err
			}
			defer func() {
				_ = rl.Close()
			}()

			shell := browse.NewShell(a.Pipeline, rl.Stdout())
			if c.NArg() > 0 {
				shell.Exec(c.Context, "load "+strings.Join(c.Args().Slice(), " "))
			}
			return shell.Run(c.Context, rl)
		},
	}
}

func serveCommand(logger logrus.FieldLogger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "listen port (overrides server.port and PORT)"},
		},
		Action: func(c *cli.Context) error {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg)

			a, err := loadApp(c, logger, m)
			if err != nil {
				return err
			}
			defer a.Close()

			port := a.Config.Server.Port
			if p := c.String("port"); p != "" {
				port = p
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			h := handlers.NewHandler(a.Pipeline, a.Config.MaxUploadBytes(), logger)
			err = handlers.Serve(ctx, ":"+port, handlers.Routes(h, m, reg), logger)
			if err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "serve")
			}
			return nil
		},
	}
}

func artifactCommand() *cli.Command {
	return &cli.Command{
		Name:  "artifact",
		Usage: "inspect or build classifier artifacts",
		Subcommands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "print the settings of a classifier artifact",
				ArgsUsage: "<artifact.msgpack>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("inspect needs exactly one artifact path", exitInput)
					}
					classifier, err := knn.Load(c.Args().First())
					if err != nil {
						return &pipeline.ArtifactError{Artifact: "classifier", Err: err}
					}
					return inspect(c, classifier)
				},
			},
			{
				Name:      "pack",
				Usage:     "convert a JSON export of a fitted classifier into a msgpack artifact",
				ArgsUsage: "<export.json> <artifact.msgpack>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("pack needs an input JSON and an output path", exitInput)
					}
					in, out := c.Args().Get(0), c.Args().Get(1)

					f, err := os.Open(in)
					if err != nil {
						return &pipeline.ArtifactError{Artifact: in, Err: err}
					}
					defer f.Close()

					a, err := knn.ReadJSON(f)
					if err != nil {
						return &pipeline.ArtifactError{Artifact: in, Err: err}
					}
					if err := knn.Save(out, a); err != nil {
						return &pipeline.ArtifactError{Artifact: out, Err: err}
					}
					fmt.Fprintf(c.App.Writer, "wrote %s: %d samples, dim %d, k %d\n",
						out, len(a.Samples), a.Dim, a.K)
					return nil
				},
			},
		},
	}
}

func inspect(c *cli.Context, classifier *knn.Classifier) error {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "model_id\t%s\n", classifier.ModelID())
	fmt.Fprintf(tw, "samples\t%d\n", classifier.Size())
	fmt.Fprintf(tw, "dim\t%d\n", classifier.Dim())
	fmt.Fprintf(tw, "k\t%d\n", classifier.K())
	fmt.Fprintf(tw, "weights\t%s\n", classifier.Weights())
	fmt.Fprintf(tw, "metric\t%s\n", classifier.Metric())
	fmt.Fprintf(tw, "classes\t%v\n", classifier.Classes())
	fmt.Fprintf(tw, "scaler\t%t\n", classifier.Scaler() != nil)
	return tw.Flush()
}
