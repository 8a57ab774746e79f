package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Brownie44l1/skinclass/internal/app"
	"github.com/Brownie44l1/skinclass/internal/config"
	"github.com/Brownie44l1/skinclass/internal/logging"
	"github.com/Brownie44l1/skinclass/internal/pipeline"
)

const (
	exitInput    = 1
	exitArtifact = 2
)

func main() {
	if err := newApp(logging.New()).Run(os.Args); err != nil {
		cli.HandleExitCoder(exitError(err))
		// not reached for mapped errors
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInput)
	}
}

func newApp(logger *logrus.Logger) *cli.App {
	return &cli.App{
		Name:  "skinclass",
		Usage: "classify skin lesion photographs into Acne, Melanoma, Psoriasis, Ringworm or Scabies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"SKINCLASS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			predictCommand(logger),
			batchCommand(logger),
			browseCommand(logger),
			serveCommand(logger),
			artifactCommand(),
		},
	}
}

// exitError maps pipeline errors to process exit codes: 2 when an artifact could
// not be loaded, 1 for everything else.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(cli.ExitCoder); ok {
		return err
	}
	if pipeline.IsArtifactError(err) {
		return cli.Exit(err.Error(), exitArtifact)
	}
	return cli.Exit(err.Error(), exitInput)
}

// loadApp reads the config named by --config and loads both artifacts.
func loadApp(c *cli.Context, logger logrus.FieldLogger, recorder pipeline.Recorder) (*app.App, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, &pipeline.ArtifactError{Artifact: "configuration", Err: err}
	}
	return app.New(cfg, logger, recorder)
}
