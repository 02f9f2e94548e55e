package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agrisight-io/agrisight/internal/server"
	"github.com/agrisight-io/agrisight/pkg/log"
	"github.com/agrisight-io/agrisight/pkg/options"
)

const commandDesc = `The AgriSight server coordinates AGV inspection cycles for a smart farm.
It relays operator commands to vehicles over MQTT, ingests per-node camera
observations into object storage, runs vision-language analysis over completed
cycles, and serves the resulting task lists over HTTP.`

// Options aggregates everything configurable on the server command line.
type Options struct {
	ConfigFile string

	Server *server.Config
	Log    *log.Options
}

func NewOptions() *Options {
	return &Options{
		Server: server.NewConfig(),
		Log:    log.NewOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", "", "Path to an optional YAML config file.")

	o.Server.HTTP.AddFlags(fs)
	o.Server.Mqtt.AddFlags(fs)
	o.Server.S3.AddFlags(fs)
	o.Server.LLM.AddFlags(fs)
	o.Server.Store.AddFlags(fs)
	o.Log.AddFlags(fs)
}

func (o *Options) Validate() error {
	errs := []error{}
	errs = append(errs, o.Server.HTTP.Validate()...)
	errs = append(errs, o.Server.Mqtt.Validate()...)
	errs = append(errs, o.Server.S3.Validate()...)
	errs = append(errs, o.Server.LLM.Validate()...)
	errs = append(errs, o.Server.Store.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

// NewServerCommand creates the agrisight-server root command.
func NewServerCommand() *cobra.Command {
	o := NewOptions()

	cmd := &cobra.Command{
		Use:           "agrisight-server",
		Short:         "AGV inspection coordination backend",
		Long:          commandDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd.Flags()); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return run(o)
		},
	}

	o.AddFlags(cmd.Flags())

	return cmd
}

// Complete fills unset flags from the environment and the optional config
// file. A .env file in the working directory is loaded first so local
// development can keep credentials out of the shell.
func (o *Options) Complete(fs *pflag.FlagSet) error {
	_ = godotenv.Load()
	return options.BindConfig(fs, o.ConfigFile)
}

func run(o *Options) error {
	log.Init(o.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, o.Server)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
