package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agrisight-io/agrisight/internal/agent"
	"github.com/agrisight-io/agrisight/pkg/log"
	"github.com/agrisight-io/agrisight/pkg/options"
)

const commandDesc = `The AgriSight agent runs on an AGV. It listens for power, mission, and zone
action commands over MQTT, drives the vehicle along its inspection route,
samples the onboard classifier at each node, and uploads the collected
observations to the backend.`

// Options aggregates everything configurable on the agent command line.
type Options struct {
	ConfigFile string

	Agent *options.AgentOptions
	Mqtt  *options.MqttOptions
	Log   *log.Options
}

func NewOptions() *Options {
	return &Options{
		Agent: options.NewAgentOptions(),
		Mqtt:  options.NewMqttOptions(),
		Log:   log.NewOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", "", "Path to an optional YAML config file.")

	o.Agent.AddFlags(fs)
	o.Mqtt.AddFlags(fs)
	o.Log.AddFlags(fs)
}

func (o *Options) Validate() error {
	errs := []error{}
	errs = append(errs, o.Agent.Validate()...)
	errs = append(errs, o.Mqtt.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

func (o *Options) Complete(fs *pflag.FlagSet) error {
	_ = godotenv.Load()
	return options.BindConfig(fs, o.ConfigFile)
}

// NewAgentCommand creates the agrisight-agent root command.
func NewAgentCommand() *cobra.Command {
	o := NewOptions()

	cmd := &cobra.Command{
		Use:           "agrisight-agent",
		Short:         "On-vehicle inspection agent",
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

func run(o *Options) error {
	log.Init(o.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := agent.NewFromOptions(o.Agent, o.Mqtt)
	if err != nil {
		return err
	}

	return a.Run(ctx)
}
