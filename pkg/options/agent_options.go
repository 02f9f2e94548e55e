package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AgentOptions)(nil)

// AgentOptions configures the on-vehicle agent: its identity, inspection
// route, sampling policy, and the backend it reports to.
type AgentOptions struct {
	AGVID     string `json:"agv-id" mapstructure:"agv-id"`
	ServerURL string `json:"server-url" mapstructure:"server-url"`

	// Nodes is the ordered inspection route for one cycle.
	Nodes []string `json:"nodes" mapstructure:"nodes"`

	// Samples and SampleDelay control the classifier sampling loop per node.
	Samples     int           `json:"samples" mapstructure:"samples"`
	SampleDelay time.Duration `json:"sample-delay" mapstructure:"sample-delay"`

	// UploadTimeout bounds the cycle upload call to the backend.
	UploadTimeout time.Duration `json:"upload-timeout" mapstructure:"upload-timeout"`
}

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		AGVID:         "AGV1",
		ServerURL:     "http://localhost:8000",
		Nodes:         []string{"green", "purple", "blue", "orange"},
		Samples:       5,
		SampleDelay:   200 * time.Millisecond,
		UploadTimeout: 30 * time.Second,
	}
}

func (o *AgentOptions) Validate() []error {
	errs := []error{}

	if o.AGVID == "" {
		errs = append(errs, errors.New("agent.agv-id is required"))
	}
	if o.ServerURL == "" {
		errs = append(errs, errors.New("agent.server-url is required"))
	}
	if len(o.Nodes) == 0 {
		errs = append(errs, errors.New("agent.nodes must name at least one inspection node"))
	}
	if o.Samples < 1 {
		errs = append(errs, fmt.Errorf("agent.samples must be at least 1, got %d", o.Samples))
	}

	return errs
}

func (o *AgentOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.AGVID, "agent.agv-id", o.AGVID, "Identifier of this AGV; scopes its command topics.")
	fs.StringVar(&o.ServerURL, "agent.server-url", o.ServerURL, "Base URL of the backend receiving observation uploads.")
	fs.StringSliceVar(&o.Nodes, "agent.nodes", o.Nodes, "Ordered inspection nodes visited per cycle.")
	fs.IntVar(&o.Samples, "agent.samples", o.Samples, "Classifier samples captured per node.")
	fs.DurationVar(&o.SampleDelay, "agent.sample-delay", o.SampleDelay, "Delay between consecutive samples at a node.")
	fs.DurationVar(&o.UploadTimeout, "agent.upload-timeout", o.UploadTimeout, "Timeout for the cycle upload call.")
}
