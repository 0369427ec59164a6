package logscan

import (
	_ "embed"
	"os"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/quil-exporter/internal/model"
)

//go:embed schema.yaml
var defaultSchema []byte

type schemaFile struct {
	Version int          `yaml:"version"`
	Signals []signalSpec `yaml:"signals"`
}

type signalSpec struct {
	Name    string  `yaml:"name"`
	Metric  string  `yaml:"metric"`
	Marker  string  `yaml:"marker"`
	Pattern string  `yaml:"pattern"`
	Core    bool    `yaml:"core"`
	Default float64 `yaml:"default"`
	Version int     `yaml:"version"`
}

// DefaultSignals returns the schema shipped with the exporter.
func DefaultSignals() []Signal {
	signals, err := ParseSchema(defaultSchema)
	if err != nil {
		panic(errors.Wrap(err, "embedded signal schema"))
	}
	return signals
}

// LoadSchema reads a schema file. An empty path selects the built-in schema.
func LoadSchema(path string) ([]Signal, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSignals(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read signal schema %s", path)
	}
	signals, err := ParseSchema(data)
	if err != nil {
		return nil, errors.Wrapf(err, "signal schema %s", path)
	}
	return signals, nil
}

// ParseSchema decodes and validates a YAML signal schema.
func ParseSchema(data []byte) ([]Signal, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if len(file.Signals) == 0 {
		return nil, errors.New("schema declares no signals")
	}

	seen := make(map[string]bool, len(file.Signals))
	signals := make([]Signal, 0, len(file.Signals))
	for i, entry := range file.Signals {
		sig, err := entry.compile()
		if err != nil {
			return nil, errors.Wrapf(err, "signal %d", i)
		}
		if seen[sig.Name] {
			return nil, errors.Newf("duplicate signal %q", sig.Name)
		}
		seen[sig.Name] = true
		signals = append(signals, sig)
	}
	return signals, nil
}

func (s signalSpec) compile() (Signal, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Signal{}, errors.New("missing name")
	}
	if s.Marker == "" {
		return Signal{}, errors.Newf("%s: missing marker", name)
	}
	if !model.IsNodeMetric(s.Metric) {
		return Signal{}, errors.Newf("%s: unknown metric %q", name, s.Metric)
	}
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return Signal{}, errors.Wrapf(err, "%s: pattern", name)
	}
	if re.NumSubexp() == 0 {
		return Signal{}, errors.Newf("%s: pattern has no capture group", name)
	}
	return Signal{
		Name:    name,
		Metric:  s.Metric,
		Marker:  s.Marker,
		Pattern: re,
		Core:    s.Core,
		Default: s.Default,
		Version: s.Version,
	}, nil
}
