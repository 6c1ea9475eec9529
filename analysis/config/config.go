// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return LoadFromFiles(configFile)
}

// Config contains the options and the instrumentation settings of the tool.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// Instrumentation specifies which function is instrumented and how the accesses are tagged
	Instrumentation InstrumentationSpec `yaml:"instrumentation"`

	// Sink specifies where the runtime logging hook writes the access records
	Sink SinkSpec `yaml:"sink"`
}

// Options are the general options of the tool
type Options struct {
	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// InstrumentationSpec contains the settings of the instrumentation passes.
type InstrumentationSpec struct {
	// Mode is either ModeFunction (only the target function is instrumented, tags are INPUT/OUTPUT) or ModeModule
	// (every load and store of every function is instrumented, tags are LOAD/STORE)
	Mode string `yaml:"mode"`

	// Scheme is the name of the tag scheme used to label the records. If empty, the scheme is chosen by the mode.
	Scheme string `yaml:"scheme"`

	// LegacyLabels makes the module mode label its LOAD/STORE tags with the INPUT/OUTPUT names, which reproduces
	// traces produced by older versions of the profiler.
	LegacyLabels bool `yaml:"legacy-labels"`

	// Hook is the name of the logging entry point called by the instrumentation
	Hook string `yaml:"hook"`

	// PassName is the name under which the default pass is registered in the pipeline. If empty, the name is chosen
	// by the mode.
	PassName string `yaml:"pass-name"`

	// AllowReinstrument disables the check that skips functions already calling the hook
	AllowReinstrument bool `yaml:"allow-reinstrument"`

	// Target describes the signature of the function whose buffers are tracked
	Target TargetProfile `yaml:"target"`

	// Exclusions lists the names of the functions that must never be instrumented
	Exclusions []NamePattern `yaml:"exclusions"`
}

// TargetProfile describes the target function: its name, its number of arguments and the positions of the
// tracked input and output buffers.
type TargetProfile struct {
	Name        NamePattern `yaml:"name"`
	Arity       int         `yaml:"arity"`
	InputIndex  int         `yaml:"input-index"`
	OutputIndex int         `yaml:"output-index"`
}

// SinkSpec contains the settings of the runtime sink.
type SinkSpec struct {
	// Path is the trace file
	Path string `yaml:"path"`

	// Append keeps the content of an existing trace file instead of truncating it
	Append bool `yaml:"append"`

	// RetryOpen makes the sink retry opening the trace file on every record after a failure. When false, the sink
	// stops logging after the first failure.
	RetryOpen bool `yaml:"retry-open"`

	// Buffered keeps the records in memory until the sink is flushed. When false, every record is written to the
	// file immediately.
	Buffered bool `yaml:"buffered"`
}

// DefaultTargetProfile returns the profile of the fully-connected kernel: nine arguments, the input buffer is the
// third argument and the output buffer is the last one.
func DefaultTargetProfile() TargetProfile {
	return TargetProfile{
		Name:        MustNamePattern(DefaultTargetName),
		Arity:       DefaultTargetArity,
		InputIndex:  DefaultInputIndex,
		OutputIndex: DefaultOutputIndex,
	}
}

// DefaultExclusions returns the patterns of the profiler and allocator internals that are never instrumented.
func DefaultExclusions() []NamePattern {
	var res []NamePattern
	for _, name := range []string{
		"PrintAllocations", "LogTicksPerTagCsv", "RecordingMicroAllocator", "MicroProfiler", "Profiler",
	} {
		res = append(res, MustNamePattern(name))
	}
	return res
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			LogLevel:    int(InfoLevel),
			SilenceWarn: false,
		},
		Instrumentation: InstrumentationSpec{
			Mode:       ModeFunction,
			Hook:       DefaultHookName,
			Target:     DefaultTargetProfile(),
			Exclusions: DefaultExclusions(),
		},
		Sink: SinkSpec{
			Path: DefaultTracePath,
		},
	}
}

// LoadFromFiles reads the file and loads the configuration from its content
func LoadFromFiles(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Load(filename, b)
}

// Load reads a configuration from the content of a file. The filename is only used to resolve relative paths.
func Load(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	// exclusions are replaced, not merged, when the file specifies them
	cfg.Instrumentation.Exclusions = nil
	hasExclusions := false

	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	if instr, ok := raw["instrumentation"].(map[string]any); ok {
		_, hasExclusions = instr["exclusions"]
	}
	if !hasExclusions {
		cfg.Instrumentation.Exclusions = DefaultExclusions()
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if err := cfg.Instrumentation.normalize(); err != nil {
		return nil, err
	}
	if cfg.Sink.Path == "" {
		cfg.Sink.Path = DefaultTracePath
	}
	return cfg, nil
}

// normalize fills in the defaults that depend on other settings and checks the settings are consistent.
func (s *InstrumentationSpec) normalize() error {
	switch s.Mode {
	case "":
		s.Mode = ModeFunction
	case ModeFunction, ModeModule:
	default:
		return fmt.Errorf("unknown instrumentation mode %q (expected %q or %q)", s.Mode, ModeFunction, ModeModule)
	}
	if s.Hook == "" {
		s.Hook = DefaultHookName
	}
	if s.Target.Name.String() == "" {
		s.Target.Name = MustNamePattern(DefaultTargetName)
	}
	if s.Target.Arity == 0 {
		s.Target.Arity = DefaultTargetArity
		if s.Target.InputIndex == 0 && s.Target.OutputIndex == 0 {
			s.Target.InputIndex = DefaultInputIndex
			s.Target.OutputIndex = DefaultOutputIndex
		}
	}
	return s.Target.Validate()
}

// Validate returns an error if the profile cannot select any argument pair.
func (p TargetProfile) Validate() error {
	if p.Arity <= 0 {
		return fmt.Errorf("target arity must be positive, got %d", p.Arity)
	}
	if p.InputIndex < 0 || p.InputIndex >= p.Arity {
		return fmt.Errorf("target input index %d out of range for arity %d", p.InputIndex, p.Arity)
	}
	if p.OutputIndex < 0 || p.OutputIndex >= p.Arity {
		return fmt.Errorf("target output index %d out of range for arity %d", p.OutputIndex, p.Arity)
	}
	if p.InputIndex == p.OutputIndex {
		return fmt.Errorf("target input and output buffers must be different arguments (both are %d)",
			p.InputIndex)
	}
	return nil
}

// SchemeName returns the name of the tag scheme used by the instrumentation: the configured one if specified,
// otherwise the one of the mode.
func (s InstrumentationSpec) SchemeName() string {
	if s.Scheme != "" {
		return s.Scheme
	}
	if s.Mode == ModeModule && !s.LegacyLabels {
		return SchemeAccess
	}
	return SchemeBuffer
}

// DefaultPassName returns the name of the pass that is inserted in the default pipeline.
func (s InstrumentationSpec) DefaultPassName() string {
	if s.PassName != "" {
		return s.PassName
	}
	if s.Mode == ModeModule {
		return ModulePassName
	}
	return FunctionPassName
}

// IsExcluded returns true if the function name matches one of the exclusion patterns
func (s InstrumentationSpec) IsExcluded(name string) bool {
	for _, p := range s.Exclusions {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
