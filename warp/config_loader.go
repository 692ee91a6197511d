package warp

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads a warp job configuration from a YAML file.
// Relative file paths are resolved against the config file's directory, and
// control points from controlPointsFile (GeoJSON) are appended after the inline ones.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	config.resolvePaths(filepath.Dir(path))

	if config.ControlPointsFile != "" {
		pairs, err := LoadControlPointsGeoJSON(config.ControlPointsFile)
		if err != nil {
			return nil, fmt.Errorf("loading control points: %w", err)
		}
		config.ControlPoints = append(config.ControlPoints, pairs...)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseConfig decodes YAML and fills in defaults without validating
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// resolvePaths makes the config's relative file paths relative to dir
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Source, &c.Output, &c.ControlPointsFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Alpha == 0 {
		c.Alpha = DefaultAlpha
	}
	if c.Eps == 0 {
		c.Eps = DefaultEps
	}
	if c.Output == "" {
		c.Output = "warped.png"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "mlswarp"
	}
	if c.MQTT.PublishPrefix == "" {
		c.MQTT.PublishPrefix = "mlswarp"
	}
	if c.MQTT.RequestTopic == "" {
		c.MQTT.RequestTopic = c.MQTT.PublishPrefix + "/request"
	}
}

// Validate checks required fields and the deformation parameters
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source is required")
	}
	if len(c.ControlPoints) == 0 {
		return fmt.Errorf("at least one control point must be defined")
	}
	if !(c.Alpha > 0) {
		return fmt.Errorf("alpha must be positive, got %v", c.Alpha)
	}
	if !(c.Eps > 0) {
		return fmt.Errorf("eps must be positive, got %v", c.Eps)
	}
	for i, pair := range c.ControlPoints {
		if !pair.From.IsFinite() || !pair.To.IsFinite() {
			return fmt.Errorf("controlPoints[%d] is not finite", i)
		}
	}
	if err := c.Options().Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
