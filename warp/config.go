package warp

// ControlPointPair is one correspondence: image content at From should end up at To
type ControlPointPair struct {
	From Point `yaml:"from" json:"from"`
	To   Point `yaml:"to" json:"to"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	RequestTopic  string `yaml:"requestTopic" json:"requestTopic"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
}

// Config represents the full configuration file
type Config struct {
	Source            string             `yaml:"source" json:"source"`
	Output            string             `yaml:"output,omitempty" json:"output,omitempty"`
	Variant           Variant            `yaml:"variant" json:"variant"`
	Alpha             float64            `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	Eps               float64            `yaml:"eps,omitempty" json:"eps,omitempty"`
	BatchRows         int                `yaml:"batchRows,omitempty" json:"batchRows,omitempty"`
	Workers           int                `yaml:"workers,omitempty" json:"workers,omitempty"`
	DegeneracyTol     float64            `yaml:"degeneracyTol,omitempty" json:"degeneracyTol,omitempty"`
	ControlPoints     []ControlPointPair `yaml:"controlPoints,omitempty" json:"controlPoints,omitempty"`
	ControlPointsFile string             `yaml:"controlPointsFile,omitempty" json:"controlPointsFile,omitempty"`
	MQTT              MQTTConfig         `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
}

// Options returns the deformer options described by the config
func (c *Config) Options() Options {
	return Options{
		Alpha:         c.Alpha,
		Eps:           c.Eps,
		BatchRows:     c.BatchRows,
		Workers:       c.Workers,
		DegeneracyTol: c.DegeneracyTol,
	}
}

// ControlPointSet splits the configured pairs into matched P and Q slices
func (c *Config) ControlPointSet() ControlPoints {
	return PairsToControlPoints(c.ControlPoints)
}

// PairsToControlPoints splits correspondences into matched P and Q slices
func PairsToControlPoints(pairs []ControlPointPair) ControlPoints {
	cp := ControlPoints{
		P: make([]Point, len(pairs)),
		Q: make([]Point, len(pairs)),
	}
	for i, pair := range pairs {
		cp.P[i] = pair.From
		cp.Q[i] = pair.To
	}
	return cp
}
