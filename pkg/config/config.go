// Package config loads nodescaler's process-wide configuration: defaults,
// then an optional ConfigMap, then environment variables, then CLI flags,
// in that precedence order, validated once at startup and immutable for the
// rest of the process lifetime.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"

	"nodescaler/pkg/quantity"
)

// ConfigMapNamespace and ConfigMapName locate the optional seed ConfigMap;
// its absence is not an error, only a signal to fall through to env/flags.
const (
	ConfigMapNamespace = "nodescaler-system"
	ConfigMapName      = "nodescaler-config"
)

// Config holds every option spec §3's Config table enumerates, plus the
// label names and cloud provider selector the expanded CLI surface adds.
type Config struct {
	BufferCPUPercent    float64
	BufferMemoryPercent float64
	BufferPodsPercent   float64
	BufferCPUFixed      string
	BufferMemoryFixed   string
	BufferPodsFixed     int64
	BufferSpareNodes    int64

	IncludeMasterNodes bool

	ScaleDownStepFixed int64
	ScaleDownStepPct   float64

	IntervalSeconds int64
	Once            bool

	ASGNameLabel string
	AZLabel      string

	CloudProvider string
	Kubeconfig    string
}

// DefaultConfig returns the configuration spec §3 names as defaults.
func DefaultConfig() *Config {
	return &Config{
		BufferCPUPercent:    0.10,
		BufferMemoryPercent: 0.10,
		BufferPodsPercent:   0.10,
		BufferCPUFixed:      "200m",
		BufferMemoryFixed:   "200Mi",
		BufferPodsFixed:     10,
		BufferSpareNodes:    1,
		IncludeMasterNodes:  false,
		ScaleDownStepFixed:  1,
		ScaleDownStepPct:    0,
		IntervalSeconds:     60,
		Once:                false,
		ASGNameLabel:        "eks.amazonaws.com/nodegroup",
		AZLabel:             "topology.kubernetes.io/zone",
		CloudProvider:       "aws",
	}
}

// LoadConfig builds a Config from defaults, an optional ConfigMap, and
// environment variables, validates it, and logs the resolved values.
// ConfigMap access failures (including "not found") are non-fatal: nodescaler
// falls back to defaults and environment variables, as CLI flags applied by
// the caller still take final precedence.
func LoadConfig(ctx context.Context, client kubernetes.Interface) (*Config, error) {
	cfg := DefaultConfig()

	cm, err := client.CoreV1().ConfigMaps(ConfigMapNamespace).Get(ctx, ConfigMapName, metav1.GetOptions{})
	if err != nil {
		klog.V(2).InfoS("ConfigMap not found, using defaults and environment variables", "error", err)
	} else if err := cfg.loadFromConfigMapData(cm.Data); err != nil {
		klog.Warningf("Error loading from ConfigMap, using defaults: %v", err)
	} else {
		klog.InfoS("Loaded configuration from ConfigMap", "namespace", ConfigMapNamespace, "name", ConfigMapName)
	}

	cfg.loadFromEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Log()
	return cfg, nil
}

func (c *Config) loadFromConfigMapData(data map[string]string) error {
	if data == nil {
		return fmt.Errorf("ConfigMap data is nil")
	}
	return c.applyStringMap(data, "ConfigMap")
}

// loadFromEnvironment overrides with NODESCALER_* environment variables,
// which take precedence over the ConfigMap.
func (c *Config) loadFromEnvironment() {
	env := map[string]string{}
	for _, key := range []string{
		"BUFFER_CPU_PCT", "BUFFER_MEMORY_PCT", "BUFFER_PODS_PCT",
		"BUFFER_CPU_FIXED", "BUFFER_MEMORY_FIXED", "BUFFER_PODS_FIXED",
		"BUFFER_SPARE_NODES", "INCLUDE_MASTER_NODES",
		"SCALE_DOWN_STEP_FIXED", "SCALE_DOWN_STEP_PCT",
		"INTERVAL_SECONDS", "ONCE", "ASG_NAME_LABEL", "AZ_LABEL",
		"CLOUD_PROVIDER", "KUBECONFIG_PATH",
	} {
		if v, ok := os.LookupEnv("NODESCALER_" + key); ok && v != "" {
			env[envToField(key)] = v
		}
	}
	if err := c.applyStringMap(env, "environment"); err != nil {
		klog.Warningf("Error applying environment overrides: %v", err)
	}
}

func envToField(key string) string {
	switch key {
	case "BUFFER_CPU_PCT":
		return "bufferCPUPercent"
	case "BUFFER_MEMORY_PCT":
		return "bufferMemoryPercent"
	case "BUFFER_PODS_PCT":
		return "bufferPodsPercent"
	case "BUFFER_CPU_FIXED":
		return "bufferCPUFixed"
	case "BUFFER_MEMORY_FIXED":
		return "bufferMemoryFixed"
	case "BUFFER_PODS_FIXED":
		return "bufferPodsFixed"
	case "BUFFER_SPARE_NODES":
		return "bufferSpareNodes"
	case "INCLUDE_MASTER_NODES":
		return "includeMasterNodes"
	case "SCALE_DOWN_STEP_FIXED":
		return "scaleDownStepFixed"
	case "SCALE_DOWN_STEP_PCT":
		return "scaleDownStepPct"
	case "INTERVAL_SECONDS":
		return "intervalSeconds"
	case "ONCE":
		return "once"
	case "ASG_NAME_LABEL":
		return "asgNameLabel"
	case "AZ_LABEL":
		return "azLabel"
	case "CLOUD_PROVIDER":
		return "cloudProvider"
	case "KUBECONFIG_PATH":
		return "kubeconfig"
	default:
		return key
	}
}

// applyStringMap is the single parsing routine shared by both the ConfigMap
// and environment-variable paths, so the two sources can never drift on
// what a given key means.
func (c *Config) applyStringMap(data map[string]string, source string) error {
	if v, ok := data["bufferCPUPercent"]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid bufferCPUPercent in %s: %w", source, err)
		}
		c.BufferCPUPercent = f
	}
	if v, ok := data["bufferMemoryPercent"]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid bufferMemoryPercent in %s: %w", source, err)
		}
		c.BufferMemoryPercent = f
	}
	if v, ok := data["bufferPodsPercent"]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid bufferPodsPercent in %s: %w", source, err)
		}
		c.BufferPodsPercent = f
	}
	if v, ok := data["bufferCPUFixed"]; ok && v != "" {
		c.BufferCPUFixed = v
	}
	if v, ok := data["bufferMemoryFixed"]; ok && v != "" {
		c.BufferMemoryFixed = v
	}
	if v, ok := data["bufferPodsFixed"]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid bufferPodsFixed in %s: %w", source, err)
		}
		c.BufferPodsFixed = n
	}
	if v, ok := data["bufferSpareNodes"]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid bufferSpareNodes in %s: %w", source, err)
		}
		c.BufferSpareNodes = n
	}
	if v, ok := data["includeMasterNodes"]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid includeMasterNodes in %s: %w", source, err)
		}
		c.IncludeMasterNodes = b
	}
	if v, ok := data["scaleDownStepFixed"]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid scaleDownStepFixed in %s: %w", source, err)
		}
		c.ScaleDownStepFixed = n
	}
	if v, ok := data["scaleDownStepPct"]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid scaleDownStepPct in %s: %w", source, err)
		}
		c.ScaleDownStepPct = f
	}
	if v, ok := data["intervalSeconds"]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid intervalSeconds in %s: %w", source, err)
		}
		c.IntervalSeconds = n
	}
	if v, ok := data["once"]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid once in %s: %w", source, err)
		}
		c.Once = b
	}
	if v, ok := data["asgNameLabel"]; ok && v != "" {
		c.ASGNameLabel = v
	}
	if v, ok := data["azLabel"]; ok && v != "" {
		c.AZLabel = v
	}
	if v, ok := data["cloudProvider"]; ok && v != "" {
		c.CloudProvider = v
	}
	if v, ok := data["kubeconfig"]; ok && v != "" {
		c.Kubeconfig = v
	}
	return nil
}

// Validate checks the resolved configuration for internal consistency and
// parseability; failures here are a ConfigError (fatal at startup).
func (c *Config) Validate() error {
	if c.BufferCPUPercent < 0 {
		return fmt.Errorf("bufferCPUPercent must be >= 0, got %f", c.BufferCPUPercent)
	}
	if c.BufferMemoryPercent < 0 {
		return fmt.Errorf("bufferMemoryPercent must be >= 0, got %f", c.BufferMemoryPercent)
	}
	if c.BufferPodsPercent < 0 {
		return fmt.Errorf("bufferPodsPercent must be >= 0, got %f", c.BufferPodsPercent)
	}
	if _, err := quantity.ParseCPU(c.BufferCPUFixed); err != nil {
		return fmt.Errorf("bufferCPUFixed: %w", err)
	}
	if _, err := quantity.ParseMemory(c.BufferMemoryFixed); err != nil {
		return fmt.Errorf("bufferMemoryFixed: %w", err)
	}
	if c.BufferPodsFixed < 0 {
		return fmt.Errorf("bufferPodsFixed must be >= 0, got %d", c.BufferPodsFixed)
	}
	if c.BufferSpareNodes < 0 {
		return fmt.Errorf("bufferSpareNodes must be >= 0, got %d", c.BufferSpareNodes)
	}
	if c.ScaleDownStepFixed < 0 {
		return fmt.Errorf("scaleDownStepFixed must be >= 0, got %d", c.ScaleDownStepFixed)
	}
	if c.ScaleDownStepPct < 0 || c.ScaleDownStepPct > 1 {
		return fmt.Errorf("scaleDownStepPct must be in [0, 1], got %f", c.ScaleDownStepPct)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("intervalSeconds must be > 0, got %d", c.IntervalSeconds)
	}
	if c.ASGNameLabel == "" {
		return fmt.Errorf("asgNameLabel cannot be empty")
	}
	if c.AZLabel == "" {
		return fmt.Errorf("azLabel cannot be empty")
	}
	if c.CloudProvider != "aws" && c.CloudProvider != "fake" {
		return fmt.Errorf("cloudProvider must be 'aws' or 'fake', got %s", c.CloudProvider)
	}
	return nil
}

// Log emits the resolved configuration as one structured log line.
func (c *Config) Log() {
	klog.InfoS("nodescaler configuration",
		"bufferCPUPercent", c.BufferCPUPercent,
		"bufferMemoryPercent", c.BufferMemoryPercent,
		"bufferPodsPercent", c.BufferPodsPercent,
		"bufferCPUFixed", c.BufferCPUFixed,
		"bufferMemoryFixed", c.BufferMemoryFixed,
		"bufferPodsFixed", c.BufferPodsFixed,
		"bufferSpareNodes", c.BufferSpareNodes,
		"includeMasterNodes", c.IncludeMasterNodes,
		"scaleDownStepFixed", c.ScaleDownStepFixed,
		"scaleDownStepPct", c.ScaleDownStepPct,
		"intervalSeconds", c.IntervalSeconds,
		"once", c.Once,
		"asgNameLabel", c.ASGNameLabel,
		"azLabel", c.AZLabel,
		"cloudProvider", c.CloudProvider)
}

// IntervalDuration is a convenience conversion for the driver loop's ticker.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Buffers converts the flat Config fields into the quantity.Buffers bundle
// the decision core consumes, resolving the two fixed-buffer quantity
// strings.
func (c *Config) Buffers() (quantity.Buffers, error) {
	cpuFixed, err := quantity.ParseCPU(c.BufferCPUFixed)
	if err != nil {
		return quantity.Buffers{}, fmt.Errorf("bufferCPUFixed: %w", err)
	}
	memFixed, err := quantity.ParseMemory(c.BufferMemoryFixed)
	if err != nil {
		return quantity.Buffers{}, fmt.Errorf("bufferMemoryFixed: %w", err)
	}
	return quantity.Buffers{
		CPUPercent:    c.BufferCPUPercent,
		MemoryPercent: c.BufferMemoryPercent,
		PodsPercent:   c.BufferPodsPercent,
		CPUFixed:      cpuFixed.Value,
		MemoryFixed:   memFixed.Value,
		PodsFixed:     c.BufferPodsFixed,
	}, nil
}
