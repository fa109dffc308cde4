// Command nodescaler runs the cluster autoscaler driver loop: it wakes on
// an interval, fetches the orchestrator and cloud snapshots, runs the pure
// decision function, and applies the result through the cloud ASG client.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	ctrl "sigs.k8s.io/controller-runtime"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	"k8s.io/klog/v2"

	"nodescaler/pkg/cloud"
	"nodescaler/pkg/config"
	"nodescaler/pkg/driver"
	"nodescaler/pkg/orchestrator"
)

// exit codes per spec §6: 0 clean shutdown (including --once), 1
// ConfigError, 2 unrecoverable snapshot failure during --once.
const (
	exitOK          = 0
	exitConfigError = 1
	exitSnapshotErr = 2
)

func main() {
	klog.InitFlags(nil)

	// ctrl.SetLogger bridges controller-runtime's logr sink to klog so a
	// future reconciler-based driver (see SPEC_FULL §11) shares this
	// process's log pipeline instead of defaulting to the noisy
	// "log.SetLogger(...) was never called" fallback.
	ctrl.SetLogger(klog.NewKlogr())

	// Layer the optional ConfigMap and environment variables onto the
	// defaults before registering flags, so flags (parsed below) end up
	// with the right precedence: defaults < ConfigMap < environment <
	// flags. The bootstrap client only consults $KUBECONFIG, ~/.kube/config
	// and in-cluster config, since --kubeconfig itself isn't parsed yet; the
	// live orchestrator reader built after Parse honours --kubeconfig fully.
	// If no bootstrap client can be built, or LoadConfig fails, neither the
	// ConfigMap nor the environment variables are applied and the flags
	// layer directly onto the defaults.
	cfg := config.DefaultConfig()
	if bootstrapClient, err := buildKubeClient(""); err != nil {
		klog.V(2).InfoS("could not build a Kubernetes client before flag parsing, using defaults only", "error", err)
	} else if loaded, err := config.LoadConfig(context.Background(), bootstrapClient); err == nil {
		cfg = loaded
	}

	var kubeconfigFlag string
	var healthPort int

	flag.Float64Var(&cfg.BufferCPUPercent, "buffer-cpu-pct", cfg.BufferCPUPercent, "multiplicative CPU buffer, e.g. 0.10 for 10%")
	flag.Float64Var(&cfg.BufferMemoryPercent, "buffer-memory-pct", cfg.BufferMemoryPercent, "multiplicative memory buffer")
	flag.Float64Var(&cfg.BufferPodsPercent, "buffer-pods-pct", cfg.BufferPodsPercent, "multiplicative pod-count buffer")
	flag.StringVar(&cfg.BufferCPUFixed, "buffer-cpu-fixed", cfg.BufferCPUFixed, "additive CPU buffer quantity, e.g. 200m")
	flag.StringVar(&cfg.BufferMemoryFixed, "buffer-memory-fixed", cfg.BufferMemoryFixed, "additive memory buffer quantity, e.g. 200Mi")
	flag.Int64Var(&cfg.BufferPodsFixed, "buffer-pods-fixed", cfg.BufferPodsFixed, "additive pod-count buffer")
	flag.Int64Var(&cfg.BufferSpareNodes, "buffer-spare-nodes", cfg.BufferSpareNodes, "minimum weakest-node units guaranteed per partition")
	flag.BoolVar(&cfg.IncludeMasterNodes, "include-master-nodes", cfg.IncludeMasterNodes, "count master/control-plane nodes toward capacity")
	flag.Int64Var(&cfg.ScaleDownStepFixed, "scale-down-step-fixed", cfg.ScaleDownStepFixed, "maximum node-count decrease per ASG per iteration")
	flag.Float64Var(&cfg.ScaleDownStepPct, "scale-down-step-pct", cfg.ScaleDownStepPct, "alternative decrease cap as a fraction of current desired capacity")
	var intervalSeconds int64
	flag.Int64Var(&intervalSeconds, "interval", cfg.IntervalSeconds, "loop period in seconds")
	flag.BoolVar(&cfg.Once, "once", cfg.Once, "run a single iteration then exit")
	flag.StringVar(&cfg.ASGNameLabel, "asg-name-label", cfg.ASGNameLabel, "node label naming the ASG a node belongs to")
	flag.StringVar(&cfg.AZLabel, "az-label", cfg.AZLabel, "node label naming the node's availability zone")
	flag.StringVar(&cfg.CloudProvider, "cloud-provider", cfg.CloudProvider, "cloud ASG backend: aws or fake")
	flag.StringVar(&kubeconfigFlag, "kubeconfig", cfg.Kubeconfig, "path to kubeconfig (empty: $KUBECONFIG, then ~/.kube/config, then in-cluster config)")
	flag.IntVar(&healthPort, "health-port", 8080, "port for /healthz and /metrics, 0 to disable")
	flag.Parse()

	cfg.IntervalSeconds = intervalSeconds
	cfg.Kubeconfig = kubeconfigFlag

	if err := cfg.Validate(); err != nil {
		klog.ErrorS(err, "invalid configuration")
		os.Exit(exitConfigError)
	}
	cfg.Log()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k8sClient, err := buildKubeClient(cfg.Kubeconfig)
	if err != nil {
		klog.ErrorS(err, "failed to build Kubernetes client")
		os.Exit(exitConfigError)
	}

	reader, err := buildOrchestratorReader(ctx, k8sClient)
	if err != nil {
		klog.ErrorS(err, "failed to start orchestrator reader")
		os.Exit(exitSnapshotErr)
	}

	cloudClient, err := buildCloudClient(cfg.CloudProvider)
	if err != nil {
		klog.ErrorS(err, "failed to build cloud ASG client")
		os.Exit(exitConfigError)
	}

	d := driver.New(cfg, reader, cloudClient)
	if healthPort > 0 {
		d.Health().StartServer(healthPort)
	}

	if err := d.Run(ctx); err != nil {
		klog.ErrorS(err, "iteration failed")
		if cfg.Once {
			os.Exit(exitSnapshotErr)
		}
	}

	klog.InfoS("nodescaler shut down cleanly")
	os.Exit(exitOK)
}

// buildKubeClient prefers an explicit --kubeconfig, then $KUBECONFIG, then
// ~/.kube/config, then in-cluster config, mirroring the precedence the
// rest of the pack's standalone CLI tools use.
func buildKubeClient(kubeconfigFlag string) (kubernetes.Interface, error) {
	restCfg, err := buildRestConfig(kubeconfigFlag)
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restCfg)
}

func buildRestConfig(kubeconfigFlag string) (*rest.Config, error) {
	path := kubeconfigFlag
	if path == "" {
		path = os.Getenv("KUBECONFIG")
	}
	if path == "" {
		if home := homedir.HomeDir(); home != "" {
			path = filepath.Join(home, ".kube", "config")
		}
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if cfg, cfgErr := clientcmd.BuildConfigFromFlags("", path); cfgErr == nil {
				return cfg, nil
			}
		}
	}

	return rest.InClusterConfig()
}

func buildOrchestratorReader(ctx context.Context, client kubernetes.Interface) (orchestrator.Reader, error) {
	return orchestrator.NewLiveReader(ctx, client)
}

func buildCloudClient(provider string) (cloud.ASGClient, error) {
	switch provider {
	case "fake":
		return cloud.NewFakeClient(), nil
	case "aws":
		return nil, fmt.Errorf("cloud-provider %q requires a deployment-specific build with AWS credentials wired in; use --cloud-provider=fake for local runs", provider)
	default:
		return nil, fmt.Errorf("unknown cloud-provider %q", provider)
	}
}
