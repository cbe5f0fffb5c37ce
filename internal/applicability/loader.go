package applicability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apiwatch "k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"gopkg.in/yaml.v3"

	"github.com/weldcfg/configurator/internal/infrastructure/k8s"
)

// LoaderConfig configures the ConfigMap-backed loader.
type LoaderConfig struct {
	// Namespace the ConfigMap lives in.
	Namespace string
	// Name of the ConfigMap.
	Name string
	// DataKey is the key inside the ConfigMap's Data map holding the
	// YAML-encoded entry list.
	DataKey string
	// KubeconfigPath is empty for in-cluster config.
	KubeconfigPath string
	// Timeout bounds a single Get/List call.
	Timeout time.Duration
}

// DefaultLoaderConfig returns sane defaults for in-cluster deployment.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Namespace: "configurator",
		Name:      "applicability-table",
		DataKey:   "applicability.yaml",
		Timeout:   10 * time.Second,
	}
}

// Loader loads the Applicability Table from a Kubernetes ConfigMap and
// optionally watches it for updates, pushing reloads into a Table (spec
// §4.1 "Implementation freedom: any reload discipline (SIGHUP, periodic,
// immutable). No behavior depends on reload speed."). It delegates the
// actual API calls to k8s.K8sClient, the same retry-with-backoff and
// error-classification wrapper the teacher built for Secret lookups,
// extended here with the ConfigMap get/watch this table needs.
type Loader struct {
	cfg    LoaderConfig
	client k8s.K8sClient
	log    *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewLoader builds a Loader using either in-cluster config or a
// kubeconfig file, mirroring the teacher's NewK8sClient construction.
func NewLoader(cfg LoaderConfig, log *slog.Logger) (*Loader, error) {
	if log == nil {
		log = slog.Default()
	}
	restConfig, err := buildRestConfig(cfg.KubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("applicability: build rest config: %w", err)
	}
	clientConfig := k8s.DefaultK8sClientConfig()
	clientConfig.Timeout = cfg.Timeout
	clientConfig.Logger = log
	client, err := k8s.NewK8sClientFromRESTConfig(restConfig, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("applicability: build k8s client: %w", err)
	}
	return &Loader{cfg: cfg, client: client, log: log, stopCh: make(chan struct{})}, nil
}

func buildRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		cfg, err := rest.InClusterConfig()
		if err == nil {
			return cfg, nil
		}
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, &clientcmd.ConfigOverrides{},
	).ClientConfig()
}

// LoadOnce fetches the ConfigMap once and decodes its entries.
func (l *Loader) LoadOnce(ctx context.Context) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	cm, err := l.client.GetConfigMap(ctx, l.cfg.Namespace, l.cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("applicability: get configmap %s/%s: %w", l.cfg.Namespace, l.cfg.Name, err)
	}
	return decodeEntries(cm, l.cfg.DataKey)
}

func decodeEntries(cm *corev1.ConfigMap, dataKey string) ([]Entry, error) {
	raw, ok := cm.Data[dataKey]
	if !ok {
		return nil, fmt.Errorf("applicability: configmap missing key %q", dataKey)
	}
	var entries []Entry
	if err := yaml.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("applicability: decode %q: %w", dataKey, err)
	}
	return entries, nil
}

// Watch starts a goroutine that re-fetches the ConfigMap on every change
// event and calls onReload with the freshly decoded entries. It returns
// immediately; call Stop to terminate the watch loop.
func (l *Loader) Watch(ctx context.Context, onReload func([]Entry)) error {
	watcher, err := l.client.WatchConfigMaps(ctx, l.cfg.Namespace, "metadata.name="+l.cfg.Name)
	if err != nil {
		return fmt.Errorf("applicability: watch configmap: %w", err)
	}

	go func() {
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case event, ok := <-watcher.ResultChan():
				if !ok {
					return
				}
				l.handleEvent(event, onReload)
			}
		}
	}()
	return nil
}

func (l *Loader) handleEvent(event apiwatch.Event, onReload func([]Entry)) {
	if event.Type != apiwatch.Added && event.Type != apiwatch.Modified {
		return
	}
	cm, ok := event.Object.(*corev1.ConfigMap)
	if !ok {
		return
	}
	entries, err := decodeEntries(cm, l.cfg.DataKey)
	if err != nil {
		l.log.Error("applicability table reload failed", "error", err)
		return
	}
	l.log.Info("applicability table reloaded", "rows", len(entries))
	onReload(entries)
}

// Stop terminates the watch loop started by Watch. Safe to call multiple
// times.
func (l *Loader) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
