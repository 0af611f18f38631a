package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/cms-backend/internal/platform/logger"
)

const minNamespaceRetention = 24 * time.Hour

// NewClient dials Temporal, retrying until DialMaxWait, and registers the
// namespace first when AutoRegisterNamespace is set. It returns nil, nil when
// cfg has no address.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (temporalsdkclient.Client, error) {
	if !cfg.Enabled() {
		log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		return nil, nil
	}
	opts, err := clientOptions(cfg, log, true)
	if err != nil {
		return nil, err
	}

	var c temporalsdkclient.Client
	err = Retry(ctx, cfg, cfg.DialMaxWait, func(attempt int) (bool, error) {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		var dialErr error
		c, dialErr = temporalsdkclient.DialContext(dialCtx, opts)
		if dialErr != nil {
			log.Warn("Temporal not reachable", "address", cfg.Address, "attempt", attempt, "error", dialErr)
			return true, dialErr
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
	}
	log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace)

	if cfg.AutoRegisterNamespace {
		if err := EnsureNamespace(ctx, cfg, log); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// EnsureNamespace describes the namespace and registers it when missing.
// Temporal Cloud namespaces must be pre-provisioned.
func EnsureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	namespace := strings.TrimSpace(cfg.Namespace)
	if namespace == "" || !cfg.Enabled() {
		return nil
	}
	// The namespace client sends no namespace header, so it can register one
	// that does not exist yet.
	opts, err := clientOptions(cfg, log, false)
	if err != nil {
		return err
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer nsClient.Close()

	retention := cfg.NamespaceRetention
	if retention < minNamespaceRetention {
		retention = minNamespaceRetention
	}
	maxWait := cfg.NamespaceEnsureWait
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	return Retry(ctx, cfg, maxWait, func(attempt int) (bool, error) {
		_, err := nsClient.Describe(ctx, namespace)
		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        namespace,
				Description:                      "cms auto-registered namespace",
				WorkflowExecutionRetentionPeriod: durationpb.New(retention),
			})
			var already *serviceerror.NamespaceAlreadyExists
			if err == nil {
				log.Info("Registered Temporal namespace", "namespace", namespace, "retention", retention.String())
			} else if errors.As(err, &already) {
				err = nil
			}
		}
		if err != nil && isRetryableRPC(err) {
			log.Warn("Temporal namespace ensure retrying", "namespace", namespace, "attempt", attempt, "error", err)
			return true, err
		}
		if err != nil {
			return false, fmt.Errorf("temporal namespace ensure (namespace=%s): %w", namespace, err)
		}
		return false, nil
	})
}

// Retry calls fn until it reports no retry, maxWait elapses or ctx ends.
// Sleeps between attempts double from cfg.DialBackoff up to DialBackoffMax.
// A non-positive maxWait allows a single attempt.
func Retry(ctx context.Context, cfg Config, maxWait time.Duration, fn func(attempt int) (retry bool, err error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		retry, err := fn(attempt)
		if err == nil || !retry {
			return err
		}
		sleep := ClampBackoff(cfg.DialBackoff, cfg.DialBackoffMax, attempt)
		if maxWait <= 0 || time.Now().Add(sleep).After(deadline) {
			return err
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-t.C:
		}
	}
}

func clientOptions(cfg Config, log *logger.Logger, withNamespace bool) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{HostPort: cfg.Address, Logger: log}
	if withNamespace {
		opts.Namespace = cfg.Namespace
	}
	if cfg.mTLS() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH are both required for mTLS")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(cfg.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: read CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("temporal tls: invalid CA pem")
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

// ClampBackoff doubles base per attempt, capped at max.
func ClampBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
