package telemetry

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfileConfig points the continuous profiler at a Pyroscope server.
type ProfileConfig struct {
	Enabled     bool
	Address     string
	Application string
	User        string
	Password    string
	// Kinds are pyroscope profile type names such as "cpu" or "alloc_space".
	Kinds []string
}

var profileKinds = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

// kindsOf resolves profile type names, dropping repeats.
func kindsOf(names []string) ([]pyroscope.ProfileType, error) {
	var kinds []pyroscope.ProfileType
	for _, name := range names {
		kind := pyroscope.ProfileType(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(profileKinds, kind) {
			return nil, fmt.Errorf("unknown profile type %q", name)
		}
		if !slices.Contains(kinds, kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// Profiles is the running Pyroscope profiler. A nil *Profiles, or one
// built from a disabled config, collects nothing.
type Profiles struct {
	profiler *pyroscope.Profiler
	stop     sync.Once
	err      error
}

// StartProfiles starts continuous profiling when cfg.Enabled is set.
func StartProfiles(cfg ProfileConfig, log *zap.Logger) (*Profiles, error) {
	if !cfg.Enabled {
		return &Profiles{}, nil
	}
	switch {
	case cfg.Address == "":
		return nil, fmt.Errorf("profiling enabled without a server address")
	case cfg.Application == "":
		return nil, fmt.Errorf("profiling enabled without an application name")
	}
	kinds, err := kindsOf(cfg.Kinds)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	var tags map[string]string
	if host, err := os.Hostname(); err == nil {
		tags = map[string]string{"hostname": host}
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.Application,
		ServerAddress:     cfg.Address,
		BasicAuthUser:     cfg.User,
		BasicAuthPassword: cfg.Password,
		Logger:            log.Named("pyroscope").Sugar(),
		Tags:              tags,
		ProfileTypes:      kinds,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	log.Info("Profiling started",
		zap.String("server", cfg.Address),
		zap.Strings("kinds", cfg.Kinds))
	return &Profiles{profiler: profiler}, nil
}

// Enabled reports whether profiles are being collected.
func (p *Profiles) Enabled() bool { return p != nil && p.profiler != nil }

// Shutdown flushes pending profiles. Later calls return the first result.
func (p *Profiles) Shutdown(context.Context) error {
	if !p.Enabled() {
		return nil
	}
	p.stop.Do(func() {
		if err := p.profiler.Stop(); err != nil {
			p.err = fmt.Errorf("stop pyroscope: %w", err)
		}
	})
	return p.err
}

// Label keys attached to request profiles.
const (
	LabelRoute    = "route"
	LabelMethod   = "method"
	LabelResource = "resource"
)

// labelLimit caps label values so a long route cannot blow up cardinality.
const labelLimit = 128

// entityLabels name a single row; profiles keyed by them are useless.
var entityLabels = []string{"seller_id", "invoice_id", "request_id", "trace_id"}

// Profile runs fn with the key/value pairs in kv attached as pprof labels.
// Pairs with an empty value or an entity key are skipped.
func Profile(ctx context.Context, fn func(context.Context), kv ...string) {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, value := kv[i], kv[i+1]
		if key == "" || value == "" || slices.Contains(entityLabels, key) {
			continue
		}
		if len(value) > labelLimit {
			value = value[:labelLimit]
		}
		pairs = append(pairs, key, value)
	}
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}
