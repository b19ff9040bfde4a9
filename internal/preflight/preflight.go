package preflight

import (
	"context"

	"courier/internal/config"
	"courier/internal/push"
	"courier/internal/transport"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options tunes RunAll.
type Options struct {
	// Dialer opens gateway connections; nil uses the HTTP/2 dialer.
	Dialer transport.Dialer
	// Offline skips gateway dials.
	Offline bool
}

// RunAll executes every applicable check for cfg. Credentials are checked for
// every [[apns]] entry; gateways only when their credentials pass.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = transport.NewHTTP2Dialer()
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.DeliveryLog.Enabled {
		results = append(results, CheckDeliveryLog(cfg.DeliveryLog.Path))
	}

	for _, entry := range cfg.APNs {
		pcfg, err := push.FromConfig(entry)
		if err != nil {
			results = append(results, Result{Name: entry.Name + " credentials", Detail: err.Error()})
			continue
		}
		creds := CheckCredentials(pcfg)
		results = append(results, creds)
		if !creds.Passed || opts.Offline {
			continue
		}
		results = append(results, CheckGateway(ctx, pcfg, dialer))
	}
	return results
}

// Failed counts results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
