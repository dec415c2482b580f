package cli

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/majorcontext/restpcv/internal/audit"
	"github.com/majorcontext/restpcv/internal/config"
	"github.com/majorcontext/restpcv/internal/log"
	"github.com/majorcontext/restpcv/internal/ui"
	"github.com/majorcontext/restpcv/internal/validator"
)

// openValidator loads the validator definition and, unless disabled, opens
// the audit store and attaches it as an observer. The returned cleanup
// function must be called when done.
func openValidator(ctx context.Context) (*validator.Validator, func(), error) {
	path, err := validatorConfigPath()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if !globalCfg.Audit.Enabled || noAudit {
		v, err := validator.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return v, func() {}, nil
	}

	store, err := audit.OpenStore(globalCfg.Audit.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit store: %w", err)
	}
	log.Debug("recording validation attempts", "path", globalCfg.Audit.Path)

	v, err := validator.New(ctx, cfg, validator.WithObserver(audit.Observer(store)))
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	recordSecrets(store, cfg.Secrets)
	return v, func() { store.Close() }, nil
}

// recordSecrets notes which backends supplied the configured secrets.
func recordSecrets(store *audit.Store, refs map[string]string) {
	for _, name := range slices.Sorted(maps.Keys(refs)) {
		backend, _, _ := strings.Cut(refs[name], "://")
		if _, err := store.Append(audit.EntrySecret, audit.SecretData{Name: name, Backend: backend}); err != nil {
			log.Warn("failed to record secret resolution", "name", name, "error", err)
		}
	}
}

// outcomeStatus maps a Validate result to a ui status label.
func outcomeStatus(res validator.Result, err error) string {
	switch {
	case err != nil:
		return ui.StatusError
	case res.Outcome == validator.Success:
		return ui.StatusSuccess
	default:
		return ui.StatusFailure
	}
}

// resultRecord is the JSON form of one validation result.
type resultRecord struct {
	Line       int               `json:"line,omitempty"`
	Username   string            `json:"username"`
	Status     string            `json:"status"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func newResultRecord(username string, res validator.Result, err error) resultRecord {
	r := resultRecord{
		Username:   username,
		Status:     outcomeStatus(res, err),
		Attributes: res.Attributes,
	}
	if err != nil {
		r.Kind = string(validator.KindOf(err))
		r.Error = err.Error()
	}
	return r
}

// redactedTarget shortens a URL template to scheme://host/path so query
// strings and userinfo are not echoed.
func redactedTarget(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<unparsable url>"
	}
	return u.Scheme + "://" + u.Host + u.Path
}
