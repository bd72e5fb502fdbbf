package controllers

import (
	"context"
	"net/http"

	"go.uber.org/multierr"

	"github.com/davidorduna/agromarket-backend/api/responses"
	"github.com/davidorduna/agromarket-backend/pkg/config"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
	"github.com/davidorduna/agromarket-backend/pkg/logger"
)

const envHeader = "X-AgroMarket-Env"

// Pinger is any dependency the readiness probe can reach out to.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every wired dependency and reports the first failure set.
// Nil pingers (disabled dependencies) are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, pingers ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		var errs []error
		for _, pinger := range pingers {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(r.Context()); err != nil {
				errs = append(errs, err)
			}
		}

		if combined := multierr.Combine(errs...); combined != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, combined, "readiness check failed"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
