// Package metrics defines and registers all custom Prometheus metrics for the
// auth service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto) and exposed through the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// ── Session flows ─────────────────────────────────────────────────────────────

// LoginsTotal counts password and external-identity logins.
// Labels:
//   - method: "password" or the identity provider (e.g. "github")
//   - result: "success", "unauthenticated" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by method and result.",
	},
	[]string{"method", "result"},
)

// RefreshesTotal counts refresh-token rotations.
// Label:
//   - result: "success", "invalid_type", "unauthenticated" or "error"
var RefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Total number of refresh attempts, by result.",
	},
	[]string{"result"},
)

// LogoutsTotal counts logout calls. Logout always succeeds for the caller,
// so only infrastructure failures are split out.
var LogoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logouts_total",
		Help:      "Total number of logout calls, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts account registrations.
// Label:
//   - result: "success", "duplicate", "invalid" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// ── Guards ────────────────────────────────────────────────────────────────────

// AuthenticationFailuresTotal counts rejected access tokens on protected routes.
var AuthenticationFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authentication_failures_total",
		Help:      "Total number of requests rejected by the access guard.",
	},
)

// AuthorizationDeniedTotal counts role guard denials.
// Label:
//   - reason: "no_principal", "invalid_role" or "insufficient_role"
var AuthorizationDeniedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denied_total",
		Help:      "Total number of role guard denials, by reason.",
	},
	[]string{"reason"},
)

// FlowDuration measures end-to-end handler latency of the session flows,
// dominated by hashing and the user store round trips.
// Label:
//   - flow: "register", "login", "refresh", "logout" or "oauth"
var FlowDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flow_duration_seconds",
		Help:      "Duration of auth flows from request bind to response.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"flow"},
)
