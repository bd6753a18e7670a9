package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"peaceclaims.dev/internal/engine"
	"peaceclaims.dev/internal/service"
	"peaceclaims.dev/internal/transport/observer"
	"peaceclaims.dev/internal/transport/ws"
)

// metricsHandler writes a minimal Prometheus exposition.
func metricsHandler(loop *engine.Loop, svc *service.Service, hub *ws.Hub, obs *observer.Server) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		var st service.State
		if err := loop.Do(ctx, func() { st = svc.State() }); err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		gauge(rw, "peaceclaims_claims", "Claimed chunks.", st.Claims)
		gauge(rw, "peaceclaims_invitations", "Stored invitations.", st.Invitations)
		gauge(rw, "peaceclaims_pvp_areas", "Defined PVP areas.", st.PvpAreas)
		gauge(rw, "peaceclaims_online_players", "Players currently online.", st.Online)
		gauge(rw, "peaceclaims_pending_mode_changes", "Mode changes awaiting confirmation.", st.PendingModes)
		gauge(rw, "peaceclaims_reputation_cached", "Reputation records in the cache.", st.Reputations)

		fmt.Fprintf(rw, "# HELP peaceclaims_players_by_mode Known players per mode.\n")
		fmt.Fprintf(rw, "# TYPE peaceclaims_players_by_mode gauge\n")
		modes := make([]string, 0, len(st.Modes))
		for m := range st.Modes {
			modes = append(modes, m)
		}
		sort.Strings(modes)
		for _, m := range modes {
			fmt.Fprintf(rw, "peaceclaims_players_by_mode{mode=%q} %d\n", m, st.Modes[m])
		}

		counter(rw, "peaceclaims_persist_submitted_total", "Write ops submitted.", st.Persistence.Submitted)
		counter(rw, "peaceclaims_persist_failed_total", "Write ops that failed.", st.Persistence.Failed)
		counter(rw, "peaceclaims_persist_dropped_total", "Write ops refused after shutdown.", st.Persistence.Dropped)
		gauge(rw, "peaceclaims_persist_queue_depth", "Write ops waiting.", st.Persistence.Queued)

		gauge(rw, "peaceclaims_bridge_sessions", "Connected game hosts.", hub.Sessions())
		counter(rw, "peaceclaims_bridge_notify_dropped_total", "Notifications lost to full host queues.", hub.Dropped())
		gauge(rw, "peaceclaims_observer_subscribers", "Audit feed subscribers.", obs.Subscribers())
		counter(rw, "peaceclaims_observer_dropped_total", "Audit feed subscribers dropped for lag.", obs.Dropped())
	}
}

func gauge(rw http.ResponseWriter, name, help string, v int) {
	fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
}

func counter(rw http.ResponseWriter, name, help string, v uint64) {
	fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
}
