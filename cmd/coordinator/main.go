// Command authzd-coordinator runs the Operation Coordinator and Query
// Router behind one HTTP+JSON facade: the entry point every external
// caller talks to, which in turn fans requests out across the shard
// group described by a YAML shard configuration file.
//
// Architecture:
//
//	┌──────────────────────────────────────────────┐
//	│                 Coordinator                    │
//	├──────────────────────────────────────────────┤
//	│  HTTP API:                                    │
//	│    /v1/{class}/{operation} - user-rooted ops  │
//	│    /v1/group/{operation}   - group-rooted ops │
//	│    /admin/refresh-config   - reload shard set │
//	│    /metrics                - Prometheus       │
//	│    /health                                    │
//	├──────────────────────────────────────────────┤
//	│  Components:                                  │
//	│    coordinator.Coordinator - closure + fanout │
//	│    router.Router           - group-only fanout│
//	│    shardmgr.Manager        - client lifecycle │
//	│    shardconfig.Set         - routing table    │
//	└──────────────────────────────────────────────┘
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dreamware/authzd/internal/coordinator"
	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/metrics"
	"github.com/dreamware/authzd/internal/router"
	"github.com/dreamware/authzd/internal/shardclient"
	"github.com/dreamware/authzd/internal/shardconfig"
	"github.com/dreamware/authzd/internal/shardmgr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "authzd-coordinator",
		Short: "Runs the authzd Operation Coordinator and Query Router",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		listen       string
		configPath   string
		drainPoll    time.Duration
		shutdownWait time.Duration
		healthPoll   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coordinator HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), serveConfig{
				listen:       listen,
				configPath:   configPath,
				drainPoll:    drainPoll,
				shutdownWait: shutdownWait,
				healthPoll:   healthPoll,
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "address the coordinator HTTP server listens on")
	cmd.Flags().StringVar(&configPath, "shard-config", "", "path to the YAML shard configuration file (required)")
	cmd.Flags().DurationVar(&drainPoll, "drain-poll-interval", 500*time.Millisecond, "how often a draining shard client is checked for a zero in-flight count")
	cmd.Flags().DurationVar(&shutdownWait, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests during shutdown")
	cmd.Flags().DurationVar(&healthPoll, "health-check-interval", 15*time.Second, "how often every shard-group endpoint is probed for liveness")
	_ = cmd.MarkFlagRequired("shard-config")

	return cmd
}

type serveConfig struct {
	listen       string
	configPath   string
	drainPoll    time.Duration
	shutdownWait time.Duration
	healthPoll   time.Duration
}

func serve(ctx context.Context, cfg serveConfig) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	set, err := shardconfig.LoadFile(cfg.configPath)
	if err != nil {
		return fmt.Errorf("loading shard configuration: %w", err)
	}

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	mgr := shardmgr.NewManager(set, func(endpoint, description string) shardclient.Client {
		return shardclient.NewHTTPClient(endpoint, description)
	})
	mgr.SetDrainPollInterval(cfg.drainPoll)
	coord := coordinator.New(mgr, rec, log)
	rtr := router.New(mgr, rec, log)

	monitor := coordinator.NewHealthMonitor(cfg.healthPoll)
	monitor.SetOnUnhealthy(func(endpoint string) {
		log.Warn().Str("endpoint", endpoint).Msg("shard-group endpoint marked unhealthy")
	})
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go monitor.Start(monitorCtx, func() []shardconfig.EndpointDescriptor { return allEndpoints(set) })

	mux := http.NewServeMux()
	registerHandlers(mux, coord, rtr, mgr, cfg.configPath, log)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/health/shards", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, monitor.AllEndpointHealth())
	})

	srv := &http.Server{
		Addr:              cfg.listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.listen).Msg("coordinator listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	stopMonitor()
	monitor.Stop()
	log.Info().Msg("coordinator stopped")
	return nil
}

// allClasses excludes domain.Entity: Entity is never independently
// sharded, so there is no endpoint set configured under that class for
// the health monitor to poll separately from User/Group.
var allClasses = []domain.ElementClass{domain.User, domain.Group, domain.GroupToGroupMapping}
var allKinds = []domain.OperationKind{domain.Event, domain.Query}

// allEndpoints collects the distinct set of shard-group endpoints across
// every (class, kind) pair a shard configuration routes, for the health
// monitor to poll independently of live traffic.
func allEndpoints(set *shardconfig.Set) []shardconfig.EndpointDescriptor {
	seen := make(map[string]bool)
	var out []shardconfig.EndpointDescriptor
	for _, class := range allClasses {
		for _, kind := range allKinds {
			for _, ep := range set.AllEndpoints(class, kind) {
				if seen[ep.Endpoint] {
					continue
				}
				seen[ep.Endpoint] = true
				out = append(out, ep)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if _, ok := err.(*shardclient.NotFoundError); ok {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func decode[T any](r *http.Request) (T, error) {
	var v T
	err := json.NewDecoder(r.Body).Decode(&v)
	return v, err
}

func registerHandlers(mux *http.ServeMux, coord *coordinator.Coordinator, rtr *router.Router, mgr *shardmgr.Manager, configPath string, log zerolog.Logger) {
	type userReq struct {
		User string `json:"user"`
	}
	mux.HandleFunc("/v1/user/add", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.AddUser(r.Context(), req.User); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/user/remove", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.RemoveUser(r.Context(), req.User); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/user/contains", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		ok, err := coord.ContainsUser(r.Context(), req.User)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": ok})
	})
	mux.HandleFunc("/v1/user/list", func(w http.ResponseWriter, r *http.Request) {
		values, err := coord.GetUsers(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": values})
	})

	type userIndirectReq struct {
		User            string `json:"user"`
		IncludeIndirect bool   `json:"includeIndirect"`
	}
	mux.HandleFunc("/v1/user/groups", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userIndirectReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		groups, err := coord.GetUserToGroupMappings(r.Context(), req.User, req.IncludeIndirect)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": groups})
	})

	type accessCheckReq struct {
		User        string `json:"user"`
		Component   string `json:"component"`
		AccessLevel string `json:"accessLevel"`
		EntityType  string `json:"entityType"`
		Entity      string `json:"entity"`
	}
	mux.HandleFunc("/v1/user/has-component-access", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[accessCheckReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		ok, err := coord.HasAccessToApplicationComponent(r.Context(), req.User, req.Component, req.AccessLevel)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": ok})
	})
	mux.HandleFunc("/v1/user/has-entity-access", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[accessCheckReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		ok, err := coord.HasAccessToEntity(r.Context(), req.User, req.EntityType, req.Entity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": ok})
	})
	mux.HandleFunc("/v1/user/accessible-components", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		values, err := coord.GetApplicationComponentsAccessibleByUser(r.Context(), req.User)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"values": values})
	})
	mux.HandleFunc("/v1/user/accessible-entities", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[accessCheckReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		values, err := coord.GetEntitiesAccessibleByUser(r.Context(), req.User, req.EntityType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"values": values})
	})

	type userGroupReq struct {
		User  string `json:"user"`
		Group string `json:"group"`
	}
	mux.HandleFunc("/v1/user/add-to-group", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userGroupReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.AddUserToGroupMapping(r.Context(), req.User, req.Group); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/user/remove-from-group", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userGroupReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.RemoveUserToGroupMapping(r.Context(), req.User, req.Group); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})

	type groupReq struct {
		Group string `json:"group"`
	}
	mux.HandleFunc("/v1/group/add", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.AddGroup(r.Context(), req.Group); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/group/remove", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.RemoveGroup(r.Context(), req.Group); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/group/contains", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		ok, err := rtr.ContainsGroup(r.Context(), req.Group)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": ok})
	})
	mux.HandleFunc("/v1/group/list", func(w http.ResponseWriter, r *http.Request) {
		values, err := rtr.GetGroups(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": values})
	})

	type groupsLookupReq struct {
		Groups []string `json:"groups"`
	}
	mux.HandleFunc("/v1/group/users", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsLookupReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		values, err := rtr.GetGroupToUserMappings(r.Context(), req.Groups)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": values})
	})

	type groupPairReq struct {
		FromGroup string `json:"fromGroup"`
		ToGroup   string `json:"toGroup"`
	}
	mux.HandleFunc("/v1/group/add-membership", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupPairReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.AddGroupToGroupMapping(r.Context(), req.FromGroup, req.ToGroup); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/group/remove-membership", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupPairReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.RemoveGroupToGroupMapping(r.Context(), req.FromGroup, req.ToGroup); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})

	type groupsAccessReq struct {
		Groups      []string `json:"groups"`
		Component   string   `json:"component"`
		AccessLevel string   `json:"accessLevel"`
		EntityType  string   `json:"entityType"`
		Entity      string   `json:"entity"`
	}
	mux.HandleFunc("/v1/group/has-component-access", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsAccessReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		ok, err := rtr.HasAccessToApplicationComponent(r.Context(), req.Groups, req.Component, req.AccessLevel)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": ok})
	})
	mux.HandleFunc("/v1/group/has-entity-access", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsAccessReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		ok, err := rtr.HasAccessToEntity(r.Context(), req.Groups, req.EntityType, req.Entity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": ok})
	})

	type entityTypeReq struct {
		EntityType string `json:"entityType"`
	}
	mux.HandleFunc("/v1/entity-type/add", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityTypeReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.AddEntityType(r.Context(), req.EntityType); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/entity-type/remove", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityTypeReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.RemoveEntityType(r.Context(), req.EntityType); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})

	type entityReq struct {
		EntityType string `json:"entityType"`
		Entity     string `json:"entity"`
	}
	mux.HandleFunc("/v1/entity/add", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.AddEntity(r.Context(), req.EntityType, req.Entity); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/entity/remove", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := coord.RemoveEntity(r.Context(), req.EntityType, req.Entity); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/entity/contains", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityReq](r)
		if err != nil {
			writeError(w, err)
			return
		}
		ok, err := coord.ContainsEntity(r.Context(), req.EntityType, req.Entity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": ok})
	})

	mux.HandleFunc("/admin/refresh-config", func(w http.ResponseWriter, r *http.Request) {
		newSet, err := shardconfig.LoadFile(configPath)
		if err != nil {
			writeError(w, err)
			return
		}
		// The drain watchers outlive this request, so they get a context
		// that is not canceled when the handler returns.
		mgr.RefreshConfiguration(context.Background(), newSet)
		log.Info().Str("path", configPath).Msg("shard configuration refreshed")
		writeJSON(w, struct{}{})
	})
}
