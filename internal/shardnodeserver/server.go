// Package shardnodeserver builds the HTTP+JSON handler one shard-group
// node exposes over internal/shardclient.HTTPClient's wire contract
// (POST /v1/{class}/{operation}), backed by internal/accessmanager.
//
// Factored out of cmd/shardnode so that test/integration can stand up
// the same wire surface in-process, without exec'ing a built binary.
package shardnodeserver

import (
	"encoding/json"
	"net/http"

	"github.com/dreamware/authzd/internal/accessmanager"
	"github.com/dreamware/authzd/internal/shardclient"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeEntityNotFound(w http.ResponseWriter) {
	http.Error(w, "not found", http.StatusNotFound)
}

func badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func decode[T any](r *http.Request) (T, error) {
	var v T
	err := json.NewDecoder(r.Body).Decode(&v)
	return v, err
}

// NewHandler builds the full shard-group node route table over mgr.
func NewHandler(mgr *accessmanager.Manager) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, struct{}{}) })
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, mgr.Stats()) })

	type userReq struct {
		User string `json:"user"`
	}
	mux.HandleFunc("/v1/User/AddUser", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddUser(req.User)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/User/RemoveUser", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveUser(req.User)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/User/ContainsUser", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": mgr.ContainsUser(req.User)})
	})

	type userIndirectReq struct {
		User            string `json:"user"`
		IncludeIndirect bool   `json:"includeIndirect"`
	}
	mux.HandleFunc("/v1/User/GetUserToGroupMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userIndirectReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetUserToGroupMappings(req.User)})
	})

	mux.HandleFunc("/v1/User/GetUsers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string][]string{"values": mgr.GetUsers()})
	})

	type groupReq struct {
		Group string `json:"group"`
	}
	mux.HandleFunc("/v1/Group/AddGroup", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddGroup(req.Group)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Group/RemoveGroup", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveGroup(req.Group)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Group/ContainsGroup", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": mgr.ContainsGroup(req.Group)})
	})

	mux.HandleFunc("/v1/Group/GetGroups", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string][]string{"values": mgr.GetGroups()})
	})

	type groupsLookupReq struct {
		Groups []string `json:"groups"`
	}
	mux.HandleFunc("/v1/Group/GetGroupToUserMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsLookupReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetGroupToUserMappings(req.Groups)})
	})

	type groupsReq struct {
		Groups          []string `json:"groups"`
		IncludeIndirect bool     `json:"includeIndirect"`
	}
	mux.HandleFunc("/v1/GroupToGroupMapping/GetGroupsToGroupMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetGroupToGroupMappings(req.Groups)})
	})
	mux.HandleFunc("/v1/GroupToGroupMapping/GetGroupToGroupReverseMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetGroupToGroupReverseMappings(req.Groups)})
	})

	type userGroupReq struct {
		User  string `json:"user"`
		Group string `json:"group"`
	}
	mux.HandleFunc("/v1/User/AddUserToGroupMapping", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userGroupReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddUserToGroupMapping(req.User, req.Group)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/User/RemoveUserToGroupMapping", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userGroupReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveUserToGroupMapping(req.User, req.Group)
		writeJSON(w, struct{}{})
	})

	type groupGroupReq struct {
		FromGroup string `json:"fromGroup"`
		ToGroup   string `json:"toGroup"`
	}
	mux.HandleFunc("/v1/GroupToGroupMapping/AddGroupToGroupMapping", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupGroupReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddGroupToGroupMapping(req.FromGroup, req.ToGroup)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/GroupToGroupMapping/RemoveGroupToGroupMapping", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupGroupReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveGroupToGroupMapping(req.FromGroup, req.ToGroup)
		writeJSON(w, struct{}{})
	})

	type accessReq struct {
		User        string `json:"user"`
		Group       string `json:"group"`
		Component   string `json:"component"`
		AccessLevel string `json:"accessLevel"`
	}
	mux.HandleFunc("/v1/User/AddUserToApplicationComponentAndAccessLevel", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[accessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddUserToApplicationComponentAndAccessLevel(req.User, req.Component, req.AccessLevel)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/User/RemoveUserToApplicationComponentAndAccessLevel", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[accessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveUserToApplicationComponentAndAccessLevel(req.User, req.Component, req.AccessLevel)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Group/AddGroupToApplicationComponentAndAccessLevel", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[accessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddGroupToApplicationComponentAndAccessLevel(req.Group, req.Component, req.AccessLevel)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Group/RemoveGroupToApplicationComponentAndAccessLevel", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[accessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveGroupToApplicationComponentAndAccessLevel(req.Group, req.Component, req.AccessLevel)
		writeJSON(w, struct{}{})
	})

	type componentAccessQueryReq struct {
		Component       string `json:"component"`
		AccessLevel     string `json:"accessLevel"`
		IncludeIndirect bool   `json:"includeIndirect"`
	}
	mux.HandleFunc("/v1/User/GetApplicationComponentAndAccessLevelToUserMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[componentAccessQueryReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetApplicationComponentAndAccessLevelToUserMappings(req.Component, req.AccessLevel)})
	})
	mux.HandleFunc("/v1/Group/GetApplicationComponentAndAccessLevelToGroupMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[componentAccessQueryReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetApplicationComponentAndAccessLevelToGroupMappings(req.Component, req.AccessLevel)})
	})

	type entityTypeReq struct {
		EntityType string `json:"entityType"`
	}
	mux.HandleFunc("/v1/Entity/AddEntityType", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityTypeReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddEntityType(req.EntityType)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Entity/RemoveEntityType", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityTypeReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveEntityType(req.EntityType)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Entity/ContainsEntityType", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityTypeReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": mgr.ContainsEntityType(req.EntityType)})
	})
	mux.HandleFunc("/v1/Entity/GetEntities", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityTypeReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetEntities(req.EntityType)})
	})

	type entityReq struct {
		EntityType string `json:"entityType"`
		Entity     string `json:"entity"`
	}
	mux.HandleFunc("/v1/Entity/AddEntity", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddEntity(req.EntityType, req.Entity)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Entity/RemoveEntity", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveEntity(req.EntityType, req.Entity)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Entity/ContainsEntity", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		ok, err := mgr.ContainsEntity(req.EntityType, req.Entity)
		if err == accessmanager.ErrNotFound {
			writeEntityNotFound(w)
			return
		}
		writeJSON(w, map[string]bool{"value": ok})
	})

	type userEntityReq struct {
		User       string `json:"user"`
		Group      string `json:"group"`
		EntityType string `json:"entityType"`
		Entity     string `json:"entity"`
	}
	mux.HandleFunc("/v1/User/AddUserToEntityMapping", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userEntityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddUserToEntityMapping(req.User, req.EntityType, req.Entity)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/User/RemoveUserToEntityMapping", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userEntityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveUserToEntityMapping(req.User, req.EntityType, req.Entity)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Group/AddGroupToEntityMapping", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userEntityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.AddGroupToEntityMapping(req.Group, req.EntityType, req.Entity)
		writeJSON(w, struct{}{})
	})
	mux.HandleFunc("/v1/Group/RemoveGroupToEntityMapping", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userEntityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		mgr.RemoveGroupToEntityMapping(req.Group, req.EntityType, req.Entity)
		writeJSON(w, struct{}{})
	})

	mux.HandleFunc("/v1/User/GetUserToEntityMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userEntityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]shardclient.EntityRef{"values": mgr.GetUserToEntityMappings(req.User, req.EntityType)})
	})
	mux.HandleFunc("/v1/Group/GetGroupToEntityMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userEntityReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]shardclient.EntityRef{"values": mgr.GetGroupToEntityMappings(req.Group, req.EntityType)})
	})

	type entityMappingQueryReq struct {
		EntityType      string `json:"entityType"`
		Entity          string `json:"entity"`
		IncludeIndirect bool   `json:"includeIndirect"`
	}
	mux.HandleFunc("/v1/User/GetEntityToUserMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityMappingQueryReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetEntityToUserMappings(req.EntityType, req.Entity)})
	})
	mux.HandleFunc("/v1/Group/GetEntityToGroupMappings", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[entityMappingQueryReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]string{"values": mgr.GetEntityToGroupMappings(req.EntityType, req.Entity)})
	})

	type groupsAccessReq struct {
		Groups      []string `json:"groups"`
		Component   string   `json:"component"`
		AccessLevel string   `json:"accessLevel"`
		EntityType  string   `json:"entityType"`
		Entity      string   `json:"entity"`
	}
	mux.HandleFunc("/v1/Group/HasAccessToApplicationComponent", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsAccessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": mgr.HasAccessToApplicationComponent(req.Groups, req.Component, req.AccessLevel)})
	})
	mux.HandleFunc("/v1/Group/HasAccessToEntity", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsAccessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": mgr.HasAccessToEntity(req.Groups, req.EntityType, req.Entity)})
	})
	mux.HandleFunc("/v1/Group/GetApplicationComponentsAccessibleByGroups", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsAccessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]shardclient.ComponentAccess{"values": mgr.GetApplicationComponentsAccessibleByGroups(req.Groups)})
	})
	mux.HandleFunc("/v1/Group/GetEntitiesAccessibleByGroups", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[groupsAccessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]shardclient.EntityRef{"values": mgr.GetEntitiesAccessibleByGroups(req.Groups, req.EntityType)})
	})

	type userAccessReq struct {
		User        string `json:"user"`
		Component   string `json:"component"`
		AccessLevel string `json:"accessLevel"`
		EntityType  string `json:"entityType"`
		Entity      string `json:"entity"`
	}
	mux.HandleFunc("/v1/User/HasDirectAccessToApplicationComponent", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userAccessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": mgr.HasDirectAccessToApplicationComponent(req.User, req.Component, req.AccessLevel)})
	})
	mux.HandleFunc("/v1/User/HasDirectAccessToEntity", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userAccessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string]bool{"value": mgr.HasDirectAccessToEntity(req.User, req.EntityType, req.Entity)})
	})
	mux.HandleFunc("/v1/User/GetDirectApplicationComponentAccess", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userAccessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]shardclient.ComponentAccess{"values": mgr.GetDirectApplicationComponentAccess(req.User)})
	})
	mux.HandleFunc("/v1/User/GetDirectEntityAccess", func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[userAccessReq](r)
		if err != nil {
			badRequest(w, err)
			return
		}
		writeJSON(w, map[string][]shardclient.EntityRef{"values": mgr.GetDirectEntityAccess(req.User, req.EntityType)})
	})

	return mux
}
