package consent

import "strings"

// UnknownName is shown when a target's display name cannot be resolved.
const UnknownName = "Unknown"

// ViewRequest asks to see Target's preferences on behalf of Requester.
type ViewRequest struct {
	Requester EntityID
	Target    EntityID
}

// ViewResponse is delivered to the original requester only.
type ViewResponse struct {
	Target      EntityID
	TargetName  string
	Preferences PreferenceMap
}

// Directory resolves entity metadata and session validity.
type Directory interface {
	Exists(id EntityID) bool
	DisplayName(id EntityID) string
	IsControllableActor(id EntityID) bool
}

// HandleViewRequest validates req and composes the response. It returns false
// for requests that must be dropped without any reply: unknown entities or a
// requester that is not a controllable actor.
func HandleViewRequest(req ViewRequest, dir Directory, svc *Service) (ViewResponse, bool) {
	if req.Requester == "" || req.Target == "" {
		return ViewResponse{}, false
	}
	if !dir.Exists(req.Requester) || !dir.Exists(req.Target) {
		return ViewResponse{}, false
	}
	if !dir.IsControllableActor(req.Requester) {
		return ViewResponse{}, false
	}
	name := strings.TrimSpace(dir.DisplayName(req.Target))
	if name == "" {
		name = UnknownName
	}
	return ViewResponse{
		Target:      req.Target,
		TargetName:  name,
		Preferences: svc.stores.Store(req.Target).Snapshot(),
	}, true
}
