package rbac

// ResourceCapabilities mirrors the four actions for one resource.
type ResourceCapabilities struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
	Admin  bool `json:"admin"`
}

// Capabilities is the read-only projection handed to UI clients so they can
// show or hide affordances. It is computed by the same evaluator the guard
// uses and is never consulted for enforcement.
type Capabilities struct {
	Role         Role                              `json:"role"`
	RoleLevel    int                               `json:"role_level"`
	IsOwner      bool                              `json:"is_owner"`
	IsAdmin      bool                              `json:"is_admin"`
	IsInstructor bool                              `json:"is_instructor"`
	IsStaff      bool                              `json:"is_staff"`
	IsViewer     bool                              `json:"is_viewer"`
	Resources    map[Resource]ResourceCapabilities `json:"resources"`
}

// CapabilitiesFor evaluates every known resource plus any resource named in
// the grant's overrides.
func CapabilitiesFor(g Grant) Capabilities {
	caps := Capabilities{
		Role:         g.Role,
		RoleLevel:    LevelOf(g.Role),
		IsOwner:      IsOwner(g),
		IsAdmin:      IsAdmin(g),
		IsInstructor: IsInstructor(g),
		IsStaff:      IsStaff(g),
		IsViewer:     IsViewer(g),
		Resources:    make(map[Resource]ResourceCapabilities),
	}
	for _, res := range Resources() {
		caps.Resources[res] = resourceCapabilities(g, res)
	}
	for res := range g.CustomPermissions {
		caps.Resources[res] = resourceCapabilities(g, res)
	}
	return caps
}

// CanRead reports the read capability for resource.
func (c Capabilities) CanRead(res Resource) bool { return c.Resources[res].Read }

// CanWrite reports the write capability for resource.
func (c Capabilities) CanWrite(res Resource) bool { return c.Resources[res].Write }

// CanDelete reports the delete capability for resource.
func (c Capabilities) CanDelete(res Resource) bool { return c.Resources[res].Delete }

// CanAdmin reports the admin capability for resource.
func (c Capabilities) CanAdmin(res Resource) bool { return c.Resources[res].Admin }

func resourceCapabilities(g Grant, res Resource) ResourceCapabilities {
	return ResourceCapabilities{
		Read:   HasPermission(g, res, ActionRead),
		Write:  HasPermission(g, res, ActionWrite),
		Delete: HasPermission(g, res, ActionDelete),
		Admin:  HasPermission(g, res, ActionAdmin),
	}
}
