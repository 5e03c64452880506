package model

import "makerdesk/pkg/permission"

// Actor is the resolved identity tuple for a request. It is supplied by the
// external identity service through trusted headers; the engine performs no
// authentication of its own.
type Actor struct {
	UserID         string            `json:"user_id"`
	MakerspaceID   string            `json:"makerspace_id"`
	Role           permission.Role   `json:"role"`
	Certifications map[string]string `json:"certifications"`
}

// HasCertification reports whether the actor holds the named skill credential.
func (a Actor) HasCertification(name string) bool {
	_, ok := a.Certifications[name]
	return ok
}

// MissingCertifications returns every required credential the actor lacks, in
// input order.
func (a Actor) MissingCertifications(required []string) []string {
	var missing []string
	for _, name := range required {
		if !a.HasCertification(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func (a Actor) Can(action permission.Action) bool {
	return permission.Can(a.Role, action)
}
