package instance

import "github.com/angelmondragon/crm-backend/pkg/env"

const fallbackID = "local"

// GetID returns the process instance identifier used in logs and lock owners.
func GetID() string {
	if id, ok := env.First("CRM_INSTANCE_ID", "DYNO", "HOSTNAME"); ok {
		return id
	}
	return fallbackID
}
