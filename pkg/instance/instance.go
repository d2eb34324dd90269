package instance

import "os"

// ID names the running replica for log fields. DYNO and HOSTNAME are checked
// after ORDERDESK_INSTANCE_ID.
func ID() string {
	for _, key := range []string{"ORDERDESK_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
