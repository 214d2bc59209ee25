package redis

import "fmt"

const ns = "tourgo:v1"

func KeyPackage(packageID int64) string {
	return fmt.Sprintf("%s:package:%d", ns, packageID)
}

func KeyDeparture(departureID int64) string {
	return fmt.Sprintf("%s:departure:%d", ns, departureID)
}

func KeyDepartureAvailability(departureID int64) string {
	return fmt.Sprintf("%s:departure:%d:availability", ns, departureID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelDeparturesChanged() string {
	return ns + ":departures:changed"
}
