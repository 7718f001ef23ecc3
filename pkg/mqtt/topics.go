package mqtt

import "fmt"

// Topic layout shared with the other jeeves agents
const (
	// TopicTimeConfig switches agents into scaled virtual time for test runs
	TopicTimeConfig = "automation/test/time_config"

	// TopicRawSensors carries raw sensor readings as automation/raw/{kind}/{location}
	TopicRawSensors = "automation/raw/+/+"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ComfortContextTopic is where the latest analysis of a room is published
// Pattern: automation/context/comfort/{room}
func ComfortContextTopic(roomID string) string {
	return fmt.Sprintf("automation/context/comfort/%s", roomID)
}

// ComfortNotifyTopic is where notifications for a room are published
// Pattern: automation/notify/comfort/{room}
func ComfortNotifyTopic(roomID string) string {
	return fmt.Sprintf("automation/notify/comfort/%s", roomID)
}

// StatusTopic carries the retained online/offline presence of a service
// Pattern: automation/status/{service}
func StatusTopic(service string) string {
	return fmt.Sprintf("automation/status/%s", service)
}
