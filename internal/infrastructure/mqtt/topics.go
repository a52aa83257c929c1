package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// Topic prefixes for Gray Logic Ingest.
//
// Telemetry producers publish to graylogic/ingest/{database}[/{retention_policy}].
// Batches forwarded by the MQTT transport go to {topic_prefix}/{database}[/{retention_policy}].
const (
	// TopicPrefixIngest is the base for inbound telemetry topics.
	TopicPrefixIngest = "graylogic/ingest"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"

	// DefaultWritePrefix is the default base for forwarded write topics.
	DefaultWritePrefix = "graylogic/tsdb/write"
)

// Topics provides builders for Gray Logic Ingest MQTT topics.
//
//	topics := mqtt.Topics{}
//	t := topics.Ingest("graylogic", "autogen")
//	// Returns: "graylogic/ingest/graylogic/autogen"
type Topics struct{}

// Ingest returns the inbound telemetry topic for a destination.
// An empty retention policy selects the server default.
//
// Example: graylogic/ingest/graylogic/autogen
func (Topics) Ingest(database, retentionPolicy string) string {
	return joinDestination(TopicPrefixIngest, database, retentionPolicy)
}

// AllIngest returns a pattern matching every inbound telemetry topic.
//
// Pattern: graylogic/ingest/#
func (Topics) AllIngest() string {
	return TopicPrefixIngest + "/#"
}

// Write returns the topic a batch for dest is forwarded to.
// An empty prefix uses DefaultWritePrefix.
//
// Example: graylogic/tsdb/write/graylogic/autogen
func (Topics) Write(prefix string, dest point.Destination) string {
	if prefix == "" {
		prefix = DefaultWritePrefix
	}
	return joinDestination(strings.TrimSuffix(prefix, "/"), dest.Database, dest.RetentionPolicy)
}

// Status returns the ingest service status topic.
//
// Example: graylogic/system/ingest/status
func (Topics) Status() string {
	return fmt.Sprintf("%s/ingest/status", TopicPrefixSystem)
}

// ParseIngest extracts database and retention policy from an inbound
// telemetry topic.
//
// Returns:
//   - database, retentionPolicy: Topic segments (retentionPolicy may be empty)
//   - error: ErrInvalidTopic if the topic is not graylogic/ingest/{db}[/{rp}]
func (Topics) ParseIngest(topic string) (database, retentionPolicy string, err error) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixIngest+"/")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an ingest topic", ErrInvalidTopic, topic)
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return parts[0], "", nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: %q must be %s/{database}[/{retention_policy}]", ErrInvalidTopic, topic, TopicPrefixIngest)
	}
}

func joinDestination(prefix, database, retentionPolicy string) string {
	if retentionPolicy == "" {
		return fmt.Sprintf("%s/%s", prefix, database)
	}
	return fmt.Sprintf("%s/%s/%s", prefix, database, retentionPolicy)
}
