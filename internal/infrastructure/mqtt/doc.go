// Package mqtt connects Gray Logic Ingest to an MQTT broker (Eclipse paho).
//
// The broker is used in two ways. Producers publish telemetry to
// graylogic/ingest/{database}[/{retention_policy}] and the ingest handler
// hands it to the batch writer through Client.Subscribe. With transport type
// "mqtt", Transport also sends the writer's batches back out on
// {topic_prefix}/{database}[/{retention_policy}] for a downstream consumer to
// write.
//
//	producers -> broker -> ingest -> batch writer -> transport
//
// Client keeps a retained status document on graylogic/system/ingest/status:
// "online" after each connect, "offline" on Close, and "offline" with reason
// unexpected_disconnect as the last will. Subscriptions survive reconnects.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllIngest(), client.QoS(), handler.Handle)
//	tr := mqtt.NewTransport(client, cfg.Transport.MQTT.TopicPrefix, client.QoS())
//
// Enable broker.tls outside local development.
package mqtt
