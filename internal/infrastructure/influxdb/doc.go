// Package influxdb provides the influxdb-client-go transport for Gray Logic Ingest.
//
// It wraps the official influxdb-client-go v2 library and implements
// batch.Transport on top of its blocking write API.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.Transport.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	w := batch.New(client, batch.WithDatabase("graylogic"), batch.WithRetentionPolicy("autogen"))
//
// # InfluxDB 1.x servers
//
// For InfluxDB 1.8+ set token to "username:password" (or leave it empty when
// authentication is off); org is ignored.
package influxdb
