// Package mq provides an idiomatic MQTT 3.1.1 client library for Go.
//
// It maintains a single durable session to a broker: encoding and decoding
// the wire protocol, tracking in-flight packet identifiers until
// acknowledged, dispatching inbound PUBLISH messages through a
// wildcard-aware topic filter tree, and preserving session liveness via
// keep-alive pings and automatic reconnection with exponential backoff.
//
// # Features
//
//   - QoS 0, 1, and 2 publish and subscribe
//   - '+' and '#' wildcard topic filters
//   - Automatic reconnection with exponential backoff and session resumption
//   - TLS and WebSocket transports
//   - Prometheus metrics and structured (slog) logging
//   - YAML-file or functional-options configuration
//
// # Basic usage
//
//	client, err := mq.Dial("tcp://broker.example.com:1883",
//		mq.WithClientID("my-client"),
//		mq.WithCleanSession(true),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
//	client.Subscribe("sensors/+/temp", mq.AtLeastOnce, func(c *mq.Client, msg mq.Message) {
//		fmt.Printf("%s: %s\n", msg.Topic, msg.Payload)
//	})
//
//	token := client.Publish("sensors/kitchen/temp", []byte("21.5"), mq.WithQoS(mq.AtLeastOnce))
//	if err := token.Wait(context.Background()); err != nil {
//		log.Printf("publish failed: %v", err)
//	}
package mq
