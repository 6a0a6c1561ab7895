// Package rabbit publishes events to a RabbitMQ exchange.
//
// The client opens one confirm-mode channel, declares a durable exchange and
// waits for the broker confirm on every publish. Run reconnects after the
// broker closes the connection; FXModule runs it for the app's lifetime.
//
//	client, err := rabbit.NewClient(rabbit.Config{
//		Connection: rabbit.Connection{Host: "localhost", User: "guest", Password: "guest"},
//		Channel:    rabbit.Channel{ExchangeName: "schemawatch.events", RoutingKey: "schema.drift"},
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.Publish(ctx, payload, map[string]interface{}{"subject": "auth-schema"})
package rabbit
