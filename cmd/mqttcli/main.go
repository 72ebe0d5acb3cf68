// Command mqttcli is a minimal interactive client for exercising an MQTT
// 3.1.1 broker from the shell: connect, publish, and subscribe.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	mq "github.com/gonzalop/mqtt311"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "mqttcli",
		Usage:   "MQTT 3.1.1 command-line client",
		Version: "0.1.0",
		Commands: []*cli.Command{
			publishCommand,
			subscribeCommand,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var serverFlag = &cli.StringFlag{
	Name:     "broker",
	Aliases:  []string{"b"},
	Usage:    "broker address, e.g. tcp://localhost:1883",
	Required: true,
}

var clientIDFlag = &cli.StringFlag{
	Name:  "client-id",
	Usage: "MQTT client identifier (random if omitted)",
}

var qosFlag = &cli.IntFlag{
	Name:  "qos",
	Usage: "QoS level (0, 1, or 2)",
	Value: 0,
}

var publishCommand = &cli.Command{
	Name:      "publish",
	Usage:     "publish a single message and exit",
	ArgsUsage: "<topic> <payload>",
	Flags:     []cli.Flag{serverFlag, clientIDFlag, qosFlag},
	Action:    publishAction,
}

func publishAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: mqttcli publish --broker <addr> <topic> <payload>")
	}
	topic, payload := cmd.Args().Get(0), cmd.Args().Get(1)

	client, err := dial(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	qos := mq.QoS(cmd.Int(qosFlag.Name))
	token := client.Publish(topic, []byte(payload), mq.WithQoS(qos))
	if err := token.Wait(ctx); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	fmt.Printf("published %d bytes to %q at QoS %d\n", len(payload), topic, qos)
	return nil
}

var subscribeCommand = &cli.Command{
	Name:      "subscribe",
	Usage:     "subscribe to a topic filter and print incoming messages",
	ArgsUsage: "<filter>",
	Flags:     []cli.Flag{serverFlag, clientIDFlag, qosFlag},
	Action:    subscribeAction,
}

func subscribeAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: mqttcli subscribe --broker <addr> <filter>")
	}
	filter := cmd.Args().Get(0)

	client, err := dial(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	qos := mq.QoS(cmd.Int(qosFlag.Name))
	token := client.Subscribe(filter, qos, func(c *mq.Client, msg mq.Message) {
		fmt.Printf("[%s] (qos %d, retain=%v) %s\n", msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	})
	if err := token.Wait(ctx); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	fmt.Printf("subscribed to %q, waiting for messages (ctrl-C to exit)\n", filter)

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-sigCtx.Done()
	return nil
}

func dial(ctx context.Context, cmd *cli.Command) (*mq.Client, error) {
	clientID := cmd.String(clientIDFlag.Name)
	if clientID == "" {
		clientID = "mqttcli-" + uuid.NewString()[:8]
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return mq.DialContext(dialCtx, cmd.String(serverFlag.Name),
		mq.WithClientID(clientID),
		mq.WithCleanSession(true),
		mq.WithOnConnectionLost(func(c *mq.Client, err error) {
			log.Printf("connection lost: %v", err)
		}),
	)
}
