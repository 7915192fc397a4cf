package ingestor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	config "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Config"
	"gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.IngestorService/client"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// Reading is a single measurement received over MQTT, tagged with the
// quantity parsed from its topic.
type Reading struct {
	Quantity    emtmodels.Quantity
	Measurement emtmodels.Measurement
	Topic       string
	ReceivedAt  time.Time
}

// Ingestor subscribes to sensor topics and forwards measurement batches
// to the API service.
type Ingestor struct {
	cfg        *config.IngestorConfig
	apiClient  *client.APIClient
	mqttClient mqtt.Client
	msgCh      chan Reading
	wg         sync.WaitGroup
	logger     *logger.Logger
}

// New creates a new ingestor
func New(cfg *config.IngestorConfig, apiClient *client.APIClient, log *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:       cfg,
		apiClient: apiClient,
		msgCh:     make(chan Reading, 4096),
		logger:    log.WithComponent("ingestor"),
	}
}

// Start connects to the broker and launches the batch writer
func (i *Ingestor) Start(ctx context.Context) error {
	clientID := fmt.Sprintf("%s-%s", i.cfg.MQTT.ClientID, uuid.NewString()[:8])

	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.GetMQTTBrokerURL()).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.MQTT.KeepAlive).
		SetPingTimeout(i.cfg.MQTT.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.MQTT.BrokerUser != "" {
		opts.SetUsername(i.cfg.MQTT.BrokerUser)
		opts.SetPassword(i.cfg.MQTT.BrokerPass)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.ErrorWithError(err, "MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.cfg.MQTT.Topic
		i.logger.WithField("topic", topic).Info("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.WithField("topic", topic).ErrorWithError(token.Error(), "failed to subscribe to MQTT topic")
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.batchWriter(ctx)
	}()

	return nil
}

// Stop disconnects from the broker and drains the pending queue
func (i *Ingestor) Stop() {
	if i.mqttClient != nil && i.mqttClient.IsConnected() {
		i.mqttClient.Disconnect(500)
	}
	close(i.msgCh)
	i.wg.Wait()
}

// IsConnected reports whether the MQTT connection is up
func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

// parseTopic extracts the quantity from a topic of the form
// sensors/<source>/<quantity>.
func parseTopic(topic string) (emtmodels.Quantity, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid topic format: %s, expected: sensors/<source>/<quantity>", topic)
	}
	return emtmodels.ParseQuantity(parts[len(parts)-1])
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	quantity, err := parseTopic(m.Topic())
	if err != nil {
		i.logger.WithField("topic", m.Topic()).WithError(err).Warn("dropping message")
		return
	}

	var measurement emtmodels.Measurement
	if err := json.Unmarshal(m.Payload(), &measurement); err != nil {
		i.logger.WithField("topic", m.Topic()).WithError(err).Warn("dropping malformed payload")
		return
	}

	now := time.Now().UTC()
	if measurement.Time.IsZero() {
		measurement.Time = now
	}

	i.msgCh <- Reading{
		Quantity:    quantity,
		Measurement: measurement,
		Topic:       m.Topic(),
		ReceivedAt:  now,
	}
}

// batchWriter accumulates readings and flushes them to the API service by
// size or interval. Batches that fail to send are kept and retried on the
// next flush so readings survive a temporarily unreachable service.
func (i *Ingestor) batchWriter(ctx context.Context) {
	var (
		electric     client.ElectricBatch
		temperatures []emtmodels.Measurement
		pending      int
	)

	timer := time.NewTimer(i.cfg.FlushInterval)
	defer timer.Stop()

	flush := func() {
		if pending == 0 {
			return
		}
		i.logger.WithField("batch_size", pending).Info("flushing batch to API service")

		if !electric.IsEmpty() {
			if err := i.apiClient.PushElectric(ctx, electric); err != nil {
				i.logger.ErrorWithError(err, "failed to push electric batch, will retry")
			} else {
				pending -= len(electric.Currents) + len(electric.GridFrequencies) + len(electric.Voltages)
				electric = client.ElectricBatch{}
			}
		}

		if len(temperatures) > 0 {
			if err := i.apiClient.PushTemperatures(ctx, temperatures); err != nil {
				i.logger.ErrorWithError(err, "failed to push temperature batch, will retry")
			} else {
				pending -= len(temperatures)
				temperatures = nil
			}
		}
	}

	add := func(rd Reading) {
		switch rd.Quantity {
		case emtmodels.QuantityCurrent:
			electric.Currents = append(electric.Currents, rd.Measurement)
		case emtmodels.QuantityVoltage:
			electric.Voltages = append(electric.Voltages, rd.Measurement)
		case emtmodels.QuantityGridFrequency:
			electric.GridFrequencies = append(electric.GridFrequencies, rd.Measurement)
		case emtmodels.QuantityTemperature:
			temperatures = append(temperatures, rd.Measurement)
		}
		pending++
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case rd, ok := <-i.msgCh:
			if !ok {
				flush()
				return
			}
			add(rd)
			if pending >= i.cfg.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(i.cfg.FlushInterval)
			}
		case <-timer.C:
			flush()
			timer.Reset(i.cfg.FlushInterval)
		}
	}
}
