package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/gridheadroom/internal/checker"
	"github.com/jgoulah/gridheadroom/internal/config"
	"github.com/jgoulah/gridheadroom/internal/demand"
	"github.com/jgoulah/gridheadroom/internal/report"
)

const connectTimeout = 10 * time.Second

// Publisher pushes check results to MQTT and/or Home Assistant
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
}

// New creates a new publisher for whichever sinks are enabled
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig) (*Publisher, error) {
	if !mqttCfg.Enabled && !haCfg.Enabled {
		return nil, fmt.Errorf("neither MQTT nor Home Assistant publishing is enabled in config")
	}

	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}

	var client mqtt.Client
	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID("gridheadroom")
		opts.SetAutoReconnect(true)
		opts.SetConnectTimeout(connectTimeout)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		client = mqtt.NewClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			client.Disconnect(0)
			return nil, fmt.Errorf("connecting to MQTT broker %s: timed out after %s", mqttCfg.Broker, connectTimeout)
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connecting to MQTT broker %s: %w", mqttCfg.Broker, err)
		}
	}

	return &Publisher{
		client:      client,
		topicPrefix: mqttCfg.GetTopicPrefix(),
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Topic returns the MQTT topic for a zone report
func Topic(prefix, zone string) string {
	if zone == "" {
		zone = "no_coverage"
	}
	return fmt.Sprintf("%s/%s/report", prefix, slug(zone))
}

func slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Publish sends a check result to every enabled sink
func (p *Publisher) Publish(res *checker.Result) error {
	if p.client != nil {
		if err := p.publishMQTT(res); err != nil {
			return err
		}
	}
	if p.haConfig.Enabled {
		if err := p.pushState(res); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishMQTT(res *checker.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	topic := Topic(p.topicPrefix, res.Report.Zone)
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// HAState is the body of a Home Assistant state update
type HAState struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// StateFor builds the Home Assistant state for a check result. The state is
// the headroom value; everything else goes into attributes.
func StateFor(res *checker.Result) HAState {
	r := res.Report
	state := HAState{
		State: report.NotAvailable,
		Attributes: map[string]any{
			"friendly_name": "Substation headroom",
			"status":        string(r.Status),
			"latitude":      res.Location.Lat,
			"longitude":     res.Location.Lon,
		},
	}
	if res.Address != "" {
		state.Attributes["address"] = res.Address
	}
	if !r.Covered() {
		return state
	}

	state.State = r.Headroom
	state.Attributes["zone"] = r.Zone
	state.Attributes["grid_site"] = r.GridSite
	state.Attributes["grid_supply_point"] = r.GridSupplyPoint
	state.Attributes["match_kind"] = r.MatchKind
	state.Attributes["demand_status"] = string(r.DemandStatus)
	if peak, ok := demand.Peak(r.Demand); ok {
		state.Attributes["peak_time"] = peak.TimeOfDay.String()
		state.Attributes["peak_current_amps"] = peak.AverageCurrentAmps
	}
	return state
}

func (p *Publisher) pushState(res *checker.Result) error {
	apiURL := fmt.Sprintf("%s/api/states/%s", strings.TrimRight(p.haConfig.URL, "/"), p.haConfig.EntityID)

	body, err := json.Marshal(StateFor(res))
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	// 200 updates an existing entity, 201 creates it
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
