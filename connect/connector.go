package connect

import (
	// Go Internal Packages
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	// Local Packages
	config "station-stream/config"

	// External Packages
	"go.uber.org/zap"
)

// Connector is the document Kafka Connect expects on POST /connectors.
type Connector struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config"`
}

// ProvisioningError is returned when Kafka Connect refuses to create a
// connector. The attempt is not retried.
type ProvisioningError struct {
	Connector  string
	StatusCode int
	Body       string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("connect: creating connector %q failed with status %d: %s", e.Connector, e.StatusCode, e.Body)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// EnsureConnector creates conn unless Kafka Connect already knows it.
// It returns true when a connector was created.
func (c *Client) EnsureConnector(ctx context.Context, conn Connector) (bool, error) {
	if conn.Name == "" {
		return false, fmt.Errorf("connect: connector name cannot be empty")
	}
	c.Logger.Info("creating or updating kafka connect connector", zap.String("connector", conn.Name))

	exists, err := c.connectorExists(ctx, conn.Name)
	if err != nil {
		return false, err
	}
	if exists {
		c.Logger.Info("connector already created, skipping recreation", zap.String("connector", conn.Name))
		return false, nil
	}

	if err := c.createConnector(ctx, conn); err != nil {
		return false, err
	}
	c.Logger.Info("connector created successfully", zap.String("connector", conn.Name))
	return true, nil
}

func (c *Client) connectorExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/connectors/"+url.PathEscape(name), nil)
	if err != nil {
		return false, fmt.Errorf("connect: checking connector %q: %w", name, err)
	}
	defer drain(resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

func (c *Client) createConnector(ctx context.Context, conn Connector) error {
	payload, err := json.Marshal(conn)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/connectors", payload)
	if err != nil {
		return fmt.Errorf("connect: creating connector %q: %w", conn.Name, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ProvisioningError{Connector: conn.Name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTP.Do(req)
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// StationsConnector builds the JDBC source connector that streams the
// stations table into Kafka as schemaless JSON.
func StationsConnector(conf config.Connect) Connector {
	return Connector{
		Name: conf.ConnectorName,
		Config: map[string]string{
			"connector.class":                "io.confluent.connect.jdbc.JdbcSourceConnector",
			"key.converter":                  "org.apache.kafka.connect.json.JsonConverter",
			"key.converter.schemas.enable":   "false",
			"value.converter":                "org.apache.kafka.connect.json.JsonConverter",
			"value.converter.schemas.enable": "false",
			"batch.max.rows":                 strconv.Itoa(conf.BatchMaxRows),
			"connection.url":                 conf.JDBCURL,
			"connection.user":                conf.JDBCUser,
			"connection.password":            conf.JDBCPassword,
			"table.whitelist":                conf.Table,
			"mode":                           "incrementing",
			"incrementing.column.name":       conf.IncrementingColumn,
			"topic.prefix":                   conf.TopicPrefix,
			"poll.interval.ms":               strconv.FormatInt(conf.PollInterval.Milliseconds(), 10),
		},
	}
}
