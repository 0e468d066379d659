package config

import (
	"os"
	"strings"
)

type Config struct {
	HTTPAddr          string
	MetricsAddr       string
	PostgresURL       string
	KafkaBrokers      []string
	OrderEventsTopic  string
	PaymentGatewayURL string
	EmailServiceURL   string
	OTLPEndpoint      string
	ServiceName       string
	ServiceVersion    string
}

func Load() Config {
	return Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		MetricsAddr:       getenv("METRICS_ADDR", ":9090"),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		KafkaBrokers:      splitCSV(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic:  getenv("ORDER_EVENTS_TOPIC", "order.events"),
		PaymentGatewayURL: os.Getenv("PAYMENT_GATEWAY_URL"),
		EmailServiceURL:   os.Getenv("EMAIL_SERVICE_URL"),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ServiceName:       getenv("SERVICE_NAME", "fulfillment"),
		ServiceVersion:    getenv("SERVICE_VERSION", "0.1.0"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
