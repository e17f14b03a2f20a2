/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	log "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"

	"github.com/carverauto/ewspoller/pkg/models"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
)

const (
	maxAttributeValueLength   = 4096
	maxStructuredPreviewCount = 5
	defaultScope              = "ewspoller-logger"
	truncatedKeysAttribute    = "otel.truncated_keys"
	componentField            = "component"
	defaultBatchTimeout       = 5 * time.Second
	otelShutdownTimeout       = 10 * time.Second
)

// OTelConfig configures OTLP/gRPC export. The same endpoint settings are
// used for logs and traces.
type OTelConfig struct {
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	ServiceName  string            `json:"service_name" yaml:"service_name"`
	BatchTimeout models.Duration   `json:"batch_timeout" yaml:"batch_timeout"`
	Insecure     bool              `json:"insecure" yaml:"insecure"`
	TLS          *models.TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// transportCredentials resolves the channel security of an exporter. With
// neither insecure nor TLS files set, the exporter's system defaults apply.
func (c *OTelConfig) transportCredentials() (creds credentials.TransportCredentials, insecure bool, err error) {
	if c.Insecure {
		return nil, true, nil
	}

	if c.TLS == nil {
		return nil, false, nil
	}

	tlsConfig, err := c.TLS.Load(tls.VersionTLS12)
	if err != nil {
		return nil, false, fmt.Errorf("failed to setup TLS configuration: %w", err)
	}

	return credentials.NewTLS(tlsConfig), false, nil
}

// logPipeline holds the provider flushed by ShutdownOTel.
//
//nolint:gochecknoglobals // needed for proper OTel shutdown handling
var logPipeline struct {
	sync.Mutex
	provider *sdklog.LoggerProvider
}

// OTelWriter is an io.Writer that turns zerolog JSON lines into OTel log
// records, one instrumentation scope per component.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider

	mu     sync.Mutex
	scopes map[string]log.Logger
}

func NewOTelWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	creds, insecure, err := config.transportCredentials()
	if err != nil {
		return nil, err
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(config.Endpoint)}

	switch {
	case insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case creds != nil:
		opts = append(opts, otlploggrpc.WithTLSCredentials(creds))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := serviceResource(ctx, config.ServiceName)
	if err != nil {
		return nil, err
	}

	batchTimeout := config.BatchTimeout.Std()
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(batchTimeout))),
	)

	logPipeline.Lock()
	logPipeline.provider = provider
	logPipeline.Unlock()

	global.SetLoggerProvider(provider)

	return &OTelWriter{
		ctx:      ctx,
		provider: provider,
		scopes:   make(map[string]log.Logger),
	}, nil
}

func serviceResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(defaultServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// Write never fails: lines that are not JSON objects are dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	if w.provider == nil {
		return len(p), nil
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	scope, record := buildRecord(entry)
	w.scope(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scope(name string) log.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.scopes[name]
	if !ok {
		l = w.provider.Logger(name)
		w.scopes[name] = l
	}

	return l
}

// buildRecord lifts the zerolog envelope fields onto the record and carries
// everything else as sorted string attributes. entry is consumed.
func buildRecord(entry map[string]interface{}) (string, log.Record) {
	var record log.Record

	if ts, ok := entry[zerolog.TimestampFieldName].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.SetTimestamp(parsed)
			delete(entry, zerolog.TimestampFieldName)
		}
	}

	if level, ok := entry[zerolog.LevelFieldName].(string); ok {
		record.SetSeverity(mapZerologLevelToOTel(level))
		record.SetSeverityText(level)
		delete(entry, zerolog.LevelFieldName)
	}

	if msg, ok := entry[zerolog.MessageFieldName].(string); ok {
		record.SetBody(log.StringValue(msg))
		delete(entry, zerolog.MessageFieldName)
	}

	scope := defaultScope
	if component, ok := entry[componentField].(string); ok && component != "" {
		scope = component
		delete(entry, componentField)
	}

	attrs, truncated := sanitizeLogEntry(entry)

	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		record.AddAttributes(log.String(key, attrs[key]))
	}

	if len(truncated) > 0 {
		record.AddAttributes(log.String(truncatedKeysAttribute, strings.Join(truncated, ",")))
	}

	return scope, record
}

// sanitizeLogEntry renders every value as a bounded string and reports the
// keys whose values were shortened.
func sanitizeLogEntry(entry map[string]interface{}) (map[string]string, []string) {
	out := make(map[string]string, len(entry))

	var truncated []string

	for key, value := range entry {
		s, cut := attributeString(value)
		out[key] = s

		if cut {
			truncated = append(truncated, key)
		}
	}

	sort.Strings(truncated)

	return out, truncated
}

func attributeString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "null", false
	case string:
		return truncateString(v, maxAttributeValueLength)
	case bool:
		return strconv.FormatBool(v), false
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), false
	case []interface{}:
		if len(v) > maxStructuredPreviewCount {
			return fmt.Sprintf("[... %d items]", len(v)), true
		}
	case map[string]interface{}:
		if len(v) > maxStructuredPreviewCount {
			return fmt.Sprintf("{... %d keys}", len(v)), true
		}
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return truncateString(fmt.Sprint(value), maxAttributeValueLength)
	}

	return truncateString(string(encoded), maxAttributeValueLength)
}

// truncateString cuts value to at most limit bytes on a rune boundary.
func truncateString(value string, limit int) (string, bool) {
	if len(value) <= limit {
		return value, false
	}

	const ellipsis = "..."

	cut, suffix := limit, ""
	if limit > len(ellipsis) {
		cut, suffix = limit-len(ellipsis), ellipsis
	}

	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}

	return value[:cut] + suffix, true
}

func mapZerologLevelToOTel(level string) log.Severity {
	if strings.EqualFold(level, "warning") {
		return log.SeverityWarn
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return log.SeverityInfo
	}

	switch parsed {
	case zerolog.TraceLevel:
		return log.SeverityTrace
	case zerolog.DebugLevel:
		return log.SeverityDebug
	case zerolog.WarnLevel:
		return log.SeverityWarn
	case zerolog.ErrorLevel:
		return log.SeverityError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return log.SeverityFatal
	default:
		return log.SeverityInfo
	}
}

// ShutdownOTel flushes and closes the log provider created by NewOTelWriter.
func ShutdownOTel() error {
	logPipeline.Lock()
	provider := logPipeline.provider
	logPipeline.provider = nil
	logPipeline.Unlock()

	if provider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
	defer cancel()

	return provider.Shutdown(ctx)
}
