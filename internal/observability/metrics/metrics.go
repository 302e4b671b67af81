package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory metrics counters and gauges for HTTP requests,
// the upload pipeline, catalog mutations, and backing-service health. It
// coordinates concurrent writers via a RWMutex while exposing a thread-safe
// gauge for in-flight upload tracking.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	uploadEvents    map[string]uint64
	catalogEvents   map[string]uint64
	componentValue  map[string]float64
	componentState  map[string]string
	bytesStored     uint64
	activeUploads   atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers can
// immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		uploadEvents:    make(map[string]uint64),
		catalogEvents:   make(map[string]uint64),
		componentValue:  make(map[string]float64),
		componentState:  make(map[string]string),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// SetDefault replaces the singleton Recorder. Tests use it to isolate the
// package-level helpers.
func SetDefault(r *Recorder) {
	if r == nil {
		return
	}
	defaultRecorder = r
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// UploadStarted increments the in-flight upload gauge. Every upload attempt
// must be closed out by exactly one of UploadStored, UploadRejected, or
// UploadFailed.
func (r *Recorder) UploadStarted() {
	r.activeUploads.Add(1)
}

// UploadStored records a completed upload and the number of bytes it wrote,
// then decrements the in-flight gauge.
func (r *Recorder) UploadStored(bytes int64) {
	r.incrementUploadEvent("stored")
	if bytes > 0 {
		r.mu.Lock()
		r.bytesStored += uint64(bytes)
		r.mu.Unlock()
	}
	r.decrementGauge(&r.activeUploads)
}

// UploadRejected records an upload that failed request validation and
// decrements the in-flight gauge.
func (r *Recorder) UploadRejected() {
	r.incrementUploadEvent("rejected")
	r.decrementGauge(&r.activeUploads)
}

// UploadFailed records an upload that failed after validation, whether during
// the file write or the metadata insert, and decrements the in-flight gauge.
func (r *Recorder) UploadFailed() {
	r.incrementUploadEvent("failed")
	r.decrementGauge(&r.activeUploads)
}

func (r *Recorder) incrementUploadEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.uploadEvents[normalized]++
	r.mu.Unlock()
}

// ObserveCatalogEvent records a catalog mutation keyed by event name
// (e.g. "created", "updated", "deleted").
func (r *Recorder) ObserveCatalogEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.catalogEvents[normalized]++
	r.mu.Unlock()
}

// SetComponentHealth normalizes backing-service identifiers, maps status
// strings to numeric health values, and stores both representations for
// export.
func (r *Recorder) SetComponentHealth(component, status string) {
	normalizedComponent := normalizeName(component)
	normalizedStatus := strings.ToLower(strings.TrimSpace(status))
	value := 0.0
	switch normalizedStatus {
	case "ok", "healthy":
		value = 1
	case "disabled":
		value = 0
	default:
		value = -1
	}
	r.mu.Lock()
	r.componentValue[normalizedComponent] = value
	r.componentState[normalizedComponent] = normalizedStatus
	r.mu.Unlock()
}

// ActiveUploads exposes the current gauge of uploads in flight.
func (r *Recorder) ActiveUploads() int64 {
	return r.activeUploads.Load()
}

// UploadCounts returns copies of upload event counters and the cumulative
// stored byte total for testing and reporting purposes.
func (r *Recorder) UploadCounts() (events map[string]uint64, bytes uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events = make(map[string]uint64, len(r.uploadEvents))
	for k, v := range r.uploadEvents {
		events[k] = v
	}
	return events, r.bytesStored
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.uploadEvents = make(map[string]uint64)
	r.catalogEvents = make(map[string]uint64)
	r.componentValue = make(map[string]float64)
	r.componentState = make(map[string]string)
	r.bytesStored = 0
	r.activeUploads.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting label
// sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	uploadEvents := r.sortedEventNames(r.uploadEvents)
	catalogEvents := r.sortedEventNames(r.catalogEvents)
	components := r.sortedComponents()

	fmt.Fprintln(w, "# HELP veritas_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE veritas_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "veritas_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP veritas_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE veritas_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "veritas_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP veritas_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE veritas_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "veritas_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP veritas_upload_events_total Upload pipeline outcomes by type")
	fmt.Fprintln(w, "# TYPE veritas_upload_events_total counter")
	for _, event := range uploadEvents {
		count := r.uploadEvents[event]
		fmt.Fprintf(w, "veritas_upload_events_total{event=\"%s\"} %d\n", event, count)
	}

	fmt.Fprintln(w, "# HELP veritas_active_uploads Current number of uploads in flight")
	fmt.Fprintln(w, "# TYPE veritas_active_uploads gauge")
	fmt.Fprintf(w, "veritas_active_uploads %d\n", r.activeUploads.Load())

	fmt.Fprintln(w, "# HELP veritas_media_bytes_stored_total Total bytes of media written to the uploads directory")
	fmt.Fprintln(w, "# TYPE veritas_media_bytes_stored_total counter")
	fmt.Fprintf(w, "veritas_media_bytes_stored_total %d\n", r.bytesStored)

	fmt.Fprintln(w, "# HELP veritas_catalog_events_total Catalog mutations by type")
	fmt.Fprintln(w, "# TYPE veritas_catalog_events_total counter")
	for _, event := range catalogEvents {
		count := r.catalogEvents[event]
		fmt.Fprintf(w, "veritas_catalog_events_total{event=\"%s\"} %d\n", event, count)
	}

	fmt.Fprintln(w, "# HELP veritas_component_health Health status reported by backing services (1=ok,0=disabled,-1=degraded)")
	fmt.Fprintln(w, "# TYPE veritas_component_health gauge")
	for _, component := range components {
		value := r.componentValue[component]
		status := r.componentState[component]
		fmt.Fprintf(w, "veritas_component_health{component=\"%s\",status=\"%s\"} %f\n", component, status, value)
	}
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedEventNames(events map[string]uint64) []string {
	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Recorder) sortedComponents() []string {
	components := make([]string, 0, len(r.componentValue))
	for component := range r.componentValue {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 8 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 1 && digitCount == len(segment)
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// SetComponentHealth updates backing-service health on the default recorder.
func SetComponentHealth(component, status string) {
	defaultRecorder.SetComponentHealth(component, status)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
