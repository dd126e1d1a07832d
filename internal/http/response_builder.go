package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"
)

// HX-Trigger events the dashboard script listens for.
const (
	EventDatasetChanged = "dataset:changed"
	EventFiltersChanged = "filters:changed"
	EventNotification   = "show-notification"
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// How long each kind of toast stays on screen.
var notificationDuration = map[NotificationType]time.Duration{
	NotificationSuccess: 3 * time.Second,
	NotificationInfo:    3 * time.Second,
	NotificationWarning: 4 * time.Second,
	NotificationError:   5 * time.Second,
}

// HTMXResponseBuilder assembles a response and the events it fires in the
// browser through HX-Trigger. Events are keyed by name, so a later call for
// the same event replaces the earlier one.
type HTMXResponseBuilder struct {
	status   int
	header   http.Header
	events   map[string]any
	body     []byte
	hasBody  bool
	htmlBody bool
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status: http.StatusOK,
		header: make(http.Header),
		events: make(map[string]any),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger fires event with data as its detail.
func (b *HTMXResponseBuilder) Trigger(event string, data any) *HTMXResponseBuilder {
	b.events[event] = data
	return b
}

// TriggerDatasetChanged tells the page that the rows behind every section
// changed (upload, reload, or switching back to the shared dataset).
func (b *HTMXResponseBuilder) TriggerDatasetChanged(source, fingerprint string, rows int) *HTMXResponseBuilder {
	return b.Trigger(EventDatasetChanged, map[string]any{
		"source":      source,
		"fingerprint": fingerprint,
		"rows":        rows,
	})
}

// TriggerFiltersChanged carries the number of rows left by the new view.
func (b *HTMXResponseBuilder) TriggerFiltersChanged(rows int, filtered bool) *HTMXResponseBuilder {
	return b.Trigger(EventFiltersChanged, map[string]any{
		"rows":     rows,
		"filtered": filtered,
	})
}

// Notify shows a toast. Only one toast is sent per response.
func (b *HTMXResponseBuilder) Notify(kind NotificationType, message string) *HTMXResponseBuilder {
	d, ok := notificationDuration[kind]
	if !ok {
		d = notificationDuration[NotificationInfo]
	}
	return b.Trigger(EventNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": d.Milliseconds(),
	})
}

func (b *HTMXResponseBuilder) NotifySuccess(message string) *HTMXResponseBuilder {
	return b.Notify(NotificationSuccess, message)
}

func (b *HTMXResponseBuilder) NotifyWarning(message string) *HTMXResponseBuilder {
	return b.Notify(NotificationWarning, message)
}

func (b *HTMXResponseBuilder) NotifyError(message string) *HTMXResponseBuilder {
	return b.Notify(NotificationError, message)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// Text sets a plain body; HTML sets a text/html one.
func (b *HTMXResponseBuilder) Text(s string) *HTMXResponseBuilder {
	b.body, b.hasBody, b.htmlBody = []byte(s), true, false
	return b
}

func (b *HTMXResponseBuilder) HTML(content []byte) *HTMXResponseBuilder {
	b.body, b.hasBody, b.htmlBody = content, true, true
	return b
}

// Write sends the response. Headers already set on w by middleware are
// kept unless the builder sets the same name.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if b.htmlBody && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "text/html; charset=utf-8")
	}
	if len(b.events) > 0 {
		if payload, err := json.Marshal(b.events); err == nil {
			h.Set("HX-Trigger", string(payload))
		}
	}

	w.WriteHeader(b.status)
	if b.hasBody && len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message as an escaped error block and repeats it
// as an error toast, since htmx does not swap error responses into the
// page.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	block := `<div class="error">` + template.HTMLEscapeString(message) + `</div>`
	return NewHTMXResponse().
		Status(statusCode).
		HTML([]byte(block)).
		NotifyError(message)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ConflictError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}
