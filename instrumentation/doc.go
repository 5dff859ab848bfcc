// Package instrumentation provides OpenTelemetry metrics and tracing for the
// gateway. With instrumentation disabled it falls back to no-op providers,
// so call sites never need to nil-check individual instruments.
package instrumentation
