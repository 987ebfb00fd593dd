// Package report turns scheduler runtime conditions (slice overruns and
// pending saturation) into log lines and bus events.
package report
