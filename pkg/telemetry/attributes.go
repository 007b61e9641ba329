package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Скан
	AttrScanID     = "scan.id"
	AttrScanType   = "scan.type"
	AttrScanStatus = "scan.status"
	AttrScanner    = "scan.scanner"

	// Цель
	AttrTargetID       = "target.id"
	AttrTargetHostname = "target.hostname"

	// Probe
	AttrProbeName = "probe.name"
	AttrProbeHost = "probe.host"

	// GMP
	AttrGMPCommand = "gmp.command"
	AttrGMPTaskID  = "gmp.task_id"

	// Синхронизация / callback
	AttrSyncOutcome     = "sync.outcome"
	AttrCallbackOutcome = "callback.outcome"
)

// ScanAttributes возвращает атрибуты скана
func ScanAttributes(scanID, scanType, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrScanID, scanID),
		attribute.String(AttrScanType, scanType),
		attribute.String(AttrScanStatus, status),
	}
}

// TargetAttributes возвращает атрибуты цели
func TargetAttributes(targetID, hostname string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTargetID, targetID),
		attribute.String(AttrTargetHostname, hostname),
	}
}

// ProbeAttributes возвращает атрибуты probe-узла
func ProbeAttributes(name, host string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrProbeName, name),
		attribute.String(AttrProbeHost, host),
	}
}

// GMPAttributes возвращает атрибуты вызова GMP
func GMPAttributes(command, taskID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrGMPCommand, command),
		attribute.String(AttrGMPTaskID, taskID),
	}
}
