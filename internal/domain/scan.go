// Package domain содержит значимые типы предметной области Scan Hub:
// сканы, цели каталога и связанные с ними инварианты.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// ScanType тип сканирования.
type ScanType string

const (
	ScanTypeFull     ScanType = "full"
	ScanTypeDirected ScanType = "directed"
)

// Criticality критичность цели каталога с весом для сортировки планировщика.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

// Weight возвращает числовой вес критичности для ORDER BY планировщика.
func (c Criticality) Weight() int {
	switch c {
	case CriticalityCritical:
		return 4
	case CriticalityHigh:
		return 3
	case CriticalityMedium:
		return 2
	case CriticalityLow:
		return 1
	default:
		return 0
	}
}

// Summary гистограмма серьёзности отчёта GMP.
type Summary struct {
	HostsScanned int `json:"hosts_scanned"`
	VulnsHigh    int `json:"vulns_high"`
	VulnsMedium  int `json:"vulns_medium"`
	VulnsLow     int `json:"vulns_low"`
	VulnsLog     int `json:"vulns_log"`
}

// Scan запись жизненного цикла одного сканирования, мутируется только
// своим worker-ом в internal/lifecycle.
type Scan struct {
	ScanID           string
	ProbeName        string
	Name             string
	Target           string
	ScanType         ScanType
	Ports            []int
	ExternalTargetID string

	GVMPortListID string
	GVMTargetID   string
	GVMTaskID     string
	GVMReportID   string

	GVMStatus   string
	GVMProgress int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	ReportXML string
	Summary   *Summary
	Error     string
}

// IsTerminal сообщает, завершился ли скан (см. spec §4.2).
func (s *Scan) IsTerminal() bool {
	return s.CompletedAt != nil
}

// PortListRange формирует GMP-совместимый диапазон портов "T:p1,T:p2,...".
func PortListRange(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = "T:" + strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
