package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"scanhub/internal/domain"
)

// rowScanner абстрагирует *sql.Row и *sql.Rows — обе реализации имеют
// одинаковый Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

const scanSelectColumns = `
	SELECT
		scan_id, probe_name, name, target, scan_type, ports,
		external_target_id, gvm_port_list_id, gvm_target_id, gvm_task_id, gvm_report_id,
		gvm_status, gvm_progress, created_at, started_at, completed_at,
		report_xml, summary, error
	FROM scans`

func scanFromRow(row rowScanner) (*domain.Scan, error) {
	var (
		scan                                                             domain.Scan
		portsJSON, scanType                                              string
		externalTargetID, gvmPortListID, gvmTargetID, gvmTaskID, gvmRpID sql.NullString
		createdAt                                                        string
		startedAt, completedAt                                           sql.NullString
		reportXML, summaryJSON, errMsg                                   sql.NullString
	)

	err := row.Scan(
		&scan.ScanID, &scan.ProbeName, &scan.Name, &scan.Target, &scanType, &portsJSON,
		&externalTargetID, &gvmPortListID, &gvmTargetID, &gvmTaskID, &gvmRpID,
		&scan.GVMStatus, &scan.GVMProgress, &createdAt, &startedAt, &completedAt,
		&reportXML, &summaryJSON, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	scan.ScanType = domain.ScanType(scanType)
	scan.ExternalTargetID = externalTargetID.String
	scan.GVMPortListID = gvmPortListID.String
	scan.GVMTargetID = gvmTargetID.String
	scan.GVMTaskID = gvmTaskID.String
	scan.GVMReportID = gvmRpID.String
	scan.ReportXML = reportXML.String
	scan.Error = errMsg.String

	if err := json.Unmarshal([]byte(portsJSON), &scan.Ports); err != nil {
		return nil, err
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary domain.Summary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, err
		}
		scan.Summary = &summary
	}

	scan.CreatedAt, err = time.Parse(isoLayout, createdAt)
	if err != nil {
		return nil, err
	}
	if scan.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return nil, err
	}
	if scan.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}

	return &scan, nil
}

const targetSelectColumns = `
	SELECT
		t.external_id, t.host, t.ports, t.scan_type, t.scan_config, t.criticality,
		t.scan_frequency_hours, t.enabled, t.tags, t.last_scan_at, t.next_scan_at,
		t.last_scan_id, t.gvm_target_id, t.gvm_port_list_id, t.synced_at, t.created_at
	FROM targets t`

func targetFromRow(row rowScanner) (*domain.Target, error) {
	var (
		target                                 domain.Target
		portsJSON, tagsJSON                    string
		scanType, criticality, scanConfig      sql.NullString
		lastScanAt, nextScanAt                 sql.NullString
		lastScanID, gvmTargetID, gvmPortListID sql.NullString
		syncedAt, createdAt                    string
	)

	err := row.Scan(
		&target.ExternalID, &target.Host, &portsJSON, &scanType, &scanConfig, &criticality,
		&target.ScanFrequencyHours, &target.Enabled, &tagsJSON, &lastScanAt, &nextScanAt,
		&lastScanID, &gvmTargetID, &gvmPortListID, &syncedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	target.ScanType = domain.ScanType(scanType.String)
	target.Criticality = domain.Criticality(criticality.String)
	target.ScanConfig = scanConfig.String
	target.LastScanID = lastScanID.String
	target.GVMTargetID = gvmTargetID.String
	target.GVMPortListID = gvmPortListID.String

	if err := json.Unmarshal([]byte(portsJSON), &target.Ports); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &target.Tags); err != nil {
		return nil, err
	}

	if target.SyncedAt, err = time.Parse(isoLayout, syncedAt); err != nil {
		return nil, err
	}
	if target.CreatedAt, err = time.Parse(isoLayout, createdAt); err != nil {
		return nil, err
	}
	if target.LastScanAt, err = parseNullableTime(lastScanAt); err != nil {
		return nil, err
	}
	if target.NextScanAt, err = parseNullableTime(nextScanAt); err != nil {
		return nil, err
	}

	return &target, nil
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(isoLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
