package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scanhub/internal/domain"
	"scanhub/pkg/apperror"
	"scanhub/pkg/database"
	"scanhub/pkg/telemetry"
)

const isoLayout = time.RFC3339

// SQLiteStore реализует Store поверх database.DB (modernc.org/sqlite).
// Единственный писатель: все мутирующие операции сериализуются пулом
// с MaxOpenConns=1 на уровне pkg/database; этот тип сам по себе
// stateless и безопасен для конкурентных вызовов.
type SQLiteStore struct {
	db database.DB
}

// New создаёт хранилище поверх уже открытого соединения.
func New(db database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) InsertScan(ctx context.Context, scan *domain.Scan) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.InsertScan")
	defer span.End()

	ports, err := json.Marshal(scan.Ports)
	if err != nil {
		return fmt.Errorf("marshal ports: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (
			scan_id, probe_name, name, target, scan_type, ports,
			external_target_id, gvm_status, gvm_progress, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ScanID, scan.ProbeName, scan.Name, scan.Target, string(scan.ScanType), string(ports),
		nullString(scan.ExternalTargetID), scan.GVMStatus, scan.GVMProgress, scan.CreatedAt.UTC().Format(isoLayout),
	)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStoreUnavailable, "insert scan failed")
	}
	return nil
}

func (s *SQLiteStore) GetScan(ctx context.Context, scanID string) (*domain.Scan, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.GetScan")
	defer span.End()

	row := s.db.QueryRowContext(ctx, scanSelectColumns+` WHERE scan_id = ?`, scanID)
	scan, err := scanFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrScanNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "get scan failed")
	}
	return scan, nil
}

func (s *SQLiteStore) ListScans(ctx context.Context) ([]*domain.Scan, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.ListScans")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, scanSelectColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "list scans failed")
	}
	defer rows.Close()

	var scans []*domain.Scan
	for rows.Next() {
		scan, err := scanFromRow(rows)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "scan row failed")
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

// CountActivePerProbe — одна агрегирующая выборка: активен скан, если
// completed_at IS NULL.
func (s *SQLiteStore) CountActivePerProbe(ctx context.Context) (map[string]int, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.CountActivePerProbe")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT probe_name, COUNT(*)
		FROM scans
		WHERE completed_at IS NULL
		GROUP BY probe_name`)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "count active per probe failed")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var probe string
		var count int
		if err := rows.Scan(&probe, &count); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "count row failed")
		}
		counts[probe] = count
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) UpdateScanPortList(ctx context.Context, scanID, gvmPortListID string) error {
	return s.execUpdate(ctx, `UPDATE scans SET gvm_port_list_id = ? WHERE scan_id = ?`, gvmPortListID, scanID)
}

func (s *SQLiteStore) UpdateScanTarget(ctx context.Context, scanID, gvmTargetID string) error {
	return s.execUpdate(ctx, `UPDATE scans SET gvm_target_id = ? WHERE scan_id = ?`, gvmTargetID, scanID)
}

func (s *SQLiteStore) UpdateScanTask(ctx context.Context, scanID, gvmTaskID string) error {
	return s.execUpdate(ctx, `UPDATE scans SET gvm_task_id = ? WHERE scan_id = ?`, gvmTaskID, scanID)
}

func (s *SQLiteStore) UpdateScanStarted(ctx context.Context, scanID, gvmReportID string, startedAt time.Time) error {
	return s.execUpdate(ctx, `UPDATE scans SET gvm_report_id = ?, started_at = ? WHERE scan_id = ?`,
		gvmReportID, startedAt.UTC().Format(isoLayout), scanID)
}

func (s *SQLiteStore) UpdateScanPoll(ctx context.Context, scanID, gvmStatus string, gvmProgress int) error {
	return s.execUpdate(ctx, `UPDATE scans SET gvm_status = ?, gvm_progress = ? WHERE scan_id = ?`,
		gvmStatus, gvmProgress, scanID)
}

func (s *SQLiteStore) UpdateScanCompleted(ctx context.Context, scanID string, completedAt time.Time, errMsg string) error {
	return s.execUpdate(ctx, `UPDATE scans SET completed_at = ?, error = ? WHERE scan_id = ?`,
		completedAt.UTC().Format(isoLayout), nullString(errMsg), scanID)
}

func (s *SQLiteStore) UpdateScanReport(ctx context.Context, scanID, reportXML string, summary *domain.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return s.execUpdate(ctx, `UPDATE scans SET report_xml = ?, summary = ? WHERE scan_id = ?`,
		reportXML, string(summaryJSON), scanID)
}

func (s *SQLiteStore) UpdateScanError(ctx context.Context, scanID string, errMsg string) error {
	return s.execUpdate(ctx, `UPDATE scans SET error = ? WHERE scan_id = ?`, errMsg, scanID)
}

func (s *SQLiteStore) execUpdate(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperror.Wrap(err, apperror.CodeStoreUnavailable, "update scan failed")
	}
	return nil
}

// UpsertTarget вставляет или обновляет запись по external_id; повторный
// upsert той же записи обновляет synced_at, не трогая остальные поля
// расписания.
func (s *SQLiteStore) UpsertTarget(ctx context.Context, target *domain.Target) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.UpsertTarget")
	defer span.End()

	ports, err := json.Marshal(target.Ports)
	if err != nil {
		return fmt.Errorf("marshal ports: %w", err)
	}
	tags, err := json.Marshal(target.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	now := target.SyncedAt.UTC().Format(isoLayout)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO targets (
			external_id, host, ports, scan_type, scan_config, criticality,
			scan_frequency_hours, enabled, tags, synced_at, created_at, next_scan_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			host = excluded.host,
			ports = excluded.ports,
			scan_type = excluded.scan_type,
			scan_config = excluded.scan_config,
			criticality = excluded.criticality,
			scan_frequency_hours = excluded.scan_frequency_hours,
			enabled = excluded.enabled,
			tags = excluded.tags,
			synced_at = excluded.synced_at`,
		target.ExternalID, target.Host, string(ports), string(target.ScanType), nullString(target.ScanConfig),
		string(target.Criticality), target.ScanFrequencyHours, target.Enabled, string(tags), now,
		target.CreatedAt.UTC().Format(isoLayout), now,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStoreUnavailable, "upsert target failed")
	}
	return nil
}

func (s *SQLiteStore) InsertManualTarget(ctx context.Context, target *domain.Target) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.InsertManualTarget")
	defer span.End()

	existing, err := s.GetTarget(ctx, target.ExternalID)
	if err != nil && !apperror.Is(err, apperror.CodeNotFound) {
		return err
	}
	if existing != nil {
		return apperror.New(apperror.CodeAlreadyExists, "target already exists").WithField("external_id").WithDetails("external_id", target.ExternalID)
	}

	return s.UpsertTarget(ctx, target)
}

// DeactivateMissing отключает все включённые записи, чей external_id
// отсутствует в seenIDs — используется циклом синхронизации каталога.
func (s *SQLiteStore) DeactivateMissing(ctx context.Context, seenIDs []string) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.DeactivateMissing")
	defer span.End()

	if len(seenIDs) == 0 {
		_, err := s.db.ExecContext(ctx, `UPDATE targets SET enabled = 0`)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeStoreUnavailable, "deactivate all targets failed")
		}
		return nil
	}

	placeholders := make([]string, len(seenIDs))
	args := make([]any, len(seenIDs))
	for i, id := range seenIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`UPDATE targets SET enabled = 0 WHERE external_id NOT IN (%s)`, strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperror.Wrap(err, apperror.CodeStoreUnavailable, "deactivate missing targets failed")
	}
	return nil
}

// GetDueTargets возвращает включённые цели с next_scan_at <= now и без
// активного скана — анти-дублирующий предикат встроен в запрос, а не
// является постфильтром, как того требует контракт.
func (s *SQLiteStore) GetDueTargets(ctx context.Context, now time.Time) ([]*domain.Target, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.GetDueTargets")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, targetSelectColumns+`
		WHERE t.enabled = 1
		  AND t.next_scan_at IS NOT NULL
		  AND t.next_scan_at <= ?
		  AND NOT EXISTS (
			SELECT 1 FROM scans sc
			WHERE sc.external_target_id = t.external_id
			  AND sc.completed_at IS NULL
		  )
		ORDER BY CASE t.criticality
			WHEN 'critical' THEN 4
			WHEN 'high' THEN 3
			WHEN 'medium' THEN 2
			WHEN 'low' THEN 1
			ELSE 0
		END DESC`,
		now.UTC().Format(isoLayout),
	)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "get due targets failed")
	}
	defer rows.Close()

	var targets []*domain.Target
	for rows.Next() {
		target, err := targetFromRow(rows)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "target row failed")
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

func (s *SQLiteStore) UpdateTargetGVMIDs(ctx context.Context, externalID, gvmTargetID, gvmPortListID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE targets SET gvm_target_id = ?, gvm_port_list_id = ? WHERE external_id = ?`,
		gvmTargetID, gvmPortListID, externalID)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStoreUnavailable, "update target gvm ids failed")
	}
	return nil
}

// UpdateTargetSchedule устанавливает last_scan_at = now, next_scan_at =
// now + frequency_hours, last_scan_id = scanID.
func (s *SQLiteStore) UpdateTargetSchedule(ctx context.Context, externalID, scanID string, frequencyHours int, now time.Time) error {
	next := now.Add(time.Duration(frequencyHours) * time.Hour)
	_, err := s.db.ExecContext(ctx, `
		UPDATE targets
		SET last_scan_at = ?, next_scan_at = ?, last_scan_id = ?
		WHERE external_id = ?`,
		now.UTC().Format(isoLayout), next.UTC().Format(isoLayout), scanID, externalID,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStoreUnavailable, "update target schedule failed")
	}
	return nil
}

func (s *SQLiteStore) ListTargets(ctx context.Context) ([]*domain.Target, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.ListTargets")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, targetSelectColumns+` ORDER BY t.created_at DESC`)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "list targets failed")
	}
	defer rows.Close()

	var targets []*domain.Target
	for rows.Next() {
		target, err := targetFromRow(rows)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "target row failed")
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

func (s *SQLiteStore) GetTarget(ctx context.Context, externalID string) (*domain.Target, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteStore.GetTarget")
	defer span.End()

	row := s.db.QueryRowContext(ctx, targetSelectColumns+` WHERE t.external_id = ?`, externalID)
	target, err := targetFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrTargetNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreUnavailable, "get target failed")
	}
	return target, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
