// Package lifecycle реализует движок жизненного цикла сканирования:
// от свежевставленной записи до терминального статуса, шаг за шагом,
// персистируя каждое значимое изменение. Грунтован на обработчике
// _run_scan_blocking оригинального ScanManager.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scanhub/internal/domain"
	"scanhub/internal/gmp"
	"scanhub/pkg/apperror"
	"scanhub/pkg/config"
	"scanhub/pkg/logger"
	"scanhub/pkg/metrics"
	"scanhub/pkg/telemetry"
)

// Store — подмножество store.Store, нужное движку.
type Store interface {
	InsertScan(ctx context.Context, scan *domain.Scan) error
	GetScan(ctx context.Context, scanID string) (*domain.Scan, error)
	ListScans(ctx context.Context) ([]*domain.Scan, error)

	UpdateScanPortList(ctx context.Context, scanID, gvmPortListID string) error
	UpdateScanTarget(ctx context.Context, scanID, gvmTargetID string) error
	UpdateScanTask(ctx context.Context, scanID, gvmTaskID string) error
	UpdateScanStarted(ctx context.Context, scanID, gvmReportID string, startedAt time.Time) error
	UpdateScanPoll(ctx context.Context, scanID, gvmStatus string, gvmProgress int) error
	UpdateScanCompleted(ctx context.Context, scanID string, completedAt time.Time, errMsg string) error
	UpdateScanReport(ctx context.Context, scanID, reportXML string, summary *domain.Summary) error
	UpdateScanError(ctx context.Context, scanID string, errMsg string) error
}

// ProbeRegistry — подмножество probe.Registry, нужное движку.
type ProbeRegistry interface {
	GetClient(name string) (gmp.Adapter, error)
}

// ProbeSelector выбирает probe для нового скана.
type ProbeSelector interface {
	Select(ctx context.Context, explicitName string) (string, error)
}

// CompletionHook вызывается после персистирования терминального состояния.
type CompletionHook func(ctx context.Context, scanID string)

// Engine — движок жизненного цикла: один worker (goroutine) на активный скан.
type Engine struct {
	store    Store
	probes   ProbeRegistry
	selector ProbeSelector
	cfg      config.ScanConfig
	onDone   CompletionHook
}

// New создаёт движок жизненного цикла.
func New(store Store, probes ProbeRegistry, selector ProbeSelector, cfg config.ScanConfig, onDone CompletionHook) *Engine {
	return &Engine{store: store, probes: probes, selector: selector, cfg: cfg, onDone: onDone}
}

// CreateScanParams — входные параметры создания скана (§4.4).
type CreateScanParams struct {
	Target           string
	ScanType         domain.ScanType
	Ports            []int
	ProbeName        string
	Name             string
	ExternalTargetID string
}

// CreateScan валидирует вход, выбирает probe и персистирует запись в
// статусе New. Не запускает выполнение — см. StartScan.
func (e *Engine) CreateScan(ctx context.Context, params CreateScanParams) (*domain.Scan, error) {
	if !domain.ValidateTargetHost(params.Target) {
		return nil, apperror.New(apperror.CodeValidationError, "invalid target").WithField("target")
	}
	if params.ScanType == domain.ScanTypeDirected && !domain.ValidatePorts(params.Ports) {
		return nil, apperror.New(apperror.CodeValidationError, "directed scan requires a non-empty port list").WithField("ports")
	}
	if params.ScanType == domain.ScanTypeFull {
		params.Ports = nil
	}

	probeName, err := e.selector.Select(ctx, params.ProbeName)
	if err != nil {
		return nil, err
	}

	scan := &domain.Scan{
		ScanID:           uuid.NewString(),
		ProbeName:        probeName,
		Name:             params.Name,
		Target:           params.Target,
		ScanType:         params.ScanType,
		Ports:            params.Ports,
		ExternalTargetID: params.ExternalTargetID,
		GVMStatus:        string(gmp.StatusNew),
		CreatedAt:        time.Now(),
	}

	if err := e.store.InsertScan(ctx, scan); err != nil {
		return nil, err
	}

	metrics.Get().RecordScanSubmitted(string(scan.ScanType))
	return scan, nil
}

// StartScan запускает выполнение в фоне; возвращается немедленно.
func (e *Engine) StartScan(ctx context.Context, scanID string) {
	go e.run(context.WithoutCancel(ctx), scanID)
}

// GetScan чтение-через хранилище.
func (e *Engine) GetScan(ctx context.Context, scanID string) (*domain.Scan, error) {
	return e.store.GetScan(ctx, scanID)
}

// ListScans чтение-через хранилище.
func (e *Engine) ListScans(ctx context.Context) ([]*domain.Scan, error) {
	return e.store.ListScans(ctx)
}

func (e *Engine) run(ctx context.Context, scanID string) {
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.Engine.run")
	defer span.End()

	scan, err := e.store.GetScan(ctx, scanID)
	if err != nil {
		logger.Log.Error("lifecycle: scan not found at start", "scan_id", scanID, "error", err)
		return
	}

	adapter, err := e.probes.GetClient(scan.ProbeName)
	if err != nil {
		e.failConnection(ctx, scan, err)
		return
	}

	session, err := adapter.Connect(ctx)
	if err != nil {
		metrics.Get().RecordGVMConnectionError()
		e.failConnection(ctx, scan, err)
		return
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Log.Warn("lifecycle: session close failed", "scan_id", scanID, "error", cerr)
		}
	}()

	e.execute(ctx, scan, session)
}

func (e *Engine) failConnection(ctx context.Context, scan *domain.Scan, cause error) {
	completedAt := time.Now()
	errMsg := fmt.Sprintf("connection failure: %v", cause)
	if err := e.store.UpdateScanCompleted(ctx, scan.ScanID, completedAt, errMsg); err != nil {
		logger.Log.Error("lifecycle: persist connection failure failed", "scan_id", scan.ScanID, "error", err)
	}
	metrics.Get().RecordScanFailed()
	e.invokeHook(ctx, scan.ScanID)
}

// execute прогоняет шаги 2-11 для уже открытой сессии.
func (e *Engine) execute(ctx context.Context, scan *domain.Scan, session gmp.Session) {
	resources := &createdResources{}

	if err := e.createResources(ctx, scan, session, resources); err != nil {
		e.failOperation(ctx, scan, session, resources, err)
		return
	}

	reportID, startedAt, err := e.startTask(ctx, scan, session, resources)
	if err != nil {
		e.failOperation(ctx, scan, session, resources, err)
		return
	}
	scan.GVMReportID = reportID
	scan.StartedAt = &startedAt

	status, timedOut, err := e.pollUntilTerminal(ctx, scan, session, startedAt)
	if err != nil {
		e.failOperation(ctx, scan, session, resources, fmt.Errorf("poll task status: %w", err))
		return
	}

	duration := time.Since(startedAt)
	metrics.Get().RecordScanCompleted(string(scan.ScanType), status, duration)

	completedAt := time.Now()
	errMsg := ""
	if timedOut {
		errMsg = fmt.Sprintf("scan exceeded maximum duration of %s", e.cfg.MaxDuration)
	} else if gmp.IsErrorTerminal(status) {
		errMsg = fmt.Sprintf("scan ended with status: %s", status)
	}
	if err := e.store.UpdateScanCompleted(ctx, scan.ScanID, completedAt, errMsg); err != nil {
		logger.Log.Error("lifecycle: persist completion failed", "scan_id", scan.ScanID, "error", err)
	}
	if errMsg != "" {
		metrics.Get().RecordScanFailed()
	}

	if status == string(gmp.StatusDone) {
		e.collectReport(ctx, scan, session)
	}

	if e.cfg.CleanupAfterReport {
		e.cleanup(ctx, session, resources)
	}

	e.invokeHook(ctx, scan.ScanID)
}

func (e *Engine) invokeHook(ctx context.Context, scanID string) {
	if e.onDone != nil {
		e.onDone(ctx, scanID)
	}
}

type createdResources struct {
	portListID string
	targetID   string
	taskID     string
}

// createResources выполняет шаги 2-4: port list (directed only), target, task.
func (e *Engine) createResources(ctx context.Context, scan *domain.Scan, session gmp.Session, resources *createdResources) error {
	if scan.ScanType == domain.ScanTypeDirected {
		portListID, err := session.CreatePortList(ctx, fmt.Sprintf("scan-%s-ports", scan.ScanID), domain.PortListRange(scan.Ports))
		if err != nil {
			return fmt.Errorf("create port list: %w", err)
		}
		resources.portListID = portListID
		scan.GVMPortListID = portListID
		if err := e.store.UpdateScanPortList(ctx, scan.ScanID, portListID); err != nil {
			return fmt.Errorf("persist port list id: %w", err)
		}
	}

	targetID, err := session.CreateTarget(ctx, gmp.CreateTargetOptions{
		Name:                fmt.Sprintf("scan-%s-target", scan.ScanID),
		Hosts:               scan.Target,
		PortListID:          resources.portListID,
		DefaultPortListName: e.cfg.DefaultPortListName,
	})
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	resources.targetID = targetID
	scan.GVMTargetID = targetID
	if err := e.store.UpdateScanTarget(ctx, scan.ScanID, targetID); err != nil {
		return fmt.Errorf("persist target id: %w", err)
	}

	taskID, err := session.CreateTask(ctx, gmp.CreateTaskOptions{
		Name:        fmt.Sprintf("scan-%s", scan.ScanID),
		TargetID:    targetID,
		ConfigName:  e.cfg.DefaultScanConfig,
		ScannerName: e.cfg.DefaultScanner,
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	resources.taskID = taskID
	scan.GVMTaskID = taskID
	if err := e.store.UpdateScanTask(ctx, scan.ScanID, taskID); err != nil {
		return fmt.Errorf("persist task id: %w", err)
	}

	return nil
}

func (e *Engine) startTask(ctx context.Context, scan *domain.Scan, session gmp.Session, resources *createdResources) (string, time.Time, error) {
	reportID, err := session.StartTask(ctx, resources.taskID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("start task: %w", err)
	}
	startedAt := time.Now()
	if err := e.store.UpdateScanStarted(ctx, scan.ScanID, reportID, startedAt); err != nil {
		return "", time.Time{}, fmt.Errorf("persist started: %w", err)
	}
	return reportID, startedAt, nil
}

// pollUntilTerminal выполняет шаг 6 — опрос статуса до терминального
// состояния или истечения max_duration. Ошибка get_task_status — это
// отказ операции (step failure), а не терминальный статус: вызывающий
// обязан провести её через failOperation, а не завершать скан как успешный.
func (e *Engine) pollUntilTerminal(ctx context.Context, scan *domain.Scan, session gmp.Session, startedAt time.Time) (status string, timedOut bool, err error) {
	interval := e.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		elapsed := time.Since(startedAt)
		if elapsed > e.cfg.MaxDuration {
			if err := session.StopTask(ctx, scan.GVMTaskID); err != nil {
				logger.Log.Warn("lifecycle: stop_task on timeout failed", "scan_id", scan.ScanID, "error", err)
			}
			return scan.GVMStatus, true, nil
		}

		statusText, progress, statusErr := session.GetTaskStatus(ctx, scan.GVMTaskID)
		if statusErr != nil {
			return "", false, statusErr
		}

		scan.GVMStatus = statusText
		scan.GVMProgress = progress
		if err := e.store.UpdateScanPoll(ctx, scan.ScanID, statusText, progress); err != nil {
			logger.Log.Error("lifecycle: persist poll failed", "scan_id", scan.ScanID, "error", err)
		}

		if gmp.IsTerminal(statusText) {
			return statusText, false, nil
		}

		select {
		case <-ctx.Done():
			return scan.GVMStatus, false, nil
		case <-time.After(interval):
		}
	}
}

func (e *Engine) collectReport(ctx context.Context, scan *domain.Scan, session gmp.Session) {
	reportXML, err := session.GetReportXML(ctx, scan.GVMReportID)
	if err != nil {
		logger.Log.Error("lifecycle: get_report_xml failed", "scan_id", scan.ScanID, "error", err)
		return
	}

	summary, err := gmp.ParseSummary(reportXML)
	if err != nil {
		logger.Log.Error("lifecycle: parse summary failed", "scan_id", scan.ScanID, "error", err)
		return
	}

	if err := e.store.UpdateScanReport(ctx, scan.ScanID, reportXML, summary); err != nil {
		logger.Log.Error("lifecycle: persist report failed", "scan_id", scan.ScanID, "error", err)
	}
}

// cleanup удаляет task, затем target, затем port list, в таком порядке,
// независимо друг от друга; ошибки только логируются.
func (e *Engine) cleanup(ctx context.Context, session gmp.Session, resources *createdResources) {
	if resources.taskID != "" {
		if err := session.DeleteTask(ctx, resources.taskID); err != nil {
			logger.Log.Warn("lifecycle: cleanup delete_task failed", "task_id", resources.taskID, "error", err)
		}
	}
	if resources.targetID != "" {
		if err := session.DeleteTarget(ctx, resources.targetID); err != nil {
			logger.Log.Warn("lifecycle: cleanup delete_target failed", "target_id", resources.targetID, "error", err)
		}
	}
	if resources.portListID != "" {
		if err := session.DeletePortList(ctx, resources.portListID); err != nil {
			logger.Log.Warn("lifecycle: cleanup delete_port_list failed", "port_list_id", resources.portListID, "error", err)
		}
	}
}

// failOperation обрабатывает ошибку на любом шаге 2-6: best-effort очистка
// уже созданных ресурсов в обратном порядке, затем персистирование ошибки.
func (e *Engine) failOperation(ctx context.Context, scan *domain.Scan, session gmp.Session, resources *createdResources, cause error) {
	logger.Log.Error("lifecycle: operation failed", "scan_id", scan.ScanID, "error", cause)

	e.cleanup(ctx, session, resources)

	completedAt := time.Now()
	errMsg := cause.Error()
	if err := e.store.UpdateScanCompleted(ctx, scan.ScanID, completedAt, errMsg); err != nil {
		logger.Log.Error("lifecycle: persist operation failure failed", "scan_id", scan.ScanID, "error", err)
	}
	metrics.Get().RecordScanFailed()
	e.invokeHook(ctx, scan.ScanID)
}
